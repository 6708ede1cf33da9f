package sched

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrServiceAbsent means the host does not expose the requested service.
	ErrServiceAbsent = errors.New("host service not present")

	// ErrServiceShape means the host exposes the service under the expected
	// name but its type does not match the expected surface (host version
	// mismatch).
	ErrServiceShape = errors.New("host service has unexpected shape")
)

// shardedBinding holds the sharded backend services, resolved once when the
// world model is detected. Each service resolves independently: a host that
// exposes a working global scheduler but a mismatched async pool still gets
// direct global submissions, and only async submissions degrade.
//
// All methods are safe on a nil receiver; they report a resolution error,
// which the caller converts into a fallback.
type shardedBinding struct {
	global     GlobalScheduler
	globalErr  error
	async      AsyncScheduler
	asyncErr   error
	regions    RegionScheduler
	regionsErr error
}

func newShardedBinding(host Locator) *shardedBinding {
	b := &shardedBinding{}
	b.global, b.globalErr = resolveAs[GlobalScheduler](host, ServiceShardedGlobal)
	b.async, b.asyncErr = resolveAs[AsyncScheduler](host, ServiceShardedAsync)
	b.regions, b.regionsErr = resolveAs[RegionScheduler](host, ServiceShardedRegions)
	return b
}

func resolveAs[T any](host Locator, name string) (T, error) {
	var zero T
	v, ok := host.Lookup(name)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrServiceAbsent, name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T", ErrServiceShape, name, v)
	}
	return t, nil
}

// resolveErr returns the first resolution problem, for one-time debug logging.
func (b *shardedBinding) resolveErr() error {
	if b == nil {
		return ErrServiceAbsent
	}
	for _, err := range []error{b.globalErr, b.asyncErr, b.regionsErr} {
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *shardedBinding) globalNow(owner string, task Task) error {
	if b == nil || b.global == nil {
		return b.errOr(func() error { return b.globalErr })
	}
	return invoke(func() error { return b.global.Run(owner, task) })
}

func (b *shardedBinding) globalDelayed(owner string, task Task, delay int64) error {
	if b == nil || b.global == nil {
		return b.errOr(func() error { return b.globalErr })
	}
	return invoke(func() error { return b.global.RunDelayed(owner, task, delay) })
}

func (b *shardedBinding) globalPeriodic(owner string, task Task, delay, period int64) error {
	if b == nil || b.global == nil {
		return b.errOr(func() error { return b.globalErr })
	}
	return invoke(func() error { return b.global.RunAtFixedRate(owner, task, delay, period) })
}

func (b *shardedBinding) asyncNow(owner string, task Task) error {
	if b == nil || b.async == nil {
		return b.errOr(func() error { return b.asyncErr })
	}
	return invoke(func() error { return b.async.RunNow(owner, task) })
}

func (b *shardedBinding) asyncDelayed(owner string, task Task, delay time.Duration) error {
	if b == nil || b.async == nil {
		return b.errOr(func() error { return b.asyncErr })
	}
	return invoke(func() error { return b.async.RunDelayed(owner, task, delay) })
}

func (b *shardedBinding) asyncPeriodic(owner string, task Task, initial, period time.Duration) error {
	if b == nil || b.async == nil {
		return b.errOr(func() error { return b.asyncErr })
	}
	return invoke(func() error { return b.async.RunAtFixedRate(owner, task, initial, period) })
}

func (b *shardedBinding) forEntity(owner string, entity Entity, task Task) error {
	if b == nil || b.regions == nil {
		return b.errOr(func() error { return b.regionsErr })
	}
	return invoke(func() error { return b.regions.RunForEntity(owner, entity, task) })
}

func (b *shardedBinding) forLocation(owner string, location Location, task Task) error {
	if b == nil || b.regions == nil {
		return b.errOr(func() error { return b.regionsErr })
	}
	return invoke(func() error { return b.regions.RunForLocation(owner, location, task) })
}

func (b *shardedBinding) errOr(get func() error) error {
	if b == nil {
		return ErrServiceAbsent
	}
	if err := get(); err != nil {
		return err
	}
	return ErrServiceAbsent
}

// invoke guards a backend submission: a panicking backend must surface as an
// invocation failure, never as a panic in the caller.
func invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panicked: %v", r)
		}
	}()
	return fn()
}
