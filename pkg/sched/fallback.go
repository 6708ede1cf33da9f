package sched

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"worldsched/internal/eventbus"
	"worldsched/internal/runtime/supervisor"
	logx "worldsched/pkg/logx"
)

// maxFallbackWorkers caps the goroutines spawned for degraded async
// submissions. When the cap is reached the task runs synchronously instead;
// work is never dropped.
const maxFallbackWorkers = 64

// fallbackWarnRate throttles warn-level diagnostics under a persistently
// failing backend. Past the rate, occurrences are still reported at debug and
// still recorded/published.
const fallbackWarnRate = 5 // per second

// fallback substitutes a degraded-but-safe equivalent for a failed backend
// submission. Exactly one of the primary path and the fallback executes for a
// given call; the choice is made synchronously at submission time.
type fallback struct {
	owner string
	log   logx.Logger
	bus   eventbus.Bus
	rec   Recorder
	lim   *rate.Limiter
	sup   *supervisor.Supervisor
	slots chan struct{}
}

func newFallback(owner string, log logx.Logger, bus eventbus.Bus, rec Recorder) *fallback {
	return &fallback{
		owner: owner,
		log:   log,
		bus:   bus,
		rec:   rec,
		lim:   rate.NewLimiter(fallbackWarnRate, fallbackWarnRate),
		sup:   supervisor.New(context.Background(), supervisor.WithLogger(log)),
		slots: make(chan struct{}, maxFallbackWorkers),
	}
}

// report emits the diagnostic for a degraded dispatch: warn log (throttled),
// bus event, and best-effort audit record.
func (f *fallback) report(op, action string, cause error) {
	r := FallbackRecord{
		At:     time.Now(),
		Owner:  f.owner,
		Op:     op,
		Action: action,
		Reason: errString(cause),
	}

	if f.lim.Allow() {
		f.log.Warn("backend submission failed; running fallback",
			logx.String("op", op), logx.String("fallback", action), logx.Err(cause))
	} else {
		f.log.Debug("backend submission failed; running fallback (warn throttled)",
			logx.String("op", op), logx.String("fallback", action), logx.Err(cause))
	}

	if f.bus != nil {
		f.bus.Publish(eventbus.Event{Type: EventFallback, Time: r.At, Data: r})
	}
	if f.rec != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := f.rec.RecordFallback(ctx, r); err != nil {
			f.log.Debug("fallback record not persisted", logx.String("op", op), logx.Err(err))
		}
		cancel()
	}
}

// runSync runs the task synchronously once, on the caller's goroutine. Used
// for the global path, where timer emulation is deliberately not attempted.
func (f *fallback) runSync(op string, task Task, cause error) {
	f.report(op, "sync", cause)
	task()
}

// spawnNow runs the task on a fallback worker, fire-and-forget.
func (f *fallback) spawnNow(op string, task Task, cause error) {
	f.report(op, "worker", cause)
	if !f.acquire() {
		task()
		return
	}
	f.sup.Go0("fallback."+op, func(ctx context.Context) {
		defer f.release()
		task()
	})
}

// spawnDelayed runs the task once after the given delay on a fallback worker.
// If the worker is interrupted during the sleep it terminates silently.
func (f *fallback) spawnDelayed(op string, task Task, delay time.Duration, cause error) {
	f.report(op, "worker-delayed", cause)
	if !f.acquire() {
		task()
		return
	}
	f.sup.Go0("fallback."+op, func(ctx context.Context) {
		defer f.release()
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		task()
	})
}

// spawnPeriodic emulates a fixed-period schedule on a fallback worker: sleep
// the initial delay, then loop run-sleep until the facade is closed or the
// process exits.
func (f *fallback) spawnPeriodic(op string, task Task, initial, period time.Duration, cause error) {
	f.report(op, "worker-periodic", cause)
	if !f.acquire() {
		// No worker slot: periodic emulation is impossible, run once.
		task()
		return
	}
	f.sup.Go0("fallback."+op, func(ctx context.Context) {
		defer f.release()
		t := time.NewTimer(initial)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		for {
			task()
			t.Reset(period)
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	})
}

// viaMain reroutes an affinity submission through the single coordinating
// thread. If that also fails, the task runs synchronously: liveness wins over
// thread placement.
func (f *fallback) viaMain(op string, main MainThreadScheduler, task Task, cause error) {
	f.report(op, "main-thread", cause)
	if main != nil {
		if err := invoke(func() error { return main.Submit(f.owner, task) }); err == nil {
			return
		}
	}
	task()
}

func (f *fallback) acquire() bool {
	select {
	case f.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (f *fallback) release() {
	select {
	case <-f.slots:
	default:
	}
}

func (f *fallback) stop(ctx context.Context) error {
	return f.sup.Stop(ctx)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
