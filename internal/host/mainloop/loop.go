// Package mainloop implements the single-threaded backend: every
// state-touching task runs serialized on one loop goroutine, in submission
// order, at a fixed tick interval. Non-state-touching work goes to a small
// companion pool so it never stalls the loop.
package mainloop

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"worldsched/internal/runtime/supervisor"
	logx "worldsched/pkg/logx"
	"worldsched/pkg/sched"
)

var (
	ErrStopped   = errors.New("main loop not running")
	ErrQueueFull = errors.New("main loop queue full")
)

type Config struct {
	// TickInterval is the wall-clock length of one tick. Defaults to the
	// world model's 50 ms; tests shorten it.
	TickInterval time.Duration

	// QueueSize bounds submissions waiting to be picked up by the loop.
	QueueSize int

	// AsyncWorkers sizes the companion pool for async submissions.
	AsyncWorkers int
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = sched.TickDuration
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.AsyncWorkers <= 0 {
		c.AsyncWorkers = 2
	}
	return c
}

type entry struct {
	owner  string
	task   sched.Task
	due    int64 // tick number the entry becomes runnable
	period int64 // 0 for one-shot
}

// Loop is the single-threaded scheduler. It implements
// sched.MainThreadScheduler.
type Loop struct {
	cfg Config
	log logx.Logger

	tick atomic.Int64 // last completed tick

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	incoming chan entry

	asyncQ chan entry
	sup    *supervisor.Supervisor
	wg     sync.WaitGroup
}

func New(cfg Config, log logx.Logger) *Loop {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Loop{
		cfg: cfg.withDefaults(),
		log: log.With(logx.String("component", "mainloop")),
	}
}

func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.incoming = make(chan entry, l.cfg.QueueSize)
	l.asyncQ = make(chan entry, l.cfg.QueueSize)
	l.sup = supervisor.New(ctx, supervisor.WithLogger(l.log))

	stopCh := l.stopCh
	incoming := l.incoming

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(stopCh, incoming)
	}()

	for i := 0; i < l.cfg.AsyncWorkers; i++ {
		q := l.asyncQ
		l.sup.Go0("async-worker", func(ctx context.Context) {
			for {
				select {
				case <-ctx.Done():
					return
				case <-stopCh:
					return
				case e := <-q:
					runGuarded(l.log, e)
				}
			}
		})
	}

	l.log.Info("main loop started",
		logx.Duration("tick", l.cfg.TickInterval), logx.Int("async_workers", l.cfg.AsyncWorkers))
}

func (l *Loop) Stop(ctx context.Context) {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	stopCh := l.stopCh
	sup := l.sup
	l.mu.Unlock()

	close(stopCh)
	l.wg.Wait()
	if sup != nil {
		_ = sup.Stop(ctx)
	}
	l.log.Info("main loop stopped", logx.Int64("ticks", l.tick.Load()))
}

// run owns all state-touching execution. Due tasks execute in submission
// order within a tick; periodic entries re-arm after running.
func (l *Loop) run(stopCh <-chan struct{}, incoming <-chan entry) {
	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	var pending []entry
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		now := l.tick.Add(1)

	drain:
		for {
			select {
			case e := <-incoming:
				pending = append(pending, e)
			default:
				break drain
			}
		}

		kept := pending[:0]
		for _, e := range pending {
			if e.due > now {
				kept = append(kept, e)
				continue
			}
			runGuarded(l.log, e)
			if e.period > 0 {
				e.due = now + e.period
				kept = append(kept, e)
			}
		}
		pending = kept
	}
}

func runGuarded(log logx.Logger, e entry) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked",
				logx.String("owner", e.owner), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	e.task()
}

func (l *Loop) submit(e entry) error {
	l.mu.Lock()
	running := l.running
	q := l.incoming
	l.mu.Unlock()
	if !running || q == nil {
		return ErrStopped
	}
	select {
	case q <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

func (l *Loop) submitAsync(e entry) error {
	l.mu.Lock()
	running := l.running
	q := l.asyncQ
	l.mu.Unlock()
	if !running || q == nil {
		return ErrStopped
	}
	select {
	case q <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// ---- sched.MainThreadScheduler ----

func (l *Loop) Submit(owner string, task sched.Task) error {
	return l.submit(entry{owner: owner, task: task})
}

func (l *Loop) SubmitDelayed(owner string, task sched.Task, delay int64) error {
	return l.submit(entry{owner: owner, task: task, due: l.tick.Load() + delay})
}

func (l *Loop) SubmitPeriodic(owner string, task sched.Task, delay, period int64) error {
	if period < 1 {
		period = 1
	}
	return l.submit(entry{owner: owner, task: task, due: l.tick.Load() + delay, period: period})
}

func (l *Loop) SubmitAsync(owner string, task sched.Task) error {
	return l.submitAsync(entry{owner: owner, task: task})
}

func (l *Loop) SubmitAsyncDelayed(owner string, task sched.Task, delay int64) error {
	l.mu.Lock()
	running := l.running
	sup := l.sup
	stopCh := l.stopCh
	l.mu.Unlock()
	if !running || sup == nil {
		return ErrStopped
	}
	d := time.Duration(delay) * l.cfg.TickInterval
	e := entry{owner: owner, task: task}
	sup.Go0("async-delayed", func(ctx context.Context) {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-t.C:
		}
		// The pool may be saturated at fire time; run on this goroutine then.
		if err := l.submitAsync(e); err != nil {
			runGuarded(l.log, e)
		}
	})
	return nil
}

func (l *Loop) SubmitAsyncPeriodic(owner string, task sched.Task, delay, period int64) error {
	l.mu.Lock()
	running := l.running
	sup := l.sup
	stopCh := l.stopCh
	l.mu.Unlock()
	if !running || sup == nil {
		return ErrStopped
	}
	if period < 1 {
		period = 1
	}
	di := time.Duration(delay) * l.cfg.TickInterval
	dp := time.Duration(period) * l.cfg.TickInterval
	e := entry{owner: owner, task: task}
	sup.Go0("async-periodic", func(ctx context.Context) {
		t := time.NewTimer(di)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-t.C:
		}
		for {
			if err := l.submitAsync(e); err != nil {
				runGuarded(l.log, e)
			}
			t.Reset(dp)
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-t.C:
			}
		}
	})
	return nil
}
