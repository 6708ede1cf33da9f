package sharded

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"worldsched/internal/host/mainloop"
	"worldsched/internal/runtime/supervisor"
	logx "worldsched/pkg/logx"
	"worldsched/pkg/sched"
)

// AsyncPool is the sharded model's pool for work that never touches world
// state. Its surface is duration-denominated. Implements sched.AsyncScheduler.
type AsyncPool struct {
	workers int
	log     logx.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	queue   chan job
	sup     *supervisor.Supervisor
}

type job struct {
	owner string
	task  sched.Task
}

func newAsyncPool(workers, queueSize int, log logx.Logger) *AsyncPool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	p := &AsyncPool{
		workers: workers,
		log:     log.With(logx.String("component", "async-pool")),
	}
	p.queue = make(chan job, queueSize)
	return p
}

func (p *AsyncPool) start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.sup = supervisor.New(ctx, supervisor.WithLogger(p.log))

	stopCh := p.stopCh
	for i := 0; i < p.workers; i++ {
		p.sup.Go0("worker", func(ctx context.Context) {
			for {
				select {
				case <-ctx.Done():
					return
				case <-stopCh:
					return
				case j := <-p.queue:
					p.runOne(j)
				}
			}
		})
	}
	p.log.Debug("async pool started", logx.Int("workers", p.workers))
}

func (p *AsyncPool) stop(ctx context.Context) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stopCh := p.stopCh
	sup := p.sup
	p.mu.Unlock()

	close(stopCh)
	if sup != nil {
		_ = sup.Stop(ctx)
	}
}

func (p *AsyncPool) runOne(j job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("async task panicked",
				logx.String("owner", j.owner), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	j.task()
}

func (p *AsyncPool) enqueue(j job) error {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		return mainloop.ErrStopped
	}
	select {
	case p.queue <- j:
		return nil
	default:
		return mainloop.ErrQueueFull
	}
}

// ---- sched.AsyncScheduler ----

func (p *AsyncPool) RunNow(owner string, task sched.Task) error {
	return p.enqueue(job{owner: owner, task: task})
}

func (p *AsyncPool) RunDelayed(owner string, task sched.Task, delay time.Duration) error {
	p.mu.Lock()
	running := p.running
	sup := p.sup
	stopCh := p.stopCh
	p.mu.Unlock()
	if !running || sup == nil {
		return mainloop.ErrStopped
	}
	j := job{owner: owner, task: task}
	sup.Go0("delayed", func(ctx context.Context) {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-t.C:
		}
		// Saturated pool at fire time: run on this goroutine instead.
		if err := p.enqueue(j); err != nil {
			p.runOne(j)
		}
	})
	return nil
}

func (p *AsyncPool) RunAtFixedRate(owner string, task sched.Task, initial, period time.Duration) error {
	p.mu.Lock()
	running := p.running
	sup := p.sup
	stopCh := p.stopCh
	p.mu.Unlock()
	if !running || sup == nil {
		return mainloop.ErrStopped
	}
	if period <= 0 {
		period = sched.TickDuration
	}
	j := job{owner: owner, task: task}
	sup.Go0("periodic", func(ctx context.Context) {
		t := time.NewTimer(initial)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-t.C:
		}
		for {
			if err := p.enqueue(j); err != nil {
				p.runOne(j)
			}
			t.Reset(period)
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
