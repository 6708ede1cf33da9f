package sched

import (
	"context"
	"sync"

	"worldsched/internal/eventbus"
	logx "worldsched/pkg/logx"
)

// Scheduler is the public dispatch facade. One instance is bound to one host
// and one owning component; all eight operations are fire-and-forget and
// never surface an error to the caller.
type Scheduler struct {
	owner string
	host  Locator
	log   logx.Logger
	bus   eventbus.Bus
	rec   Recorder

	detectOnce sync.Once
	sharded    bool
	binding    *shardedBinding
	main       MainThreadScheduler

	fb *fallback
}

type Option func(*Scheduler)

func WithLogger(log logx.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithBus publishes a dispatch.fallback event for every degraded dispatch.
func WithBus(bus eventbus.Bus) Option {
	return func(s *Scheduler) { s.bus = bus }
}

// WithRecorder persists degraded dispatches (best-effort).
func WithRecorder(rec Recorder) Option {
	return func(s *Scheduler) { s.rec = rec }
}

// New builds a Scheduler for the given owning component. The host Locator is
// queried lazily on the first submission.
func New(owner string, host Locator, opts ...Option) *Scheduler {
	s := &Scheduler{
		owner: owner,
		host:  host,
		log:   logx.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(logx.String("component", "dispatch"), logx.String("owner", owner))
	s.fb = newFallback(owner, s.log, s.bus, s.rec)
	return s
}

// Close stops fallback workers, including periodic fallback loops. This is a
// deliberate extension: tasks already handed to a live backend are unaffected
// and cannot be withdrawn.
func (s *Scheduler) Close(ctx context.Context) error {
	return s.fb.stop(ctx)
}

// RunNow submits the task to the coordinating thread immediately.
func (s *Scheduler) RunNow(task Task) {
	if task == nil {
		return
	}
	if s.ShardedModelActive() {
		if err := s.binding.globalNow(s.owner, task); err != nil {
			s.fb.runSync("run_now", task, err)
		}
		return
	}
	s.submitMain("run_now", task, func(m MainThreadScheduler) error {
		return m.Submit(s.owner, task)
	})
}

// RunLater submits the task to the coordinating thread after delay ticks.
// The fallback for this path runs the task once immediately; the global path
// does not emulate timers.
func (s *Scheduler) RunLater(task Task, delay int64) {
	if task == nil {
		return
	}
	delay = clampDelay(delay)
	if s.ShardedModelActive() {
		if err := s.binding.globalDelayed(s.owner, task, delay); err != nil {
			s.fb.runSync("run_later", task, err)
		}
		return
	}
	s.submitMain("run_later", task, func(m MainThreadScheduler) error {
		return m.SubmitDelayed(s.owner, task, delay)
	})
}

// RunTimer submits the task to the coordinating thread on a fixed period
// (both in ticks) after an initial delay.
func (s *Scheduler) RunTimer(task Task, delay, period int64) {
	if task == nil {
		return
	}
	delay, period = clampDelay(delay), clampPeriod(period)
	if s.ShardedModelActive() {
		if err := s.binding.globalPeriodic(s.owner, task, delay, period); err != nil {
			s.fb.runSync("run_timer", task, err)
		}
		return
	}
	s.submitMain("run_timer", task, func(m MainThreadScheduler) error {
		return m.SubmitPeriodic(s.owner, task, delay, period)
	})
}

// RunAsyncNow submits the task to the background pool immediately.
func (s *Scheduler) RunAsyncNow(task Task) {
	if task == nil {
		return
	}
	if s.ShardedModelActive() {
		if err := s.binding.asyncNow(s.owner, task); err != nil {
			s.fb.spawnNow("run_async_now", task, err)
		}
		return
	}
	if err := s.trySubmitMain(func(m MainThreadScheduler) error {
		return m.SubmitAsync(s.owner, task)
	}); err != nil {
		s.fb.spawnNow("run_async_now", task, err)
	}
}

// RunAsyncLater submits the task to the background pool after delay ticks.
// The sharded async surface is duration-denominated, so the delay is
// converted to wall-clock time before submission.
func (s *Scheduler) RunAsyncLater(task Task, delay int64) {
	if task == nil {
		return
	}
	delay = clampDelay(delay)
	if s.ShardedModelActive() {
		d := TicksToDuration(delay)
		if err := s.binding.asyncDelayed(s.owner, task, d); err != nil {
			s.fb.spawnDelayed("run_async_later", task, d, err)
		}
		return
	}
	if err := s.trySubmitMain(func(m MainThreadScheduler) error {
		return m.SubmitAsyncDelayed(s.owner, task, delay)
	}); err != nil {
		s.fb.spawnDelayed("run_async_later", task, TicksToDuration(delay), err)
	}
}

// RunAsyncTimer submits the task to the background pool on a fixed period
// after an initial delay (both in ticks; converted for the sharded surface).
func (s *Scheduler) RunAsyncTimer(task Task, delay, period int64) {
	if task == nil {
		return
	}
	delay, period = clampDelay(delay), clampPeriod(period)
	if s.ShardedModelActive() {
		di, dp := TicksToDuration(delay), TicksToDuration(period)
		if err := s.binding.asyncPeriodic(s.owner, task, di, dp); err != nil {
			s.fb.spawnPeriodic("run_async_timer", task, di, dp, err)
		}
		return
	}
	if err := s.trySubmitMain(func(m MainThreadScheduler) error {
		return m.SubmitAsyncPeriodic(s.owner, task, delay, period)
	}); err != nil {
		s.fb.spawnPeriodic("run_async_timer", task, TicksToDuration(delay), TicksToDuration(period), err)
	}
}

// RunForEntity submits the task to the scheduler owning the entity's current
// region. Without the sharded model there is no region concept and the task
// runs on the coordinating thread; the handle is not inspected or validated.
func (s *Scheduler) RunForEntity(entity Entity, task Task) {
	if task == nil {
		return
	}
	if s.ShardedModelActive() {
		if err := s.binding.forEntity(s.owner, entity, task); err != nil {
			s.fb.viaMain("run_for_entity", s.main, task, err)
		}
		return
	}
	s.submitMain("run_for_entity", task, func(m MainThreadScheduler) error {
		return m.Submit(s.owner, task)
	})
}

// RunForLocation submits the task to the scheduler owning the location's
// current region, degrading exactly like RunForEntity.
func (s *Scheduler) RunForLocation(location Location, task Task) {
	if task == nil {
		return
	}
	if s.ShardedModelActive() {
		if err := s.binding.forLocation(s.owner, location, task); err != nil {
			s.fb.viaMain("run_for_location", s.main, task, err)
		}
		return
	}
	s.submitMain("run_for_location", task, func(m MainThreadScheduler) error {
		return m.Submit(s.owner, task)
	})
}

// submitMain routes a single-threaded-model submission, degrading to a
// synchronous run when the main backend is absent or rejects the submission.
// The task must run even then: scheduling never silently drops work.
func (s *Scheduler) submitMain(op string, task Task, submit func(MainThreadScheduler) error) {
	if err := s.trySubmitMain(submit); err != nil {
		s.fb.runSync(op, task, err)
	}
}

func (s *Scheduler) trySubmitMain(submit func(MainThreadScheduler) error) error {
	if s.main == nil {
		return ErrServiceAbsent
	}
	return invoke(func() error { return submit(s.main) })
}
