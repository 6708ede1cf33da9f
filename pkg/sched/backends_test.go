package sched

import (
	"sync"
	"time"
)

// Test doubles shared by the facade, capability, and fallback tests. The
// recording backends run submitted tasks synchronously so liveness can be
// asserted without timing games.

type fakeLocator struct {
	mu       sync.Mutex
	services map[string]any
	lookups  map[string]int
}

func newFakeLocator() *fakeLocator {
	return &fakeLocator{services: map[string]any{}, lookups: map[string]int{}}
}

func (f *fakeLocator) register(name string, svc any) *fakeLocator {
	f.services[name] = svc
	return f
}

func (f *fakeLocator) Lookup(name string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups[name]++
	v, ok := f.services[name]
	return v, ok
}

func (f *fakeLocator) lookupCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups[name]
}

type submission struct {
	op     string
	owner  string
	delay  int64
	period int64
	dDelay time.Duration
	dInit  time.Duration
	dPer   time.Duration
	target any
}

type recorder struct {
	mu    sync.Mutex
	calls []submission
}

func (r *recorder) add(s submission) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) all() []submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]submission, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recorder) ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.op)
	}
	return out
}

// fakeMain implements MainThreadScheduler, recording and running inline.
type fakeMain struct{ recorder }

func (m *fakeMain) Submit(owner string, task Task) error {
	m.add(submission{op: "submit", owner: owner})
	task()
	return nil
}

func (m *fakeMain) SubmitDelayed(owner string, task Task, delay int64) error {
	m.add(submission{op: "submit_delayed", owner: owner, delay: delay})
	task()
	return nil
}

func (m *fakeMain) SubmitPeriodic(owner string, task Task, delay, period int64) error {
	m.add(submission{op: "submit_periodic", owner: owner, delay: delay, period: period})
	task()
	return nil
}

func (m *fakeMain) SubmitAsync(owner string, task Task) error {
	m.add(submission{op: "submit_async", owner: owner})
	task()
	return nil
}

func (m *fakeMain) SubmitAsyncDelayed(owner string, task Task, delay int64) error {
	m.add(submission{op: "submit_async_delayed", owner: owner, delay: delay})
	task()
	return nil
}

func (m *fakeMain) SubmitAsyncPeriodic(owner string, task Task, delay, period int64) error {
	m.add(submission{op: "submit_async_periodic", owner: owner, delay: delay, period: period})
	task()
	return nil
}

// fakeGlobal implements GlobalScheduler.
type fakeGlobal struct{ recorder }

func (g *fakeGlobal) Run(owner string, task Task) error {
	g.add(submission{op: "run", owner: owner})
	task()
	return nil
}

func (g *fakeGlobal) RunDelayed(owner string, task Task, delay int64) error {
	g.add(submission{op: "run_delayed", owner: owner, delay: delay})
	task()
	return nil
}

func (g *fakeGlobal) RunAtFixedRate(owner string, task Task, delay, period int64) error {
	g.add(submission{op: "run_at_fixed_rate", owner: owner, delay: delay, period: period})
	task()
	return nil
}

// fakeAsync implements AsyncScheduler.
type fakeAsync struct{ recorder }

func (a *fakeAsync) RunNow(owner string, task Task) error {
	a.add(submission{op: "run_now", owner: owner})
	task()
	return nil
}

func (a *fakeAsync) RunDelayed(owner string, task Task, delay time.Duration) error {
	a.add(submission{op: "run_delayed", owner: owner, dDelay: delay})
	task()
	return nil
}

func (a *fakeAsync) RunAtFixedRate(owner string, task Task, initial, period time.Duration) error {
	a.add(submission{op: "run_at_fixed_rate", owner: owner, dInit: initial, dPer: period})
	task()
	return nil
}

// fakeRegions implements RegionScheduler.
type fakeRegions struct{ recorder }

func (r *fakeRegions) RunForEntity(owner string, entity Entity, task Task) error {
	r.add(submission{op: "for_entity", owner: owner, target: entity})
	task()
	return nil
}

func (r *fakeRegions) RunForLocation(owner string, location Location, task Task) error {
	r.add(submission{op: "for_location", owner: owner, target: location})
	task()
	return nil
}

// shardedLocator wires a full healthy sharded host.
func shardedLocator(main *fakeMain, g *fakeGlobal, a *fakeAsync, r *fakeRegions) *fakeLocator {
	return newFakeLocator().
		register(ServiceShardedWorld, struct{}{}).
		register(ServiceShardedGlobal, g).
		register(ServiceShardedAsync, a).
		register(ServiceShardedRegions, r).
		register(ServiceMainThread, main)
}
