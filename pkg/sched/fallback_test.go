package sched

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"worldsched/internal/eventbus"
)

var errBackendDown = errors.New("backend down")

// failing backends satisfy the sharded interfaces but reject every submission.

type failingGlobal struct{}

func (failingGlobal) Run(string, Task) error               { return errBackendDown }
func (failingGlobal) RunDelayed(string, Task, int64) error { return errBackendDown }
func (failingGlobal) RunAtFixedRate(string, Task, int64, int64) error {
	return errBackendDown
}

type failingAsync struct{}

func (failingAsync) RunNow(string, Task) error                    { return errBackendDown }
func (failingAsync) RunDelayed(string, Task, time.Duration) error { return errBackendDown }
func (failingAsync) RunAtFixedRate(string, Task, time.Duration, time.Duration) error {
	return errBackendDown
}

type failingRegions struct{}

func (failingRegions) RunForEntity(string, Entity, Task) error     { return errBackendDown }
func (failingRegions) RunForLocation(string, Location, Task) error { return errBackendDown }

// panicGlobal simulates a backend that blows up mid-call instead of returning
// an error.
type panicGlobal struct{}

func (panicGlobal) Run(string, Task) error                          { panic("backend exploded") }
func (panicGlobal) RunDelayed(string, Task, int64) error            { panic("backend exploded") }
func (panicGlobal) RunAtFixedRate(string, Task, int64, int64) error { panic("backend exploded") }

type recSpy struct {
	mu      sync.Mutex
	records []FallbackRecord
}

func (r *recSpy) RecordFallback(_ context.Context, rec FallbackRecord) error {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	return nil
}

func (r *recSpy) all() []FallbackRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FallbackRecord, len(r.records))
	copy(out, r.records)
	return out
}

func brokenShardedLocator() *fakeLocator {
	return newFakeLocator().
		register(ServiceShardedWorld, struct{}{}).
		register(ServiceShardedGlobal, failingGlobal{}).
		register(ServiceShardedAsync, failingAsync{}).
		register(ServiceShardedRegions, failingRegions{})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestEveryOperationRunsTaskWithFailingBackends(t *testing.T) {
	t.Parallel()
	s := New("test", brokenShardedLocator())
	defer s.Close(context.Background())

	var runs atomic.Int64
	runAllOps(s, func() { runs.Add(1) })

	// Async and periodic fallbacks land on workers; give them a moment.
	waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 8 })
}

func TestEveryOperationRunsTaskWithEmptyHost(t *testing.T) {
	t.Parallel()
	s := New("test", newFakeLocator())
	defer s.Close(context.Background())

	var runs atomic.Int64
	runAllOps(s, func() { runs.Add(1) })

	waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 8 })
}

func TestPanickingBackendDegradesToSyncRun(t *testing.T) {
	t.Parallel()
	loc := newFakeLocator().
		register(ServiceShardedWorld, struct{}{}).
		register(ServiceShardedGlobal, panicGlobal{})
	s := New("test", loc)
	defer s.Close(context.Background())

	ran := false
	s.RunNow(func() { ran = true })
	if !ran {
		t.Fatal("task did not run after backend panic")
	}
}

func TestPeriodicFallbackKeepsFiring(t *testing.T) {
	t.Parallel()
	s := New("test", brokenShardedLocator())
	defer s.Close(context.Background())

	var runs atomic.Int64
	// 1 tick delay, 1 tick period: expect several firings well inside a second.
	s.RunAsyncTimer(func() { runs.Add(1) }, 1, 1)

	waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 3 })
}

func TestCloseStopsPeriodicFallback(t *testing.T) {
	t.Parallel()
	s := New("test", brokenShardedLocator())

	var runs atomic.Int64
	s.RunAsyncTimer(func() { runs.Add(1) }, 1, 1)
	waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 1 })

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	after := runs.Load()
	time.Sleep(200 * time.Millisecond)
	if got := runs.Load(); got != after {
		t.Fatalf("periodic fallback still firing after Close: %d -> %d", after, got)
	}
}

func TestFallbackPublishesEventAndRecord(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8)
	defer unsub()

	rec := &recSpy{}
	s := New("questmod", brokenShardedLocator(), WithBus(bus), WithRecorder(rec))
	defer s.Close(context.Background())

	s.RunNow(func() {})

	select {
	case e := <-ch:
		if e.Type != EventFallback {
			t.Fatalf("event type = %q, want %q", e.Type, EventFallback)
		}
		r, ok := e.Data.(FallbackRecord)
		if !ok {
			t.Fatalf("event data is %T, want FallbackRecord", e.Data)
		}
		if r.Owner != "questmod" || r.Op != "run_now" || r.Action != "sync" {
			t.Fatalf("unexpected record: %+v", r)
		}
		if r.Reason == "" {
			t.Fatal("record has empty reason")
		}
	case <-time.After(time.Second):
		t.Fatal("no fallback event published")
	}

	waitFor(t, time.Second, func() bool { return len(rec.all()) == 1 })
	if got := rec.all()[0]; got.Op != "run_now" {
		t.Fatalf("recorded op = %q, want run_now", got.Op)
	}
}

func TestAffinityFallbackReroutesThroughMainThread(t *testing.T) {
	t.Parallel()
	main := &fakeMain{}
	loc := brokenShardedLocator().register(ServiceMainThread, main)
	s := New("test", loc)
	defer s.Close(context.Background())

	ran := false
	s.RunForEntity(nil, func() { ran = true })

	if !ran {
		t.Fatal("task did not run")
	}
	ops := main.ops()
	if len(ops) != 1 || ops[0] != "submit" {
		t.Fatalf("expected one main-thread submit, got %v", ops)
	}
}
