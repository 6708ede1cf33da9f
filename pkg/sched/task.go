package sched

import (
	"context"
	"time"
)

// Task is an opaque, zero-argument unit of work. The dispatch layer hands it
// to a backend (or a fallback worker) exactly once per submission and retains
// no reference afterwards.
type Task func()

// Entity is an opaque handle owned by the host. Under the sharded model the
// backend derives the owning region from it; the dispatch layer never
// inspects it.
type Entity any

// Location is an opaque positional handle owned by the host, treated the same
// way as Entity.
type Location any

// Locator is the host's capability-query primitive: "does service X exist in
// this process". Absence is a valid answer, never an error.
type Locator interface {
	Lookup(name string) (any, bool)
}

// Well-known host service names resolved through the Locator.
const (
	// ServiceMainThread is the single-threaded backend. Present under both
	// world models (the sharded model keeps it for legacy-path submissions).
	ServiceMainThread = "scheduler.main"

	// ServiceShardedWorld is the sharded-model marker. Its presence is what
	// capability detection checks; the value itself is never used.
	ServiceShardedWorld = "sharded.world"

	ServiceShardedGlobal  = "sharded.global"
	ServiceShardedAsync   = "sharded.async"
	ServiceShardedRegions = "sharded.regions"
)

// MainThreadScheduler is the single-threaded backend surface. Delays and
// periods are tick counts. Every submission names the owning component.
type MainThreadScheduler interface {
	Submit(owner string, task Task) error
	SubmitDelayed(owner string, task Task, delay int64) error
	SubmitPeriodic(owner string, task Task, delay, period int64) error
	SubmitAsync(owner string, task Task) error
	SubmitAsyncDelayed(owner string, task Task, delay int64) error
	SubmitAsyncPeriodic(owner string, task Task, delay, period int64) error
}

// GlobalScheduler is the sharded backend's coordinating-region scheduler.
// Tick-denominated, like the main-thread surface.
type GlobalScheduler interface {
	Run(owner string, task Task) error
	RunDelayed(owner string, task Task, delay int64) error
	RunAtFixedRate(owner string, task Task, delay, period int64) error
}

// AsyncScheduler is the sharded backend's non-state-touching worker pool.
// Unlike the tick-denominated surfaces it expects wall-clock durations.
type AsyncScheduler interface {
	RunNow(owner string, task Task) error
	RunDelayed(owner string, task Task, delay time.Duration) error
	RunAtFixedRate(owner string, task Task, initial, period time.Duration) error
}

// RegionScheduler submits to the per-region scheduler owning the given
// handle's current region.
type RegionScheduler interface {
	RunForEntity(owner string, entity Entity, task Task) error
	RunForLocation(owner string, location Location, task Task) error
}

// FallbackRecord describes one degraded dispatch.
type FallbackRecord struct {
	At     time.Time
	Owner  string
	Op     string
	Action string
	Reason string
}

// Recorder persists degraded dispatches for operators. Implementations must
// tolerate concurrent calls; errors are swallowed by the dispatch layer
// (recording is best-effort and never blocks a fallback from running).
type Recorder interface {
	RecordFallback(ctx context.Context, r FallbackRecord) error
}

// EventFallback is the eventbus event type published for every degraded
// dispatch. The event Data is a FallbackRecord.
const EventFallback = "dispatch.fallback"
