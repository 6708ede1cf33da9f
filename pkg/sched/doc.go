// Package sched routes fire-and-forget tasks to whichever scheduling backend
// the host runtime provides.
//
// A host exposes either the single-threaded model (all state-touching work
// serialized on one main loop) or the sharded model (a global coordinating
// region, independently scheduled world regions, and a separate pool for
// non-state-touching background work). Callers hold one Scheduler and never
// learn which model is active: the facade detects the model once, converts
// time units where a backend expects wall-clock durations, and degrades to a
// safe local fallback when a backend submission cannot be completed.
//
// The package is a router, not a scheduler: it owns no queues and no timer
// wheel. The only goroutines it ever starts are fallback workers, and those
// exist only while a backend is failing.
//
// Contract highlights:
//   - Submission never blocks and never reports an error to the caller. A
//     failed backend submission is logged at warn level and the task still
//     runs, possibly degraded (once instead of periodically, or on the wrong
//     thread).
//   - The active world model is fixed for the lifetime of a host, so the
//     detection result is memoized on first use.
//   - There is no cancellation handle for submitted tasks. Close stops
//     fallback workers only; tasks handed to a live backend belong to it.
package sched
