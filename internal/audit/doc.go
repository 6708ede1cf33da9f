// Package audit persists degraded dispatches so operators can see when and
// why the dispatch layer fell back.
//
// It currently supports:
//   - Appending fallback records (implements sched.Recorder)
//   - Reading recent records
//   - Cron-scheduled retention pruning
package audit
