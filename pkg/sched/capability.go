package sched

import (
	logx "worldsched/pkg/logx"
)

// ShardedModelActive reports which world model the host runs. The first call
// resolves it through the Locator; the result is memoized for the lifetime of
// the Scheduler (the host's world model is fixed at process start).
//
// Absence of the sharded backend is a valid, expected outcome: it is never
// logged as a failure and no error can surface from this query.
func (s *Scheduler) ShardedModelActive() bool {
	s.detectOnce.Do(s.detect)
	return s.sharded
}

func (s *Scheduler) detect() {
	if s.host == nil {
		return
	}

	_, present := s.host.Lookup(ServiceShardedWorld)
	s.sharded = present
	if present {
		s.binding = newShardedBinding(s.host)
		if err := s.binding.resolveErr(); err != nil {
			// Present but partially unresolvable. Per-operation fallbacks
			// carry the details; this is a one-time heads-up only.
			s.log.Debug("sharded model detected with unresolved services", logx.Err(err))
		}
	}

	if v, ok := s.host.Lookup(ServiceMainThread); ok {
		if m, ok := v.(MainThreadScheduler); ok {
			s.main = m
		} else {
			s.log.Debug("main-thread scheduler has unexpected shape", logx.Any("type", v))
		}
	}

	s.log.Debug("world model detected", logx.Bool("sharded", s.sharded))
}
