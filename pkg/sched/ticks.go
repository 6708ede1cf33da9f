package sched

import "time"

// The host world model advances at a fixed 20 ticks per second, so one tick
// is exactly 50 ms of wall-clock time. Conversion is applied only where a
// backend surface expects durations (the async pool); tick-denominated
// surfaces receive raw tick counts.
const (
	MillisPerTick = 50
	TickDuration  = MillisPerTick * time.Millisecond
)

// TicksToMillis converts a tick count to wall-clock milliseconds.
func TicksToMillis(ticks int64) int64 {
	return ticks * MillisPerTick
}

// TicksToDuration converts a tick count to a time.Duration.
func TicksToDuration(ticks int64) time.Duration {
	return time.Duration(ticks) * TickDuration
}

// clampDelay normalizes a caller-supplied delay: negative means "now".
func clampDelay(ticks int64) int64 {
	if ticks < 0 {
		return 0
	}
	return ticks
}

// clampPeriod normalizes a caller-supplied period: anything below one tick
// runs every tick.
func clampPeriod(ticks int64) int64 {
	if ticks < 1 {
		return 1
	}
	return ticks
}
