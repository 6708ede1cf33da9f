package sched

import (
	"testing"
	"time"
)

func TestTicksToMillis(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ticks int64
		want  int64
	}{
		{0, 0},
		{1, 50},
		{20, 1000},
		{40, 2000},
		{1200, 60000},
	}
	for _, tt := range tests {
		if got := TicksToMillis(tt.ticks); got != tt.want {
			t.Fatalf("TicksToMillis(%d) = %d, want %d", tt.ticks, got, tt.want)
		}
	}
}

func TestTicksToDuration(t *testing.T) {
	t.Parallel()
	if got := TicksToDuration(20); got != time.Second {
		t.Fatalf("TicksToDuration(20) = %v, want %v", got, time.Second)
	}
	if got := TicksToDuration(0); got != 0 {
		t.Fatalf("TicksToDuration(0) = %v, want 0", got)
	}
}

func TestClamping(t *testing.T) {
	t.Parallel()
	if got := clampDelay(-5); got != 0 {
		t.Fatalf("clampDelay(-5) = %d, want 0", got)
	}
	if got := clampDelay(7); got != 7 {
		t.Fatalf("clampDelay(7) = %d, want 7", got)
	}
	if got := clampPeriod(0); got != 1 {
		t.Fatalf("clampPeriod(0) = %d, want 1", got)
	}
	if got := clampPeriod(4); got != 4 {
		t.Fatalf("clampPeriod(4) = %d, want 4", got)
	}
}
