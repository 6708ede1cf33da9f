package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "worldsched/pkg/logx"
	"worldsched/pkg/sched"
)

var ErrDisabled = errors.New("audit storage disabled")

// Config configures the journal.
//
// Driver values:
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", the journal is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default

	// Retention bounds how long records are kept; 0 keeps them forever.
	Retention time.Duration
	// PruneSpec is the cron schedule for retention pruning. Default "@hourly".
	PruneSpec string
}

// Entry is a persisted FallbackRecord. Keep it compact and schema-stable.
type Entry struct {
	ID     string
	At     time.Time
	Owner  string
	Op     string
	Action string
	Reason string
}

// Store is the journal API. It satisfies sched.Recorder.
type Store interface {
	RecordFallback(ctx context.Context, r sched.FallbackRecord) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if the journal is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown audit driver: " + driver)
	}
}
