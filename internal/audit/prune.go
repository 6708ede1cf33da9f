package audit

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	logx "worldsched/pkg/logx"
)

// Pruner trims journal records past the retention window on a cron schedule.
type Pruner struct {
	c *cron.Cron
}

// StartPruner begins retention pruning for the store. Returns nil when no
// retention is configured (records are kept forever).
func StartPruner(st Store, cfg Config, log logx.Logger) *Pruner {
	if st == nil || cfg.Retention <= 0 {
		return nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("component", "audit-pruner"))

	spec := cfg.PruneSpec
	if spec == "" {
		spec = "@hourly"
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		n, err := st.Prune(ctx, time.Now().Add(-cfg.Retention))
		if err != nil {
			log.Warn("retention prune failed", logx.Err(err))
			return
		}
		if n > 0 {
			log.Debug("retention prune", logx.Int64("removed", n))
		}
	})
	if err != nil {
		log.Warn("invalid prune schedule; pruning disabled", logx.String("spec", spec), logx.Err(err))
		return nil
	}
	c.Start()
	return &Pruner{c: c}
}

func (p *Pruner) Stop() {
	if p == nil || p.c == nil {
		return
	}
	<-p.c.Stop().Done()
}
