// Package sharded implements the sharded world model: a global coordinating
// region, lazily created per-region loops, and a separate pool for work that
// never touches world state.
package sharded

import (
	"context"
	"time"

	"worldsched/internal/host"
	"worldsched/internal/host/mainloop"
	logx "worldsched/pkg/logx"
	"worldsched/pkg/sched"
)

type Config struct {
	// TickInterval is shared by the global and per-region loops.
	TickInterval time.Duration

	AsyncWorkers int
	QueueSize    int
}

// World owns the sharded backend's schedulers. Its registry entry under
// sched.ServiceShardedWorld is what capability detection finds.
type World struct {
	log     logx.Logger
	global  *mainloop.Loop
	regions *Regions
	async   *AsyncPool
}

func NewWorld(cfg Config, log logx.Logger) *World {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("component", "sharded"))

	loopCfg := mainloop.Config{
		TickInterval: cfg.TickInterval,
		QueueSize:    cfg.QueueSize,
	}
	return &World{
		log:     log,
		global:  mainloop.New(loopCfg, log.With(logx.String("region", "global"))),
		regions: newRegions(loopCfg, log),
		async:   newAsyncPool(cfg.AsyncWorkers, cfg.QueueSize, log),
	}
}

func (w *World) Start(ctx context.Context) {
	w.global.Start(ctx)
	w.regions.start(ctx)
	w.async.start(ctx)
	w.log.Info("sharded world started")
}

func (w *World) Stop(ctx context.Context) {
	w.async.stop(ctx)
	w.regions.stop(ctx)
	w.global.Stop(ctx)
	w.log.Info("sharded world stopped")
}

// RegisterAll publishes the world's services in the host registry. The global
// loop doubles as the main-thread service so legacy-path submissions land on
// the coordinating thread.
func (w *World) RegisterAll(reg *host.Registry) {
	reg.Register(sched.ServiceShardedWorld, w)
	reg.Register(sched.ServiceShardedGlobal, globalRegion{w.global})
	reg.Register(sched.ServiceShardedAsync, w.async)
	reg.Register(sched.ServiceShardedRegions, w.regions)
	reg.Register(sched.ServiceMainThread, w.global)
}

// globalRegion adapts the coordinating loop to the sharded global surface.
type globalRegion struct {
	loop *mainloop.Loop
}

func (g globalRegion) Run(owner string, task sched.Task) error {
	return g.loop.Submit(owner, task)
}

func (g globalRegion) RunDelayed(owner string, task sched.Task, delay int64) error {
	return g.loop.SubmitDelayed(owner, task, delay)
}

func (g globalRegion) RunAtFixedRate(owner string, task sched.Task, delay, period int64) error {
	return g.loop.SubmitPeriodic(owner, task, delay, period)
}
