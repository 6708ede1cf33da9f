package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"worldsched/internal/audit"
	"worldsched/internal/config"
	"worldsched/internal/eventbus"
	"worldsched/internal/host"
	"worldsched/internal/host/mainloop"
	"worldsched/internal/host/sharded"
	"worldsched/internal/observability/debughttp"
	logx "worldsched/pkg/logx"
	"worldsched/pkg/sched"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config (json or yaml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		cfg = config.Default()
		mgr.Commit(cfg)
	}

	logSvc, log := logx.New(cfg.LogConfig())
	defer logSvc.Close()
	mgr.SetLogger(log)
	mgr.SetValidator(func(_ context.Context, c *config.Config) error { return c.Validate() })

	bus := eventbus.New()

	auditCfg, err := cfg.AuditConfig()
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	store, err := audit.Open(auditCfg, log)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	pruner := audit.StartPruner(store, auditCfg, log)

	dbg := debughttp.New(cfg.DebugConfig(), store, log)
	if err := dbg.Start(); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	// Host side: boot the configured world model and publish its services.
	reg := host.NewRegistry()
	tick, _ := cfg.TickInterval()
	var stopHost func(context.Context)
	if cfg.Sharded() {
		world := sharded.NewWorld(sharded.Config{
			TickInterval: tick,
			AsyncWorkers: cfg.World.AsyncWorkers,
			QueueSize:    cfg.World.QueueSize,
		}, log)
		world.Start(ctx)
		world.RegisterAll(reg)
		stopHost = world.Stop
	} else {
		loop := mainloop.New(mainloop.Config{
			TickInterval: tick,
			QueueSize:    cfg.World.QueueSize,
			AsyncWorkers: cfg.World.AsyncWorkers,
		}, log)
		loop.Start(ctx)
		reg.Register(sched.ServiceMainThread, loop)
		stopHost = loop.Stop
	}

	opts := []sched.Option{sched.WithLogger(log), sched.WithBus(bus)}
	if store != nil {
		opts = append(opts, sched.WithRecorder(store))
	}
	disp := sched.New("hostsim", reg, opts...)

	log.Info("hostsim started",
		logx.String("model", cfg.World.Model), logx.Bool("sharded", disp.ShardedModelActive()))

	// Demo workload: one of each operation class.
	disp.RunNow(func() { log.Info("state task ran on coordinating thread") })
	disp.RunTimer(func() { log.Debug("heartbeat") }, 20, 100)
	disp.RunAsyncLater(func() { log.Info("background task ran") }, 10)
	disp.RunForLocation(sharded.Location{X: 10, Z: -40}, func() {
		log.Info("region task ran")
	})

	// Hot-reload log level on config change.
	sub := mgr.Subscribe(1)
	defer mgr.Unsubscribe(sub)
	go func() {
		for c := range sub {
			logSvc.Apply(c.LogConfig())
		}
	}()
	go func() {
		if err := mgr.Watch(ctx); err != nil {
			log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = disp.Close(shutdownCtx)
	stopHost(shutdownCtx)
	dbg.Stop(shutdownCtx)
	pruner.Stop()
	if store != nil {
		_ = store.Close()
	}
}
