package config

import (
	"fmt"
	"strings"
	"time"

	"worldsched/internal/audit"
	"worldsched/internal/observability/debughttp"
	logx "worldsched/pkg/logx"
)

// Config is the host simulator's configuration (JSON or YAML on disk).
type Config struct {
	World   World   `json:"world"`
	Logging Logging `json:"logging"`
	Audit   Audit   `json:"audit"`
	Debug   Debug   `json:"debug,omitempty"`
}

type World struct {
	// Model selects the world model: "mainloop" or "sharded".
	Model string `json:"model"`

	// TickInterval overrides the 50 ms tick, mainly for local experiments.
	TickInterval string `json:"tick_interval,omitempty"`

	AsyncWorkers int `json:"async_workers,omitempty"`
	QueueSize    int `json:"queue_size,omitempty"`
}

type Logging struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

type Audit struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
	Retention   string `json:"retention,omitempty"`
	PruneSpec   string `json:"prune_spec,omitempty"`
}

// Debug configures the optional operator endpoint (pprof and the fallback
// journal). Off by default.
type Debug struct {
	Enabled bool   `json:"enabled,omitempty"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
}

const (
	ModelMainLoop = "mainloop"
	ModelSharded  = "sharded"
)

func Default() *Config {
	return &Config{
		World:   World{Model: ModelMainLoop},
		Logging: Logging{Level: "info", Console: true},
	}
}

func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.World.Model)) {
	case ModelMainLoop, ModelSharded:
	default:
		return fmt.Errorf("world.model: unknown model %q", c.World.Model)
	}
	if _, err := c.TickInterval(); err != nil {
		return err
	}
	if _, err := ParseDurationField("audit.busy_timeout", c.Audit.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("audit.retention", c.Audit.Retention); err != nil {
		return err
	}
	return nil
}

// Sharded reports whether the sharded model is selected.
func (c *Config) Sharded() bool {
	return strings.EqualFold(strings.TrimSpace(c.World.Model), ModelSharded)
}

func (c *Config) TickInterval() (time.Duration, error) {
	return ParseDurationField("world.tick_interval", c.World.TickInterval)
}

func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
	}
}

func (c *Config) AuditConfig() (audit.Config, error) {
	busy, err := ParseDurationField("audit.busy_timeout", c.Audit.BusyTimeout)
	if err != nil {
		return audit.Config{}, err
	}
	retention, err := ParseDurationField("audit.retention", c.Audit.Retention)
	if err != nil {
		return audit.Config{}, err
	}
	return audit.Config{
		Driver:      c.Audit.Driver,
		Path:        c.Audit.Path,
		BusyTimeout: busy,
		Retention:   retention,
		PruneSpec:   c.Audit.PruneSpec,
	}, nil
}

func (c *Config) DebugConfig() debughttp.Config {
	return debughttp.Config{
		Enabled: c.Debug.Enabled,
		Addr:    c.Debug.Addr,
		Token:   c.Debug.Token,
	}
}
