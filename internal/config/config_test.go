package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
world:
  model: sharded
  tick_interval: 25ms
  async_workers: 8
logging:
  level: debug
  console: true
audit:
  driver: sqlite
  path: /tmp/audit.db
  retention: 72h
`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.Sharded() {
		t.Fatal("sharded model not selected")
	}
	tick, err := cfg.TickInterval()
	if err != nil || tick != 25*time.Millisecond {
		t.Fatalf("TickInterval = %v, %v", tick, err)
	}
	if cfg.World.AsyncWorkers != 8 {
		t.Fatalf("async_workers = %d", cfg.World.AsyncWorkers)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging.level = %q", cfg.Logging.Level)
	}
	ac, err := cfg.AuditConfig()
	if err != nil {
		t.Fatalf("AuditConfig: %v", err)
	}
	if ac.Driver != "sqlite" || ac.Retention != 72*time.Hour {
		t.Fatalf("audit config = %+v", ac)
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json",
		`{"world": {"model": "mainloop"}, "logging": {"level": "warn", "console": false}}`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Sharded() {
		t.Fatal("sharded selected for mainloop config")
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
}

func TestParseDefaultsApply(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
world:
  model: mainloop
`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// Fields absent from the file keep Default() values.
	if cfg.Logging.Level != "info" || !cfg.Logging.Console {
		t.Fatalf("defaults not applied: %+v", cfg.Logging)
	}
}

func TestParseRejectsUnknownField(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
world:
  model: mainloop
  shards: 4
`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestParseRejectsUnknownModel(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
world:
  model: quantum
`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("unknown world model accepted")
	}
}

func TestParseRejectsBadDuration(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
world:
  model: mainloop
  tick_interval: soon
`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("bad duration accepted")
	}
}

func TestValidateDefault(t *testing.T) {
	t.Parallel()
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"50ms", 50 * time.Millisecond, false},
		{"1h30m", 90 * time.Minute, false},
		{"nope", 0, true},
	}
	for _, c := range cases {
		got, err := ParseDurationField("field", c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseDurationField(%q): no error", c.in)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("ParseDurationField(%q) = %v, %v; want %v", c.in, got, err, c.want)
		}
	}
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)

	cfg := Default()
	m.publish(cfg)

	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("received a different config pointer")
		}
	default:
		t.Fatal("no config published")
	}

	m.Unsubscribe(ch)
	if _, open := <-ch; open {
		t.Fatal("channel still open after Unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	m.publish(cfg)
}

func TestPublishDropsOldestForSlowSubscriber(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first, second := Default(), Default()
	m.publish(first)
	m.publish(second)

	select {
	case got := <-ch:
		if got != second {
			t.Fatal("oldest config not dropped for slow subscriber")
		}
	default:
		t.Fatal("no config buffered")
	}
}

func TestLoadCommitsAndGet(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
world:
  model: sharded
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get did not return the committed config")
	}
}
