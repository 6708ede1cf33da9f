package debughttp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"worldsched/internal/audit"
	logx "worldsched/pkg/logx"
	"worldsched/pkg/sched"
)

func startServer(t *testing.T, cfg Config, store audit.Store) *Server {
	t.Helper()
	cfg.Enabled = true
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	s := New(cfg, store, logx.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, b
}

func TestDisabledDoesNotBind(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: false, Addr: "127.0.0.1:0"}, nil, logx.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.Addr() != "" {
		t.Fatal("disabled server bound a listener")
	}
}

func TestNonLoopbackWithoutTokenRefused(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Addr: "0.0.0.0:0"}, nil, logx.Nop())
	if err := s.Start(); err == nil {
		s.Stop(context.Background())
		t.Fatal("non-loopback bind without token accepted")
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	s := startServer(t, Config{}, nil)
	resp, body := get(t, "http://"+s.Addr()+"/healthz")
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz = %d %q", resp.StatusCode, body)
	}
}

func TestFallbacksEndpoint(t *testing.T) {
	t.Parallel()
	st, err := audit.Open(audit.Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "audit.db"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.RecordFallback(context.Background(), sched.FallbackRecord{
		At: time.Now(), Owner: "questmod", Op: "run_now", Action: "sync", Reason: "down",
	}); err != nil {
		t.Fatalf("RecordFallback: %v", err)
	}

	s := startServer(t, Config{}, st)
	resp, body := get(t, "http://"+s.Addr()+"/debug/fallbacks")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fallbacks = %d %q", resp.StatusCode, body)
	}
	var entries []audit.Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		t.Fatalf("decode: %v\n%s", err, body)
	}
	if len(entries) != 1 || entries[0].Owner != "questmod" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	resp, _ = get(t, "http://"+s.Addr()+"/debug/fallbacks?limit=bogus")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bogus limit = %d, want 400", resp.StatusCode)
	}
}

func TestFallbacksWithoutJournal(t *testing.T) {
	t.Parallel()
	s := startServer(t, Config{}, nil)
	resp, _ := get(t, "http://"+s.Addr()+"/debug/fallbacks")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("fallbacks without journal = %d, want 404", resp.StatusCode)
	}
}

func TestTokenAuth(t *testing.T) {
	t.Parallel()
	s := startServer(t, Config{Token: "s3cret"}, nil)

	resp, _ := get(t, "http://"+s.Addr()+"/debug/pprof/")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated pprof = %d, want 401", resp.StatusCode)
	}

	resp, _ = get(t, "http://"+s.Addr()+"/debug/pprof/?token=s3cret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token-authenticated pprof = %d, want 200", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, "http://"+s.Addr()+"/debug/pprof/", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET with bearer: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("bearer-authenticated pprof = %d, want 200", resp2.StatusCode)
	}

	// Health stays open.
	resp, _ = get(t, "http://"+s.Addr()+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz with token set = %d, want 200", resp.StatusCode)
	}
}
