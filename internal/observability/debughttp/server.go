// Package debughttp serves the optional operator endpoint: pprof profiles,
// a liveness probe, and the recent fallback journal.
package debughttp

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"worldsched/internal/audit"
	logx "worldsched/pkg/logx"
)

// Config controls the debug HTTP server.
//
// Binding to a non-loopback address without a token is refused; set Token when
// the endpoint must be reachable from elsewhere.
type Config struct {
	Enabled bool
	Addr    string
	Token   string
}

// Server exposes /healthz, /debug/pprof/* and /debug/fallbacks. Disabled by
// default; never part of the dispatch path.
type Server struct {
	log   logx.Logger
	store audit.Store

	mu  sync.Mutex
	cfg Config
	ln  net.Listener
	srv *http.Server
}

// New builds the server. store may be nil; /debug/fallbacks then reports the
// journal as disabled.
func New(cfg Config, store audit.Store, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{
		log:   log.With(logx.String("component", "debughttp")),
		store: store,
		cfg:   cfg,
	}
}

// Start binds and begins serving. A second Start while running is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.srv != nil {
		return nil
	}

	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:6060"
	}
	if s.cfg.Token == "" && !isLoopbackAddr(addr) {
		return errors.New("debug endpoint on non-loopback addr requires a token")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.routes(strings.TrimSpace(s.cfg.Token)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}
	s.ln = ln
	s.srv = srv
	log := s.log

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("debug server exited", logx.Err(err))
		}
	}()

	log.Info("debug server started",
		logx.String("addr", ln.Addr().String()), logx.Bool("token_set", s.cfg.Token != ""))
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	_ = srv.Shutdown(ctx)
	_ = srv.Close()
}

// Addr returns the bound address, empty when not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) routes(token string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/debug/pprof/", withAuth(token, hpprof.Index))
	mux.HandleFunc("/debug/pprof/cmdline", withAuth(token, hpprof.Cmdline))
	mux.HandleFunc("/debug/pprof/profile", withAuth(token, hpprof.Profile))
	mux.HandleFunc("/debug/pprof/symbol", withAuth(token, hpprof.Symbol))
	mux.HandleFunc("/debug/pprof/trace", withAuth(token, hpprof.Trace))

	mux.HandleFunc("/debug/fallbacks", withAuth(token, s.handleFallbacks))

	return mux
}

// handleFallbacks returns the newest journal entries as JSON. ?limit=N caps
// the result (default 50).
func (s *Server) handleFallbacks(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "fallback journal disabled", http.StatusNotFound)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	entries, err := s.store.Recent(ctx, limit)
	if err != nil {
		s.log.Warn("fallback journal query failed", logx.Err(err))
		http.Error(w, "journal query failed", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

func withAuth(tok string, h http.HandlerFunc) http.HandlerFunc {
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got == tok {
			h(w, r)
			return
		}
		const bearer = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, bearer) &&
			strings.TrimSpace(strings.TrimPrefix(ah, bearer)) == tok {
			h(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if h == "" {
		return false // all interfaces
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
