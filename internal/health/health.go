// Package health serves liveness and readiness probes for the API process.
// Checks are registered by modules at startup and run in parallel on every
// probe.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fd1az/etfkit/internal/logger"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"

	checkTimeout = 3 * time.Second
)

// Status is the /health body.
type Status struct {
	Status    string           `json:"status"`
	Checks    map[string]Check `json:"checks"`
	Version   string           `json:"version,omitempty"`
	Timestamp string           `json:"timestamp"`
}

// Check is the outcome of one registered probe.
type Check struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// CheckFunc reports whether a dependency is usable, with a short reason.
type CheckFunc func(ctx context.Context) (bool, string)

// Server exposes /health, /ready and /live on its own port.
type Server struct {
	port    int
	version string
	log     logger.LoggerInterface

	mu     sync.RWMutex
	checks map[string]CheckFunc
	srv    *http.Server
}

func NewServer(port int, version string, log logger.LoggerInterface) *Server {
	return &Server{
		port:    port,
		version: version,
		log:     log,
		checks:  map[string]CheckFunc{},
	}
}

// RegisterCheck adds or replaces the check called name.
func (s *Server) RegisterCheck(name string, fn CheckFunc) {
	s.mu.Lock()
	s.checks[name] = fn
	s.mu.Unlock()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.serveHealth)
	mux.HandleFunc("GET /ready", s.serveReady)
	mux.HandleFunc("GET /live", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "alive")
	})
	return mux
}

// Start listens in the background. A listen failure is logged since the
// probes are optional for the CLI.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := s.srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(context.Background(), "health server stopped", "addr", s.srv.Addr, "error", err)
		}
	}()
	s.log.Info(context.Background(), "health server started", "addr", s.srv.Addr)
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// evaluate runs every check concurrently, each bounded by checkTimeout.
func (s *Server) evaluate(ctx context.Context) map[string]Check {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	fns := make([]CheckFunc, 0, len(s.checks))
	for name, fn := range s.checks {
		names = append(names, name)
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	results := make([]Check, len(fns))
	var g errgroup.Group
	for i, fn := range fns {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			ok, msg := fn(cctx)
			results[i] = Check{Healthy: ok, Message: msg}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]Check, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out
}

func failing(checks map[string]Check) []string {
	var names []string
	for name, c := range checks {
		if !c.Healthy {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	checks := s.evaluate(r.Context())
	body := Status{
		Status:    statusOK,
		Checks:    checks,
		Version:   s.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	code := http.StatusOK
	if len(failing(checks)) > 0 {
		body.Status = statusDegraded
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) serveReady(w http.ResponseWriter, r *http.Request) {
	checks := s.evaluate(r.Context())
	if bad := failing(checks); len(bad) > 0 {
		for _, name := range bad {
			s.log.Warn(r.Context(), "readiness check failed", "check", name, "message", checks[name].Message)
		}
		writeText(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeText(w, http.StatusOK, "ready")
}

func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(msg))
}
