// Package server exposes compiled schedules over HTTP for preview and
// scraping. Every request compiles the schedule afresh.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Compiler renders the schedule on demand.
type Compiler interface {
	Cron(ctx context.Context) (string, error)

	// YAML returns the structured document, or nil when no job is defined.
	YAML(ctx context.Context) ([]byte, error)
}

// Options configures a Server.
type Options struct {
	Config   Config
	Compiler Compiler

	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	// StatusCode maps a compile error to an HTTP status. Defaults to 500
	// for every error.
	StatusCode func(error) int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the HTTP preview server.
type Server struct {
	cfg        Config
	compiler   Compiler
	gatherer   prometheus.Gatherer
	statusCode func(error) int
	logger     *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	addr     string
	failures atomic.Int64
}

// New creates a server. Call Start to listen.
func New(opts Options) *Server {
	opts.Config.Defaults()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	statusCode := opts.StatusCode
	if statusCode == nil {
		statusCode = func(error) int { return http.StatusInternalServerError }
	}
	return &Server{
		cfg:        opts.Config,
		compiler:   opts.Compiler,
		gatherer:   opts.Gatherer,
		statusCode: statusCode,
		logger:     logger,
	}
}

// Handler constructs the chi mux with all routes wired.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth())
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if s.cfg.Auth.IsConfigured() {
			r.Use(authMiddleware(s.cfg.Auth, s.logger))
		}
		r.Get("/cron", s.handleCron())
		r.Get("/cronjobs", s.handleYAML())
	})
	return r
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Failures int64  `json:"compile_failures"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok", Failures: s.failures.Load()})
	}
}

func (s *Server) handleCron() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := s.compiler.Cron(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(out))
	}
}

func (s *Server) handleYAML() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := s.compiler.YAML(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		if data == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(data)
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.failures.Add(1)
	s.logger.Error("server: compile failed", "error", err)
	http.Error(w, err.Error(), s.statusCode(err))
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Bind)
	if err != nil {
		return errors.New("server: listen failed: " + err.Error())
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.mu.Lock()
	s.server = srv
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server: serve error", "error", err)
		}
	}()
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop shuts the server down gracefully within the configured timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Run starts the server and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout+time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}
