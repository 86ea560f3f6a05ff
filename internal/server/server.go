// Package server wires the HTTP API together and owns the lifecycle of
// the storage client: opened when the server starts, closed on shutdown.
// No global database handle exists anywhere in the process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pagewright/scriptorium/internal/api"
	"github.com/pagewright/scriptorium/internal/claim"
	"github.com/pagewright/scriptorium/internal/config"
	"github.com/pagewright/scriptorium/internal/home"
	"github.com/pagewright/scriptorium/internal/ingest"
	"github.com/pagewright/scriptorium/internal/reconcile"
	"github.com/pagewright/scriptorium/internal/server/endpoints"
	"github.com/pagewright/scriptorium/internal/store"
	"github.com/pagewright/scriptorium/internal/svcctx"
)

// Server is the main Scriptorium HTTP server.
type Server struct {
	httpServer *http.Server
	homeDir    *home.Dir
	configMgr  *config.Manager
	logger     *slog.Logger

	st         *store.Store
	services   *svcctx.Services
	reconciler *reconcile.Reconciler

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Home is the scriptorium home directory (database, page assets)
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}

	s := &Server{
		homeDir:   cfg.Home,
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start opens the store, wires services and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.homeDir.EnsureExists(); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to prepare home directory: %w", err)
	}

	s.logger.Info("opening store", "path", s.homeDir.DatabasePath())
	st, err := store.Open(s.homeDir.DatabasePath())
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to open store: %w", err)
	}
	s.st = st

	converter := &ingest.PDFConverter{}
	reconcileInterval := time.Duration(0)
	if s.configMgr != nil {
		c := s.configMgr.Get()
		converter.DPI = c.Converter.DPI
		converter.Workers = c.Converter.Workers
		converter.Retries = c.Converter.Retries
		reconcileInterval = time.Duration(c.Reconcile.IntervalMinutes) * time.Minute
	}

	s.reconciler = reconcile.New(st, s.logger)
	s.services = &svcctx.Services{
		Store:      st,
		Claims:     claim.NewService(st, s.logger),
		Reconciler: s.reconciler,
		Ingest:     ingest.NewPipeline(st, s.homeDir, converter, s.logger),
		ConfigMgr:  s.configMgr,
		Logger:     s.logger,
		Home:       s.homeDir,
	}

	// Periodic counter reconciliation is a maintenance job; it never
	// runs inline with a request.
	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	if reconcileInterval > 0 {
		go s.reconciler.Run(loopCtx, reconcileInterval)
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server and the store.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.st != nil {
		if err := s.st.Close(); err != nil {
			s.logger.Error("store close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Store returns the store. Returns nil if the server hasn't started yet.
func (s *Server) Store() *store.Store {
	return s.st
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the store isn't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.st == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
