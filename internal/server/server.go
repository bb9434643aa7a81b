// Package server assembles the HTTP server: store, providers, generation
// controller, endpoint routes, and graceful shutdown.
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

	"github.com/berea-study/berea/internal/api"
	"github.com/berea-study/berea/internal/config"
	"github.com/berea-study/berea/internal/generation"
	"github.com/berea-study/berea/internal/llmcall"
	"github.com/berea-study/berea/internal/providers"
	"github.com/berea-study/berea/internal/server/endpoints"
	"github.com/berea-study/berea/internal/store"
	"github.com/berea-study/berea/internal/svcctx"
	"github.com/berea-study/berea/web"
)

// Server is the main Berea HTTP server. It owns the database connection and
// the generation controller; endpoints reach both through the request
// context.
type Server struct {
	httpServer *http.Server
	store      store.Store
	registry   *providers.Registry
	controller *generation.Controller
	recorder   *llmcall.Recorder
	configMgr  *config.Manager
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

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
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Store, when set, is used instead of connecting from database config.
	// Tests inject the in-memory store here.
	Store store.Store
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
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}

	registry := providers.NewRegistry()
	registry.SetLogger(cfg.Logger)
	registry.Reload(cfg.ConfigManager.Get().ToProviderRegistryConfig())

	cfg.ConfigManager.OnChange(func(c *config.Config) {
		registry.Reload(c.ToProviderRegistryConfig())
		cfg.Logger.Info("provider registry reloaded from config")
	})

	s := &Server{
		store:     cfg.Store,
		registry:  registry,
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

	// Embedded frontend; API routes are more specific and win.
	if assets, err := web.DistFS(); err == nil {
		mux.Handle("GET /", http.FileServerFS(assets))
	}

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // search can block on an LLM call
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start connects the store, wires the generation controller, and serves
// HTTP. It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	conf := s.configMgr.Get()

	if s.store == nil {
		s.logger.Info("connecting to database", "host", conf.Database.Host, "name", conf.Database.Name)
		st, err := store.Open(ctx, conf.Database.DSN(), s.logger)
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		s.store = st
	}

	if err := store.Migrate(ctx, s.store, conf.Generation.DefaultTarget); err != nil {
		s.setNotRunning()
		return fmt.Errorf("migration failed: %w", err)
	}

	s.recorder = llmcall.NewRecorder(s.store, s.logger)
	s.controller = generation.NewController(
		s.store,
		s.registry,
		s.recorder,
		func() config.GenerationCfg { return s.configMgr.Get().Generation },
		s.logger,
	)

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		Store:      s.store,
		Registry:   s.registry,
		Controller: s.controller,
		Recorder:   s.recorder,
		ConfigMgr:  s.configMgr,
		Logger:     s.logger,
	}

	// The loop driver self-schedules ticks; with the default cron driver an
	// external scheduler hits the tick endpoint instead.
	runnerCtx, cancelRunner := context.WithCancel(ctx)
	defer cancelRunner()
	if conf.Generation.Driver == generation.DriverLoop {
		runner := generation.NewRunner(s.controller, conf.Generation.Interval, s.logger)
		go runner.Run(runnerCtx)
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

	if s.store != nil {
		if err := s.store.Close(); err != nil {
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

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Controller returns the generation controller.
// Returns nil if the server hasn't started yet.
func (s *Server) Controller() *generation.Controller {
	return s.controller
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
// Returns 503 Service Unavailable until the store is connected.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svcctx.StoreFrom(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
