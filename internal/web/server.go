// Package web serves the JSON API over chi.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/justestif/go-aureum/internal/metrics"
)

// DefaultAddr is the default server address.
const DefaultAddr = "127.0.0.1:8080"

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// RateLimit is requests per RateWindow per client IP. Zero disables it.
	RateLimit  int
	RateWindow time.Duration
}

// Deps are the services the handlers call.
type Deps struct {
	Activity    ActivityService
	Recommender Recommender
	Manifests   ManifestGenerator
	// Store is pinged by the health check. Optional.
	Store Pinger
	// CatalogState reports the catalog breaker state. Optional.
	CatalogState func() string
	Logger       zerolog.Logger
}

// Server is the HTTP server for the API.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	log      zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Deps) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	router := chi.NewRouter()
	s := &Server{
		router:   router,
		handlers: NewHandlers(deps),
		log:      deps.Logger,
	}

	s.setupMiddleware(cfg)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  withDefault(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout: withDefault(cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:  withDefault(cfg.IdleTimeout, 60*time.Second),
	}
	return s
}

func withDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware(cfg ServerConfig) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(accessLog(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Middleware)
	if cfg.RateLimit > 0 {
		s.router.Use(httprate.LimitByIP(cfg.RateLimit, withDefault(cfg.RateWindow, time.Minute)))
	}
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handlers.Health)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", s.handlers.StartSession)
		r.Post("/events", s.handlers.RecordEvent)
		r.Get("/recommendations", s.handlers.Recommendations)
		r.Get("/cache/manifest", s.handlers.CacheManifest)
	})
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals
// or when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info().Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.log.Info().Msg("server stopped")
	return nil
}
