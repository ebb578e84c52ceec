// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-credstore.
//
// go-credstore is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jeremyhahn/go-credstore/pkg/adapters/logger"
	"github.com/jeremyhahn/go-credstore/pkg/metrics"
	"github.com/jeremyhahn/go-credstore/pkg/ratelimit"
	"github.com/jeremyhahn/go-credstore/pkg/superkey"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the REST API server.
type Server struct {
	server   *http.Server
	handlers *HandlerContext
	addr     string
	logger   logger.Logger
}

// Config holds the REST server configuration.
type Config struct {
	// Host is the interface to bind (default: 127.0.0.1)
	Host string

	// Port is the HTTP port to listen on (default: 8443)
	Port int

	// Manager is the unlock state machine the API fronts
	Manager *superkey.Manager

	// Version is the API version string
	Version string

	// MetricsPath serves the Prometheus endpoint when non-empty
	MetricsPath string

	// UnlockLimiter throttles unlock attempts per client IP (optional)
	UnlockLimiter *ratelimit.Limiter

	// Logger is the logging adapter (optional)
	Logger logger.Logger

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration
}

// NewServer creates a new REST API server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Manager == nil {
		return nil, fmt.Errorf("superkey manager is required")
	}

	// Set defaults
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8443
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	server := &Server{
		handlers: NewHandlerContext(cfg.Manager, cfg.Version, log),
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		logger:   log,
	}

	router := server.setupRouter(cfg.MetricsPath, cfg.UnlockLimiter)

	server.server = &http.Server{
		Addr:         server.addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return server, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter(metricsPath string, limiter *ratelimit.Limiter) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(s.RecoveryMiddleware())
	r.Use(s.CorrelationMiddleware()) // Add correlation ID before logging
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)
	r.Use(CORSMiddleware)

	r.Get("/healthz", s.handlers.HealthHandler)
	r.Head("/healthz", s.handlers.HealthHandler)

	if metricsPath != "" {
		r.Handle(metricsPath, promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/lock", s.handlers.LockAllHandler)

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/state", s.handlers.UserStateHandler)
			if limiter != nil {
				r.With(ratelimit.Middleware(limiter)).Post("/unlock", s.handlers.UnlockHandler)
			} else {
				r.Post("/unlock", s.handlers.UnlockHandler)
			}
			r.Post("/password", s.handlers.PasswordChangeHandler)
			r.Post("/lock", s.handlers.LockUserHandler)
			r.Delete("/", s.handlers.ResetUserHandler)
		})
	})

	return r
}

// Start starts the REST API server.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", logger.String("addr", s.addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the REST API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", logger.Err(err))
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.addr
}

// Router returns the configured HTTP handler. Useful for serving the API
// through a custom listener or in tests.
func (s *Server) Router() http.Handler {
	return s.server.Handler
}
