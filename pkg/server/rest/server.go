// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tracking.
//
// go-tracking is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package rest serves the tracking admin API over HTTP with gin.
package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/audit"
	"github.com/jeremyhahn/go-tracking/pkg/server"
	"github.com/jeremyhahn/go-tracking/pkg/server/middleware"
)

// Server represents the REST API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	handler    *Handler
	config     *ServerConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	// Host is the hostname to bind to (default: "0.0.0.0")
	Host string

	// Port is the port to listen on (default: 8080)
	Port int

	// EnableCORS enables CORS middleware
	EnableCORS bool

	// EnableLogging enables request logging middleware
	EnableLogging bool

	// EnableRateLimit enables rate limiting middleware
	EnableRateLimit bool

	// RateLimitConfig is the rate limiting configuration
	RateLimitConfig *middleware.RateLimitConfig

	// EnableSecurityHeaders enables security headers middleware
	EnableSecurityHeaders bool

	// SecurityHeadersConfig is the security headers configuration
	SecurityHeadersConfig *middleware.SecurityHeadersConfig

	// EnableRequestID enables request ID middleware
	EnableRequestID bool

	// MaxRequestSize is the maximum request body size in bytes (default: 512MB, sized for imports)
	MaxRequestSize int64

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown in Run (default: 15s)
	ShutdownTimeout time.Duration

	// Mode sets the Gin mode: "debug", "release", or "test" (default: "release")
	Mode string

	// Logger is the pluggable logger adapter (default: DefaultLogger)
	Logger adapters.Logger

	// AuditLogger records admin operations (default: no-op)
	AuditLogger audit.AuditLogger

	// EnableAudit enables audit logging
	EnableAudit bool

	// MetricsHandler serves /metrics (default: promhttp.Handler)
	MetricsHandler http.Handler

	// EnableMetrics routes /metrics
	EnableMetrics bool
}

// DefaultServerConfig returns a ServerConfig with sensible defaults
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:                  "0.0.0.0",
		Port:                  8080,
		EnableCORS:            false,
		EnableLogging:         true,
		EnableRateLimit:       false,
		RateLimitConfig:       middleware.DefaultRateLimitConfig(),
		EnableSecurityHeaders: true,
		SecurityHeadersConfig: middleware.DefaultSecurityHeadersConfig(),
		EnableRequestID:       true,
		MaxRequestSize:        server.MaxRequestSize,
		ReadTimeout:           server.ReadTimeout,
		WriteTimeout:          server.WriteTimeout,
		IdleTimeout:           server.IdleTimeout,
		ShutdownTimeout:       server.ShutdownTimeout,
		Mode:                  gin.ReleaseMode,
		Logger:                adapters.NewDefaultLogger(),
		AuditLogger:           audit.NewNoOpAuditLogger(),
		EnableAudit:           true,
		EnableMetrics:         true,
	}
}

// NewServer creates a new REST API server around handler.
func NewServer(handler *Handler, config *ServerConfig) (*Server, error) {
	if handler == nil {
		return nil, errors.New("rest: handler is required")
	}
	if config == nil {
		config = DefaultServerConfig()
	}
	if config.Logger == nil {
		config.Logger = adapters.NewDefaultLogger()
	}
	if config.AuditLogger == nil {
		config.AuditLogger = audit.NewNoOpAuditLogger()
	}
	if config.EnableMetrics && config.MetricsHandler == nil {
		config.MetricsHandler = promhttp.Handler()
	}
	if !config.EnableMetrics {
		config.MetricsHandler = nil
	}

	gin.SetMode(config.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ErrorHandlingMiddleware(config.Logger))

	// Middleware order: request ID → rate limit → security headers → CORS → audit → logging → size limit
	if config.EnableRequestID {
		router.Use(middleware.RequestIDMiddleware())
	}
	if config.EnableRateLimit {
		rl := config.RateLimitConfig
		if rl == nil {
			rl = middleware.DefaultRateLimitConfig()
		}
		rl.Exempt = append(rl.Exempt, EventsPath, "/health")
		router.Use(middleware.RateLimitMiddleware(rl, config.Logger))
	}
	if config.EnableSecurityHeaders {
		router.Use(middleware.SecurityHeadersMiddleware(config.SecurityHeadersConfig))
	}
	if config.EnableCORS {
		router.Use(CORSMiddleware())
	}
	if config.EnableAudit {
		router.Use(audit.AuditMiddleware(config.AuditLogger))
	}
	if config.EnableLogging {
		router.Use(LoggingMiddleware(config.Logger))
	}
	if config.MaxRequestSize > 0 {
		router.Use(RequestSizeLimitMiddleware(config.MaxRequestSize))
	}

	SetupRoutes(router, handler, config.MetricsHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		router:     router,
		httpServer: httpServer,
		handler:    handler,
		config:     config,
	}, nil
}

// Start starts the REST API server and blocks until it stops.
func (s *Server) Start() error {
	s.config.Logger.Info(context.Background(), "Starting REST API server",
		adapters.F("address", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = server.ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.config.Logger.Info(ctx, "Shutting down REST API server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the underlying Gin router (useful for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Handler returns the HTTP handler
func (s *Server) Handler() *Handler {
	return s.handler
}

// Address returns the server address
func (s *Server) Address() string {
	return s.httpServer.Addr
}
