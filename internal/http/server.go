// Package http serves docrag's operational endpoints: health, Prometheus
// metrics and index statistics.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/ingestion"
)

// StatsSource reports index state.
type StatsSource interface {
	Stats(ctx context.Context) (*ingestion.Stats, error)
}

// HealthCheck reports the status of one component. A nil error means
// healthy.
type HealthCheck func(ctx context.Context) error

// Server provides HTTP endpoints for docrag.
type Server struct {
	echo    *echo.Echo
	stats   StatsSource
	checks  map[string]HealthCheck
	metrics *requestMetrics
	logger  *zap.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// CheckTimeout bounds each health check (default: 5s).
	CheckTimeout time.Duration
}

// NewServer creates a new HTTP server. checks maps component names to
// health probes run on GET /health.
func NewServer(stats StatsSource, checks map[string]HealthCheck, logger *zap.Logger, cfg *Config) (*Server, error) {
	if stats == nil {
		return nil, fmt.Errorf("stats source cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9090,
		}
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 5 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		stats:   stats,
		checks:  checks,
		metrics: newRequestMetrics(nil, logger),
		logger:  logger,
		config:  cfg,
	}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.metrics.middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Debug("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/stats", s.handleStats)
}

// handleHealth runs every registered check. The endpoint answers 503 when
// any component is unhealthy.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{
		Status:     StatusOK,
		Components: make(map[string]string, len(s.checks)),
	}

	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.CheckTimeout)
		err := check(ctx)
		cancel()

		if err != nil {
			resp.Status = StatusDegraded
			resp.Components[name] = err.Error()
			continue
		}
		resp.Components[name] = StatusOK
	}

	code := http.StatusOK
	if resp.Status != StatusOK {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.stats.Stats(c.Request().Context())
	if err != nil {
		s.logger.Warn("reading stats failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read stats")
	}

	resp := StatsResponse{Stats: *stats}
	if stats.Cache != nil {
		resp.CacheHitRate = stats.Cache.HitRate()
	}
	return c.JSON(http.StatusOK, resp)
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start starts the HTTP server. It blocks until Shutdown is called and
// returns nil on a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.Addr()))
	if err := s.echo.Start(s.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
