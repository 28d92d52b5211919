// Package server provides the admin HTTP server exposing health and metrics
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/internal/infrastructure/config"
	"github.com/alchemorsel/pantry/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/pantry/internal/infrastructure/monitoring"
	"github.com/alchemorsel/pantry/pkg/healthcheck"
)

// AdminServer serves /metrics, /health, /live and /ready on the monitoring port
type AdminServer struct {
	logger *zap.Logger
	engine *gin.Engine
	server *http.Server
}

// NewAdminServer creates the admin server. metrics may be nil when disabled.
func NewAdminServer(
	cfg *config.Config,
	logger *zap.Logger,
	health *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
) *AdminServer {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	log := logger.Named("admin-server")
	mw := middleware.NewAdmin(log, "/live", "/metrics")

	engine := gin.New()
	engine.Use(mw.RequestID(), mw.Recovery(), mw.Logger())

	engine.GET("/health", health.Handler())
	engine.GET("/live", health.LivenessHandler())
	engine.GET("/ready", health.ReadinessHandler())
	if metrics != nil {
		engine.GET("/metrics", metrics.Handler())
	}

	return &AdminServer{
		logger: log,
		engine: engine,
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Monitoring.MetricsPort),
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the gin engine
func (s *AdminServer) Handler() http.Handler {
	return s.engine
}

// Start starts the admin server and blocks until it stops
func (s *AdminServer) Start() error {
	s.logger.Info("Starting admin server", zap.String("address", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the admin server
func (s *AdminServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
