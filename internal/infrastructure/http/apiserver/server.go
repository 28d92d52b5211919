// Package apiserver provides the pantry JSON API HTTP server
package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/internal/infrastructure/config"
	"github.com/alchemorsel/pantry/internal/infrastructure/http/handlers"
	"github.com/alchemorsel/pantry/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/pantry/internal/infrastructure/monitoring"
	"github.com/alchemorsel/pantry/internal/ports/inbound"
	apperrors "github.com/alchemorsel/pantry/pkg/errors"
	"github.com/alchemorsel/pantry/pkg/healthcheck"
)

// Server represents the pantry JSON API HTTP server
type Server struct {
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
	router  *chi.Mux
	pantry  *handlers.PantryHandlers
	feed    *handlers.FeedHandler
	auth    middleware.Authenticator
	metrics *monitoring.MetricsCollector
	health  *healthcheck.HealthCheck
}

// NewServer creates a new API server instance
func NewServer(
	cfg *config.Config,
	log *zap.Logger,
	pantryService inbound.PantryService,
	subscriber handlers.Subscriber,
	auth middleware.Authenticator,
	metrics *monitoring.MetricsCollector,
	health *healthcheck.HealthCheck,
) *Server {
	s := &Server{
		config:  cfg,
		logger:  log.Named("api-server"),
		pantry:  handlers.NewPantryHandlers(pantryService, log),
		feed:    handlers.NewFeedHandler(subscriber, log),
		auth:    auth,
		metrics: metrics,
		health:  health,
	}

	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:           cfg.ServerAddr(),
		Handler:        otelhttp.NewHandler(s.router, "pantry-api"),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Security())
	r.Use(middleware.CORS())
	if s.metrics != nil {
		r.Use(s.metrics.HTTPMiddleware)
	}

	r.NotFound(handleNotFound)
	r.Get("/health", s.handleHealthCheck)
	r.Get("/api/v1/openapi.yaml", serveOpenAPISpec)

	r.Route("/api/v1/pantry", func(r chi.Router) {
		r.Use(middleware.Authenticate(s.auth))

		// The websocket feed is long-lived, so it stays outside the request timeout.
		r.Get("/ws", s.feed.ServeWS)

		r.Group(func(r chi.Router) {
			if s.config.Server.RequestTimeout > 0 {
				r.Use(chimiddleware.Timeout(s.config.Server.RequestTimeout))
			}
			if s.config.Server.EnableCompression {
				r.Use(chimiddleware.Compress(5, "application/json"))
			}

			r.Get("/", s.pantry.ListPantry)
			r.Post("/", s.pantry.AddIngredient)
			r.Post("/cook", s.pantry.CookRecipe)
			r.Put("/{ingredientID}", s.pantry.UpdateEntry)
			r.Delete("/{ingredientID}", s.pantry.RemoveEntry)
		})
	})

	return r
}

// Handler returns the routed handler without the tracing wrapper
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("Starting pantry API server", zap.String("address", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Server returns the underlying HTTP server instance
func (s *Server) Server() *http.Server {
	return s.server
}

// Shutdown gracefully shuts down the API server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down pantry API server")
	return s.server.Shutdown(ctx)
}

// handleHealthCheck reports the aggregated dependency health
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	response := s.health.Check(r.Context())

	status := http.StatusOK
	if response.Status == healthcheck.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// handleNotFound answers unknown routes with the standard error envelope
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	resp := apperrors.ToErrorResponse(apperrors.NewNotFoundError("route"), chimiddleware.GetReqID(r.Context()))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(resp)
}
