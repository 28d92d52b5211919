// Package monitoring provides Prometheus metrics and OpenTelemetry tracing
package monitoring

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/internal/domain/pantry"
	"github.com/alchemorsel/pantry/internal/ports/outbound"
)

// MetricsCollector handles Prometheus metrics collection.
// It owns its registry so tests and multiple instances do not collide.
type MetricsCollector struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Reconciliation metrics
	itemOutcomes          *prometheus.CounterVec
	reconciliationsTotal  *prometheus.CounterVec
	reconciliationSeconds prometheus.Histogram
	conversionsTotal      *prometheus.CounterVec
	conversionSeconds     prometheus.Histogram
}

var _ outbound.ReconciliationMetrics = (*MetricsCollector)(nil)

// NewMetricsCollector creates a new metrics collector with Go and process collectors registered
func NewMetricsCollector(namespace string, logger *zap.Logger) *MetricsCollector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &MetricsCollector{
		logger:   logger.Named("metrics"),
		registry: registry,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		itemOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciliation_items_total",
				Help:      "Consumed ingredients processed by reconciliation, by outcome",
			},
			[]string{"outcome"},
		),
		reconciliationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciliations_total",
				Help:      "Reconciliation batches, by result",
			},
			[]string{"result"},
		),
		reconciliationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconciliation_duration_seconds",
				Help:      "Wall time of a reconciliation batch",
				Buckets:   prometheus.DefBuckets,
			},
		),
		conversionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unit_conversions_total",
				Help:      "Unit conversion calls, by status",
			},
			[]string{"status"},
		),
		conversionSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "unit_conversion_duration_seconds",
				Help:      "Unit conversion latency",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
	}
}

// RegisterDB exports connection pool statistics for db
func (m *MetricsCollector) RegisterDB(db *sql.DB, name string) {
	if err := m.registry.Register(collectors.NewDBStatsCollector(db, name)); err != nil {
		m.logger.Warn("Failed to register database stats collector", zap.String("db", name), zap.Error(err))
	}
}

// Registry returns the underlying registry
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *MetricsCollector) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// HTTPMiddleware records request counts and latency by chi route pattern
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordOutcome counts one reconciled item
func (m *MetricsCollector) RecordOutcome(outcome pantry.Outcome) {
	m.itemOutcomes.WithLabelValues(string(outcome)).Inc()
}

// RecordReconciliation records a finished batch
func (m *MetricsCollector) RecordReconciliation(duration time.Duration, aborted bool) {
	result := "completed"
	if aborted {
		result = "aborted"
	}
	m.reconciliationsTotal.WithLabelValues(result).Inc()
	m.reconciliationSeconds.Observe(duration.Seconds())
}

// RecordConversion records one converter call
func (m *MetricsCollector) RecordConversion(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.conversionsTotal.WithLabelValues(status).Inc()
	m.conversionSeconds.Observe(duration.Seconds())
}
