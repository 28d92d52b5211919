// Package healthcheck provides health and readiness check functionality
// Following the Health Check API pattern for cloud-native applications
package healthcheck

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check represents a health check
type Check struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration_ms"`
	Metadata    interface{}   `json:"metadata,omitempty"`
}

// Response represents the health check response
type Response struct {
	Status        Status        `json:"status"`
	Version       string        `json:"version"`
	Timestamp     time.Time     `json:"timestamp"`
	Checks        []Check       `json:"checks"`
	TotalDuration time.Duration `json:"total_duration_ms"`
}

// Checker defines the interface for health checks
type Checker interface {
	Check(ctx context.Context) Check
}

// HealthCheck manages health checks
type HealthCheck struct {
	version  string
	checkers map[string]Checker
	logger   *zap.Logger
	mu       sync.RWMutex
	cache    *Response
	cacheTTL time.Duration
}

// New creates a new health check instance
func New(version string, logger *zap.Logger) *HealthCheck {
	return &HealthCheck{
		version:  version,
		checkers: make(map[string]Checker),
		logger:   logger,
		cacheTTL: 5 * time.Second,
	}
}

// Register registers a health checker
func (h *HealthCheck) Register(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// SetCacheTTL sets the cache TTL for health check responses
func (h *HealthCheck) SetCacheTTL(ttl time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cacheTTL = ttl
}

// Handler returns the HTTP handler for health checks
func (h *HealthCheck) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response := h.Check(c.Request.Context())

		// Determine HTTP status code
		statusCode := http.StatusOK
		if response.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	}
}

// LivenessHandler returns the HTTP handler for liveness checks
func (h *HealthCheck) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Simple liveness check - if the handler responds, the service is alive
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now(),
		})
	}
}

// ReadinessHandler returns the HTTP handler for readiness checks
func (h *HealthCheck) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response := h.Check(c.Request.Context())

		// Service is ready only if all checks pass
		if response.Status != StatusHealthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"reason": "Health checks failed",
				"checks": response.Checks,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now(),
		})
	}
}

// Check performs all health checks
func (h *HealthCheck) Check(ctx context.Context) Response {
	h.mu.RLock()
	// Check cache
	if h.cache != nil && time.Since(h.cache.Timestamp) < h.cacheTTL {
		cached := *h.cache
		h.mu.RUnlock()
		return cached
	}
	h.mu.RUnlock()

	start := time.Now()
	response := Response{
		Version:   h.version,
		Timestamp: start,
		Status:    StatusHealthy,
		Checks:    []Check{},
	}

	// Create context with timeout
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Run checks concurrently
	var wg sync.WaitGroup
	checksChan := make(chan Check, len(h.checkers))

	h.mu.RLock()
	for name, checker := range h.checkers {
		wg.Add(1)
		go func(n string, c Checker) {
			defer wg.Done()
			check := c.Check(checkCtx)
			check.Name = n
			checksChan <- check
		}(name, checker)
	}
	h.mu.RUnlock()

	// Wait for all checks to complete
	go func() {
		wg.Wait()
		close(checksChan)
	}()

	// Collect results
	for check := range checksChan {
		response.Checks = append(response.Checks, check)

		// Update overall status
		if check.Status == StatusUnhealthy {
			response.Status = StatusUnhealthy
		} else if check.Status == StatusDegraded && response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}

	sort.Slice(response.Checks, func(i, j int) bool {
		return response.Checks[i].Name < response.Checks[j].Name
	})
	response.TotalDuration = time.Since(start)

	if response.Status != StatusHealthy {
		h.logger.Warn("Health check not healthy", zap.String("status", string(response.Status)))
	}

	// Update cache
	h.mu.Lock()
	h.cache = &response
	h.mu.Unlock()

	return response
}

// DatabaseChecker checks database health
type DatabaseChecker struct {
	db *sql.DB
}

// NewDatabaseChecker creates a new database checker
func NewDatabaseChecker(db *sql.DB) *DatabaseChecker {
	return &DatabaseChecker{db: db}
}

// Check performs database health check
func (d *DatabaseChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:        "database",
		LastChecked: start,
	}

	// Perform ping
	err := d.db.PingContext(ctx)
	check.Duration = time.Since(start)

	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
		return check
	}

	// Get pool stats
	stats := d.db.Stats()
	check.Status = StatusHealthy
	check.Metadata = map[string]interface{}{
		"open_conns": stats.OpenConnections,
		"idle_conns": stats.Idle,
		"in_use":     stats.InUse,
		"max_conns":  stats.MaxOpenConnections,
		"wait_count": stats.WaitCount,
	}

	// Check connection pool health
	if stats.MaxOpenConnections > 0 {
		utilizationPercent := float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100
		if utilizationPercent > 90 {
			check.Status = StatusDegraded
			check.Message = "High connection pool utilization"
		}
	}

	return check
}

// RedisChecker checks Redis health
type RedisChecker struct {
	client redis.UniversalClient
}

// NewRedisChecker creates a new Redis checker
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

// Check performs Redis health check
func (r *RedisChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:        "redis",
		LastChecked: start,
	}

	// Perform ping
	pong, err := r.client.Ping(ctx).Result()
	check.Duration = time.Since(start)

	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
		return check
	}

	if pong != "PONG" {
		check.Status = StatusUnhealthy
		check.Message = "Unexpected ping response"
		return check
	}

	stats := r.client.PoolStats()
	check.Metadata = map[string]interface{}{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
	}

	check.Status = StatusHealthy
	return check
}

// CircuitChecker reports a dependency guarded by a circuit breaker.
// An open circuit degrades the service rather than failing it.
type CircuitChecker struct {
	breaker *CircuitBreaker
}

// NewCircuitChecker creates a checker for the given breaker
func NewCircuitChecker(breaker *CircuitBreaker) *CircuitChecker {
	return &CircuitChecker{breaker: breaker}
}

// Check reports the breaker state
func (c *CircuitChecker) Check(ctx context.Context) Check {
	start := time.Now()
	state := c.breaker.GetState()
	stats := c.breaker.GetStats()

	check := Check{
		Name:        c.breaker.Name(),
		Status:      StatusHealthy,
		LastChecked: start,
		Metadata: map[string]interface{}{
			"state":                state.String(),
			"consecutive_failures": stats.ConsecutiveFailures,
			"rejections":           stats.TotalRejections,
		},
	}

	if state != StateClosed {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("circuit %s", state)
	}

	check.Duration = time.Since(start)
	return check
}

// MarshalJSON customizes JSON marshaling for duration
func (c Check) MarshalJSON() ([]byte, error) {
	type Alias Check
	return json.Marshal(&struct {
		Duration float64 `json:"duration_ms"`
		*Alias
	}{
		Duration: float64(c.Duration.Milliseconds()),
		Alias:    (*Alias)(&c),
	})
}

// MarshalJSON customizes JSON marshaling for response
func (r Response) MarshalJSON() ([]byte, error) {
	type Alias Response
	return json.Marshal(&struct {
		TotalDuration float64 `json:"total_duration_ms"`
		*Alias
	}{
		TotalDuration: float64(r.TotalDuration.Milliseconds()),
		Alias:         (*Alias)(&r),
	})
}
