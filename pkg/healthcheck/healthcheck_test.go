package healthcheck

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestNew(t *testing.T) {
	logger := zap.NewNop()
	version := "1.0.0"

	hc := New(version, logger)

	assert.NotNil(t, hc)
	assert.Equal(t, version, hc.version)
	assert.Equal(t, logger, hc.logger)
	assert.NotNil(t, hc.checkers)
	assert.Equal(t, 5*time.Second, hc.cacheTTL)
}

func TestHealthCheck_Register(t *testing.T) {
	hc := New("1.0.0", zap.NewNop())
	checker := NewMockChecker("test")

	hc.Register("test", checker)

	assert.Len(t, hc.checkers, 1)
	assert.Contains(t, hc.checkers, "test")
}

func TestHealthCheck_SetCacheTTL(t *testing.T) {
	hc := New("1.0.0", zap.NewNop())
	ttl := 10 * time.Second

	hc.SetCacheTTL(ttl)

	assert.Equal(t, ttl, hc.cacheTTL)
}

func TestHealthCheck_Check_NoCheckers(t *testing.T) {
	hc := New("1.0.0", zap.NewNop())
	ctx := context.Background()

	response := hc.Check(ctx)

	AssertResponseStructure(t, response)
	assert.Equal(t, StatusHealthy, response.Status)
	assert.Equal(t, "1.0.0", response.Version)
	assert.Empty(t, response.Checks)
}

func TestHealthCheck_Check_SingleHealthyChecker(t *testing.T) {
	hc := New("1.0.0", zap.NewNop())
	ctx := context.Background()

	checker := NewMockChecker("database").WithStatus(StatusHealthy).WithMessage("Connection OK")
	hc.Register("database", checker)

	response := hc.Check(ctx)

	AssertResponseStructure(t, response)
	assert.Equal(t, StatusHealthy, response.Status)
	assert.Len(t, response.Checks, 1)

	check := response.Checks[0]
	AssertCheckResult(t, check, StatusHealthy, "database")
	assert.Equal(t, "Connection OK", check.Message)
}

func TestHealthCheck_Check_SingleUnhealthyChecker(t *testing.T) {
	hc := New("1.0.0", zap.NewNop())
	ctx := context.Background()

	checker := NewMockChecker("database").WithStatus(StatusUnhealthy).WithMessage("Connection failed")
	hc.Register("database", checker)

	response := hc.Check(ctx)

	AssertResponseStructure(t, response)
	assert.Equal(t, StatusUnhealthy, response.Status)
	assert.Len(t, response.Checks, 1)

	check := response.Checks[0]
	AssertCheckResult(t, check, StatusUnhealthy, "database")
	assert.Equal(t, "Connection failed", check.Message)
}

func TestHealthCheck_Check_MultipleCheckers(t *testing.T) {
	hc := New("1.0.0", zap.NewNop())
	ctx := context.Background()

	// Register multiple checkers with different statuses
	hc.Register("database", NewMockChecker("database").WithStatus(StatusHealthy))
	hc.Register("cache", NewMockChecker("cache").WithStatus(StatusDegraded))
	hc.Register("service", NewMockChecker("service").WithStatus(StatusHealthy))

	response := hc.Check(ctx)

	AssertResponseStructure(t, response)
	assert.Equal(t, StatusDegraded, response.Status) // Should be degraded due to cache
	assert.Len(t, response.Checks, 3)
}

func TestHealthCheck_Check_MultipleCheckersWithUnhealthy(t *testing.T) {
	hc := New("1.0.0", zap.NewNop())
	ctx := context.Background()

	// Register multiple checkers with one unhealthy
	hc.Register("database", NewMockChecker("database").WithStatus(StatusUnhealthy))
	hc.Register("cache", NewMockChecker("cache").WithStatus(StatusDegraded))
	hc.Register("service", NewMockChecker("service").WithStatus(StatusHealthy))

	response := hc.Check(ctx)

	AssertResponseStructure(t, response)
	assert.Equal(t, StatusUnhealthy, response.Status) // Should be unhealthy due to database
	assert.Len(t, response.Checks, 3)
}

func TestHealthCheck_Check_ConcurrentExecution(t *testing.T) {
	hc := New("1.0.0", zap.NewNop())
	ctx := context.Background()

	// Register checkers with delays to test concurrency
	delay := 50 * time.Millisecond
	hc.Register("slow1", NewMockChecker("slow1").WithDelay(delay))
	hc.Register("slow2", NewMockChecker("slow2").WithDelay(delay))
	hc.Register("slow3", NewMockChecker("slow3").WithDelay(delay))

	start := time.Now()
	response := hc.Check(ctx)
	elapsed := time.Since(start)

	AssertResponseStructure(t, response)
	assert.Equal(t, StatusHealthy, response.Status)
	assert.Len(t, response.Checks, 3)

	// Should complete in roughly the delay time (concurrent) rather than 3x delay (sequential)
	assert.Less(t, elapsed, 2*delay, "Checks should run concurrently")
}

func TestHealthCheck_Check_WithMetadata(t *testing.T) {
	hc := New("1.0.0", zap.NewNop())
	ctx := context.Background()

	metadata := map[string]interface{}{
		"connections": 10,
		"version":     "5.7",
	}

	checker := NewMockChecker("database").
		WithStatus(StatusHealthy).
		WithMetadata(metadata)
	hc.Register("database", checker)

	response := hc.Check(ctx)

	AssertResponseStructure(t, response)
	assert.Len(t, response.Checks, 1)

	check := response.Checks[0]
	assert.Equal(t, metadata, check.Metadata)
}

func TestHealthCheck_Check_Caching(t *testing.T) {
	hc := New("1.0.0", zap.NewNop())
	hc.SetCacheTTL(100 * time.Millisecond)

	ctx := context.Background()
	checker := NewMockChecker("test").WithStatus(StatusHealthy)
	hc.Register("test", checker)

	// First call
	response1 := hc.Check(ctx)
	timestamp1 := response1.Timestamp

	// Second call immediately - should be cached
	response2 := hc.Check(ctx)
	timestamp2 := response2.Timestamp

	assert.Equal(t, timestamp1, timestamp2, "Response should be cached")
	assert.Equal(t, 1, checker.GetCallCount(), "Checker should only be called once")

	// Wait for cache to expire
	time.Sleep(150 * time.Millisecond)

	// Third call - should not be cached
	response3 := hc.Check(ctx)
	timestamp3 := response3.Timestamp

	assert.NotEqual(t, timestamp1, timestamp3, "Response should not be cached after TTL")
	assert.Equal(t, 2, checker.GetCallCount(), "Checker should be called again after cache expiry")
}

func TestHealthCheck_Handler(t *testing.T) {
	hc := New("1.0.0", zap.NewNop())
	checker := NewMockChecker("test").WithStatus(StatusHealthy)
	hc.Register("test", checker)

	// Setup Gin router
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", hc.Handler())

	// Test healthy response
	req, _ := http.NewRequest("GET", "/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)

	var response Response
	err := json.Unmarshal(resp.Body.Bytes(), &response)
	require.NoError(t, err)

	AssertResponseStructure(t, response)
	assert.Equal(t, StatusHealthy, response.Status)
}

func TestHealthCheck_Handler_Unhealthy(t *testing.T) {
	hc := New("1.0.0", zap.NewNop())
	checker := NewMockChecker("test").WithStatus(StatusUnhealthy)
	hc.Register("test", checker)

	// Setup Gin router
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", hc.Handler())

	// Test unhealthy response
	req, _ := http.NewRequest("GET", "/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	var response Response
	err := json.Unmarshal(resp.Body.Bytes(), &response)
	require.NoError(t, err)

	AssertResponseStructure(t, response)
	assert.Equal(t, StatusUnhealthy, response.Status)
}

func TestHealthCheck_LivenessHandler(t *testing.T) {
	hc := New("1.0.0", zap.NewNop())

	// Setup Gin router
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/liveness", hc.LivenessHandler())

	// Test liveness response
	req, _ := http.NewRequest("GET", "/liveness", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)

	var response map[string]interface{}
	err := json.Unmarshal(resp.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, "alive", response["status"])
	assert.Contains(t, response, "timestamp")
}

func TestHealthCheck_ReadinessHandler_Ready(t *testing.T) {
	hc := New("1.0.0", zap.NewNop())
	checker := NewMockChecker("test").WithStatus(StatusHealthy)
	hc.Register("test", checker)

	// Setup Gin router
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/readiness", hc.ReadinessHandler())

	// Test ready response
	req, _ := http.NewRequest("GET", "/readiness", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)

	var response map[string]interface{}
	err := json.Unmarshal(resp.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, "ready", response["status"])
	assert.Contains(t, response, "timestamp")
}

func TestHealthCheck_ReadinessHandler_NotReady(t *testing.T) {
	hc := New("1.0.0", zap.NewNop())
	checker := NewMockChecker("test").WithStatus(StatusUnhealthy)
	hc.Register("test", checker)

	// Setup Gin router
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/readiness", hc.ReadinessHandler())

	// Test not ready response
	req, _ := http.NewRequest("GET", "/readiness", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	var response map[string]interface{}
	err := json.Unmarshal(resp.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, "not_ready", response["status"])
	assert.Equal(t, "Health checks failed", response["reason"])
	assert.Contains(t, response, "checks")
}

func TestCheck_MarshalJSON(t *testing.T) {
	check := Check{
		Name:        "test",
		Status:      StatusHealthy,
		Message:     "OK",
		LastChecked: time.Now(),
		Duration:    100 * time.Millisecond,
		Metadata:    map[string]interface{}{"version": "1.0"},
	}

	data, err := json.Marshal(check)
	require.NoError(t, err)

	var unmarshaled map[string]interface{}
	err = json.Unmarshal(data, &unmarshaled)
	require.NoError(t, err)

	assert.Equal(t, "test", unmarshaled["name"])
	assert.Equal(t, "healthy", unmarshaled["status"])
	assert.Equal(t, "OK", unmarshaled["message"])
	assert.Equal(t, float64(100), unmarshaled["duration_ms"])
	assert.Contains(t, unmarshaled, "last_checked")
	assert.Contains(t, unmarshaled, "metadata")
}

func TestHealthCheck_Check_SortedByName(t *testing.T) {
	hc := New("1.0.0", zap.NewNop())
	hc.Register("redis", NewMockChecker("redis"))
	hc.Register("converter", NewMockChecker("converter"))
	hc.Register("database", NewMockChecker("database"))

	response := hc.Check(context.Background())

	require.Len(t, response.Checks, 3)
	assert.Equal(t, "converter", response.Checks[0].Name)
	assert.Equal(t, "database", response.Checks[1].Name)
	assert.Equal(t, "redis", response.Checks[2].Name)
}

func TestDatabaseChecker(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	checker := NewDatabaseChecker(sqlDB)

	check := checker.Check(context.Background())
	AssertCheckResult(t, check, StatusHealthy, "database")
	assert.Contains(t, check.Metadata, "open_conns")

	require.NoError(t, sqlDB.Close())

	check = checker.Check(context.Background())
	AssertCheckResult(t, check, StatusUnhealthy, "database")
	assert.Contains(t, check.Message, "closed")
}

func TestRedisChecker_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	check := NewRedisChecker(client).Check(context.Background())

	AssertCheckResult(t, check, StatusUnhealthy, "redis")
	assert.NotEmpty(t, check.Message)
}

func TestCircuitChecker(t *testing.T) {
	breaker := NewCircuitBreaker("converter", testCircuitBreakerConfig())
	checker := NewCircuitChecker(breaker)

	AssertCheckResult(t, checker.Check(context.Background()), StatusHealthy, "converter")

	for i := 0; i < 3; i++ {
		_ = breaker.Execute(func() error { return errOperation })
	}

	check := checker.Check(context.Background())
	AssertCheckResult(t, check, StatusDegraded, "converter")
	assert.Equal(t, "circuit open", check.Message)
}
