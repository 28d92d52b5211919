package healthcheck

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// MockChecker provides a configurable mock checker for testing
type MockChecker struct {
	name      string
	status    Status
	message   string
	metadata  interface{}
	delay     time.Duration
	callCount int
	mu        sync.Mutex
}

// NewMockChecker creates a new mock checker
func NewMockChecker(name string) *MockChecker {
	return &MockChecker{
		name:   name,
		status: StatusHealthy,
	}
}

// WithStatus sets the status to return
func (m *MockChecker) WithStatus(status Status) *MockChecker {
	m.status = status
	return m
}

// WithMessage sets the message to return
func (m *MockChecker) WithMessage(message string) *MockChecker {
	m.message = message
	return m
}

// WithMetadata sets the metadata to return
func (m *MockChecker) WithMetadata(metadata interface{}) *MockChecker {
	m.metadata = metadata
	return m
}

// WithDelay sets a delay before returning the check result
func (m *MockChecker) WithDelay(delay time.Duration) *MockChecker {
	m.delay = delay
	return m
}

// Check implements the Checker interface
func (m *MockChecker) Check(ctx context.Context) Check {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	start := time.Now()
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return Check{
				Name:        m.name,
				Status:      StatusUnhealthy,
				Message:     "Context cancelled",
				LastChecked: start,
				Duration:    time.Since(start),
			}
		}
	}

	return Check{
		Name:        m.name,
		Status:      m.status,
		Message:     m.message,
		LastChecked: start,
		Duration:    time.Since(start),
		Metadata:    m.metadata,
	}
}

// GetCallCount returns the number of times Check was called
func (m *MockChecker) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// testCircuitBreakerConfig provides test configuration for circuit breakers
func testCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          100 * time.Millisecond,
		MaxRequests:      2,
	}
}

// AssertCheckResult validates a health check result
func AssertCheckResult(t *testing.T, check Check, expectedStatus Status, expectedName string) {
	t.Helper()
	require.Equal(t, expectedName, check.Name, "Check name mismatch")
	require.Equal(t, expectedStatus, check.Status, "Check status mismatch")
	require.NotZero(t, check.LastChecked, "LastChecked should be set")
	require.True(t, check.Duration >= 0, "Duration should be non-negative")
}

// AssertResponseStructure validates the structure of a health check response
func AssertResponseStructure(t *testing.T, response Response) {
	t.Helper()
	require.NotEmpty(t, response.Version, "Version should not be empty")
	require.NotZero(t, response.Timestamp, "Timestamp should be set")
	require.Contains(t, []Status{StatusHealthy, StatusDegraded, StatusUnhealthy},
		response.Status, "Status should be valid")

	for _, check := range response.Checks {
		AssertCheckResult(t, check, check.Status, check.Name)
	}
}
