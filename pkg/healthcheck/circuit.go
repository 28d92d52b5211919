// Package healthcheck circuit breaker implementation
// Provides circuit breaker pattern to stop hammering a failing dependency
package healthcheck

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute while the breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for circuit breaker
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int `json:"failure_threshold"`

	// SuccessThreshold is the number of successes required to close the circuit when half-open
	SuccessThreshold int `json:"success_threshold"`

	// Timeout is how long the circuit stays open before probing again
	Timeout time.Duration `json:"timeout"`

	// MaxRequests caps concurrent probes while half-open
	MaxRequests int `json:"max_requests"`

	// OnStateChange is called when the state changes
	OnStateChange func(name string, from, to CircuitBreakerState)
}

// CircuitBreakerStats holds statistics about circuit breaker operations
type CircuitBreakerStats struct {
	TotalRequests        int64 `json:"total_requests"`
	TotalSuccesses       int64 `json:"total_successes"`
	TotalFailures        int64 `json:"total_failures"`
	TotalRejections      int64 `json:"total_rejections"`
	ConsecutiveFailures  int   `json:"consecutive_failures"`
	ConsecutiveSuccesses int   `json:"consecutive_successes"`
}

// CircuitBreaker implements the circuit breaker pattern.
// The guarded call runs without the lock held, so callers are not serialized.
type CircuitBreaker struct {
	name        string
	config      CircuitBreakerConfig
	state       CircuitBreakerState
	stats       CircuitBreakerStats
	inFlight    int
	nextAttempt time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	// Set default values if not provided
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = 3
	}

	return &CircuitBreaker{
		name:   name,
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Name returns the breaker name
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs fn with circuit breaker protection.
// Errors for which ignore returns true are passed through without counting as failures.
func (cb *CircuitBreaker) Execute(fn func() error, ignore ...func(error) bool) error {
	if err := cb.before(); err != nil {
		return err
	}

	err := fn()

	cb.after(err == nil || ignored(err, ignore))
	return err
}

func ignored(err error, ignore []func(error) bool) bool {
	for _, fn := range ignore {
		if fn(err) {
			return true
		}
	}
	return false
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.TotalRequests++

	switch cb.state {
	case StateOpen:
		if cb.now().Before(cb.nextAttempt) {
			cb.stats.TotalRejections++
			return fmt.Errorf("%w: %s", ErrCircuitOpen, cb.name)
		}
		cb.setState(StateHalfOpen)
	case StateHalfOpen:
		if cb.inFlight >= cb.config.MaxRequests {
			cb.stats.TotalRejections++
			return fmt.Errorf("%w: %s", ErrCircuitOpen, cb.name)
		}
	}

	cb.inFlight++
	return nil
}

func (cb *CircuitBreaker) after(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.inFlight--
	if success {
		cb.onSuccess()
	} else {
		cb.onFailure()
	}
}

// onSuccess handles successful execution
func (cb *CircuitBreaker) onSuccess() {
	cb.stats.TotalSuccesses++
	cb.stats.ConsecutiveFailures = 0
	cb.stats.ConsecutiveSuccesses++

	if cb.state == StateHalfOpen && cb.stats.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
		cb.setState(StateClosed)
	}
}

// onFailure handles failed execution
func (cb *CircuitBreaker) onFailure() {
	cb.stats.TotalFailures++
	cb.stats.ConsecutiveSuccesses = 0
	cb.stats.ConsecutiveFailures++

	switch cb.state {
	case StateClosed:
		if cb.stats.ConsecutiveFailures >= cb.config.FailureThreshold {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		// Any failure in half-open state opens the circuit
		cb.setState(StateOpen)
	}
}

// setState changes the circuit breaker state and handles side effects
func (cb *CircuitBreaker) setState(newState CircuitBreakerState) {
	if cb.state == newState {
		return
	}

	oldState := cb.state
	cb.state = newState

	switch newState {
	case StateOpen:
		cb.nextAttempt = cb.now().Add(cb.config.Timeout)
	case StateHalfOpen:
		cb.stats.ConsecutiveSuccesses = 0
	case StateClosed:
		cb.stats.ConsecutiveFailures = 0
		cb.stats.ConsecutiveSuccesses = 0
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, oldState, newState)
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stats
}

// Reset returns the circuit breaker to its initial state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(StateClosed)
	cb.stats = CircuitBreakerStats{}
	cb.nextAttempt = time.Time{}
}

// DefaultCircuitBreakerConfig returns a default configuration for circuit breakers
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		MaxRequests:      3,
	}
}
