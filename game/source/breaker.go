package source

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker open: remote API temporarily disabled")

// CircuitBreakerState represents the state of the circuit breaker.
type CircuitBreakerState string

const (
	CircuitClosed   CircuitBreakerState = "closed"    // Normal operation
	CircuitOpen     CircuitBreakerState = "open"      // Failing, reject requests
	CircuitHalfOpen CircuitBreakerState = "half_open" // Testing if the API recovered
)

// CircuitBreaker stops calling the remote API after repeated failures and
// probes it again once resetTimeout has passed.
type CircuitBreaker struct {
	mu               sync.RWMutex
	state            CircuitBreakerState
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
	resetTimeout     time.Duration
	lastFailureTime  time.Time
	lastStateChange  time.Time
	now              func() time.Time
}

// CircuitBreakerStatus is the JSON-serializable status of the circuit breaker.
type CircuitBreakerStatus struct {
	State            string `json:"state"`
	FailureCount     int    `json:"failureCount"`
	SuccessCount     int    `json:"successCount"`
	FailureThreshold int    `json:"failureThreshold"`
	SuccessThreshold int    `json:"successThreshold"`
	ResetTimeoutSec  int    `json:"resetTimeoutSec"`
	LastFailureAt    int64  `json:"lastFailureAt"`
	LastStateChange  int64  `json:"lastStateChange"`
	CanRetry         bool   `json:"canRetry"`
}

// NewCircuitBreaker creates a new circuit breaker.
// failureThreshold: consecutive failures before opening circuit.
// successThreshold: consecutive successes in half-open before closing circuit.
// resetTimeout: time to wait before transitioning from open to half-open.
func NewCircuitBreaker(failureThreshold, successThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	if successThreshold < 1 {
		successThreshold = 1
	}
	cb := &CircuitBreaker{
		state:            CircuitClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
	cb.lastStateChange = cb.now()
	return cb
}

// AllowRequest checks if a request should be allowed through.
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailureTime) >= cb.resetTimeout {
			cb.setStateLocked(CircuitHalfOpen)
			cb.successCount = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.setStateLocked(CircuitClosed)
			cb.failureCount = 0
			cb.successCount = 0
		}
	case CircuitClosed:
		cb.failureCount = 0
	}
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = cb.now()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.setStateLocked(CircuitOpen)
		}
	case CircuitHalfOpen:
		// Any failure in half-open reopens the circuit
		cb.setStateLocked(CircuitOpen)
		cb.successCount = 0
	}
}

// Reset closes the circuit, e.g. after the API settings changed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setStateLocked(CircuitClosed)
	cb.failureCount = 0
	cb.successCount = 0
}

// GetStatus returns the current circuit breaker status.
func (cb *CircuitBreaker) GetStatus() CircuitBreakerStatus {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	canRetry := cb.state != CircuitOpen || cb.now().Sub(cb.lastFailureTime) >= cb.resetTimeout

	var lastFailure int64
	if !cb.lastFailureTime.IsZero() {
		lastFailure = cb.lastFailureTime.Unix()
	}
	return CircuitBreakerStatus{
		State:            string(cb.state),
		FailureCount:     cb.failureCount,
		SuccessCount:     cb.successCount,
		FailureThreshold: cb.failureThreshold,
		SuccessThreshold: cb.successThreshold,
		ResetTimeoutSec:  int(cb.resetTimeout.Seconds()),
		LastFailureAt:    lastFailure,
		LastStateChange:  cb.lastStateChange.Unix(),
		CanRetry:         canRetry,
	}
}

func (cb *CircuitBreaker) setStateLocked(state CircuitBreakerState) {
	cb.state = state
	cb.lastStateChange = cb.now()
}
