package source

import (
	"testing"
	"time"
)

func TestCircuitBreakerLifecycle(t *testing.T) {
	cb := NewCircuitBreaker(2, 2, 10*time.Second)
	now := time.Unix(1_000, 0)
	cb.now = func() time.Time { return now }

	if !cb.AllowRequest() {
		t.Fatal("closed breaker should allow requests")
	}
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	if cb.GetStatus().State != string(CircuitClosed) {
		t.Fatal("success should reset the consecutive failure count")
	}

	cb.RecordFailure()
	status := cb.GetStatus()
	if status.State != string(CircuitOpen) || status.CanRetry {
		t.Fatalf("status = %+v, want open and not retryable", status)
	}
	if cb.AllowRequest() {
		t.Fatal("open breaker should reject requests")
	}

	now = now.Add(10 * time.Second)
	if !cb.GetStatus().CanRetry {
		t.Error("CanRetry should be true once the timeout passed")
	}
	if !cb.AllowRequest() {
		t.Fatal("breaker should half-open after the reset timeout")
	}
	if cb.GetStatus().State != string(CircuitHalfOpen) {
		t.Fatalf("state = %s, want half_open", cb.GetStatus().State)
	}

	cb.RecordSuccess()
	if cb.GetStatus().State != string(CircuitHalfOpen) {
		t.Fatal("one success should not close with successThreshold 2")
	}
	cb.RecordSuccess()
	if cb.GetStatus().State != string(CircuitClosed) {
		t.Fatalf("state = %s, want closed", cb.GetStatus().State)
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 1, time.Second)
	now := time.Unix(1_000, 0)
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	now = now.Add(time.Second)
	cb.AllowRequest()
	cb.RecordFailure()
	if cb.GetStatus().State != string(CircuitOpen) {
		t.Fatalf("state = %s, want open", cb.GetStatus().State)
	}
	if cb.AllowRequest() {
		t.Error("reopened breaker should reject until the timeout passes again")
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(1, 1, time.Hour)
	cb.RecordFailure()
	cb.Reset()
	status := cb.GetStatus()
	if status.State != string(CircuitClosed) || status.FailureCount != 0 {
		t.Errorf("status after Reset = %+v", status)
	}
}
