package circuitbreaker

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestBreaker(maxFailures int, recovery time.Duration) *CircuitBreaker {
	return New(Config{
		Name:                "test",
		MaxFailures:         maxFailures,
		RecoveryTimeout:     recovery,
		HalfOpenMaxRequests: 1,
	}, zap.NewNop())
}

func TestBreakerStartsClosed(t *testing.T) {
	cb := newTestBreaker(3, time.Second)

	if cb.GetState() != StateClosed {
		t.Errorf("new breaker state = %s, want closed", cb.GetState())
	}
	if !cb.Allow() {
		t.Error("closed breaker should allow requests")
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		cb.Allow()
		cb.RecordFailure()
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("state after 3 failures = %s, want open", cb.GetState())
	}
	if cb.Allow() {
		t.Error("open breaker should reject requests")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.GetState() != StateClosed {
		t.Errorf("state = %s, want closed (non-consecutive failures)", cb.GetState())
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)

	cb.Allow()
	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %s, want open", cb.GetState())
	}

	time.Sleep(20 * time.Millisecond)

	// First request after the timeout is the probe.
	if !cb.Allow() {
		t.Fatal("expected probe request allowed")
	}
	if cb.GetState() != StateHalfOpen {
		t.Fatalf("state = %s, want half-open", cb.GetState())
	}

	// Second request while the probe is outstanding is rejected.
	if cb.Allow() {
		t.Error("expected second half-open request rejected")
	}

	cb.RecordSuccess()
	if cb.GetState() != StateClosed {
		t.Errorf("state after probe success = %s, want closed", cb.GetState())
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)

	cb.Allow()
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	cb.Allow() // probe
	cb.RecordFailure()

	if cb.GetState() != StateOpen {
		t.Errorf("state after probe failure = %s, want open", cb.GetState())
	}
}

func TestBreakerReset(t *testing.T) {
	cb := newTestBreaker(1, time.Minute)

	cb.Allow()
	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %s, want open", cb.GetState())
	}

	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Errorf("state after reset = %s, want closed", cb.GetState())
	}
	if !cb.Allow() {
		t.Error("reset breaker should allow requests")
	}
}

func TestBreakerStats(t *testing.T) {
	cb := newTestBreaker(5, time.Minute)

	cb.Allow()
	cb.RecordSuccess()
	cb.Allow()
	cb.RecordFailure()

	stats := cb.Stats()
	if stats.TotalRequests != 2 {
		t.Errorf("TotalRequests = %d, want 2", stats.TotalRequests)
	}
	if stats.TotalSuccesses != 1 || stats.TotalFailures != 1 {
		t.Errorf("successes=%d failures=%d, want 1/1", stats.TotalSuccesses, stats.TotalFailures)
	}
	if stats.State != "closed" {
		t.Errorf("State = %s, want closed", stats.State)
	}
}
