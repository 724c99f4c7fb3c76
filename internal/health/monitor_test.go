package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ferro-labs/model-gateway/internal/circuitbreaker"
	"github.com/ferro-labs/model-gateway/providers"
)

func TestReportOutcome_ConsecutiveFailuresResetOnSuccess(t *testing.T) {
	m := New(Config{})
	m.Register("a", nil)

	m.ReportOutcome("a", 10*time.Millisecond, errors.New("boom"), providers.ErrorKindUnavailable)
	m.ReportOutcome("a", 10*time.Millisecond, errors.New("boom"), providers.ErrorKindUnavailable)
	rec, ok := m.Snapshot("a")
	if !ok {
		t.Fatal("expected provider to be registered")
	}
	if rec.ConsecutiveFailures != 2 {
		t.Fatalf("expected 2 consecutive failures, got %d", rec.ConsecutiveFailures)
	}

	m.ReportOutcome("a", 10*time.Millisecond, nil, "")
	rec, _ = m.Snapshot("a")
	if rec.ConsecutiveFailures != 0 {
		t.Fatalf("expected consecutive failures reset to 0, got %d", rec.ConsecutiveFailures)
	}
	if rec.Status != StatusHealthy {
		t.Fatalf("expected status healthy after fast success, got %s", rec.Status)
	}
}

func TestReportOutcome_CircuitTripsAtThreshold(t *testing.T) {
	m := New(Config{CircuitBreakerThreshold: 5, CircuitBreakerTimeout: time.Minute})
	m.Register("a", nil)

	for i := 0; i < 4; i++ {
		m.ReportOutcome("a", 0, errors.New("upstream 5xx"), providers.ErrorKindUnavailable)
	}
	if !m.Available("a") {
		t.Fatal("circuit should still be closed before the 5th failure")
	}

	m.ReportOutcome("a", 0, errors.New("upstream 5xx"), providers.ErrorKindUnavailable)
	if m.Available("a") {
		t.Fatal("circuit should be open after the 5th consecutive failure")
	}

	rec, _ := m.Snapshot("a")
	if rec.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy once circuit is open, got %s", rec.Status)
	}
	if rec.Circuit != circuitbreaker.StateOpen {
		t.Fatalf("expected circuit state open, got %s", rec.Circuit)
	}
}

func TestReportOutcome_AuthFailedTripsImmediately(t *testing.T) {
	m := New(Config{})
	m.Register("a", nil)

	m.ReportOutcome("a", 0, errors.New("invalid api key"), providers.ErrorKindAuthFailed)

	if m.Available("a") {
		t.Fatal("a single auth_failed outcome must trip the circuit immediately")
	}
}

func TestReportOutcome_RateLimitedDoesNotCountTowardTrip(t *testing.T) {
	m := New(Config{CircuitBreakerThreshold: 2})
	m.Register("a", nil)

	for i := 0; i < 10; i++ {
		m.ReportOutcome("a", 0, errors.New("429"), providers.ErrorKindRateLimited)
	}

	if !m.Available("a") {
		t.Fatal("rate_limited outcomes must never trip the circuit")
	}
}

func TestReportOutcome_DegradedBeforeUnhealthy(t *testing.T) {
	m := New(Config{DegradedThreshold: 3, CircuitBreakerThreshold: 10})
	m.Register("a", nil)

	m.ReportOutcome("a", 0, errors.New("timeout"), providers.ErrorKindTimeout)
	rec, _ := m.Snapshot("a")
	if rec.Status != StatusDegraded {
		t.Fatalf("expected degraded after 1 failure below threshold, got %s", rec.Status)
	}

	m.ReportOutcome("a", 0, errors.New("timeout"), providers.ErrorKindTimeout)
	m.ReportOutcome("a", 0, errors.New("timeout"), providers.ErrorKindTimeout)
	rec, _ = m.Snapshot("a")
	if rec.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy at the degraded threshold, got %s", rec.Status)
	}
}

func TestAvailable_UnregisteredProvider(t *testing.T) {
	m := New(Config{})
	if m.Available("missing") {
		t.Fatal("an unregistered provider must never be available")
	}
}

type fakeProber struct {
	err  error
	took time.Duration
}

func (f fakeProber) Probe(ctx context.Context) (time.Duration, error) {
	return f.took, f.err
}

func TestProbeOne_SkipsWhenCircuitOpen(t *testing.T) {
	m := New(Config{CircuitBreakerThreshold: 1, CircuitBreakerTimeout: time.Hour})
	m.Register("a", fakeProber{err: errors.New("down")})

	e, _ := m.get("a")
	m.probeOne(context.Background(), "a", e)
	if m.Available("a") {
		t.Fatal("expected circuit open after first failing probe with threshold 1")
	}

	// A second probe call must skip calling the prober (circuit open, not
	// yet past the timeout) and still report unhealthy.
	m.probeOne(context.Background(), "a", e)
	rec, _ := m.Snapshot("a")
	if rec.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy while circuit open, got %s", rec.Status)
	}
}

func TestProbeOne_RecoversAfterTimeout(t *testing.T) {
	m := New(Config{CircuitBreakerThreshold: 1, CircuitBreakerTimeout: 10 * time.Millisecond})
	prober := &fakeProber{err: errors.New("down")}
	m.Register("a", prober)

	e, _ := m.get("a")
	m.probeOne(context.Background(), "a", e)
	if m.Available("a") {
		t.Fatal("expected circuit open after failing probe")
	}

	time.Sleep(20 * time.Millisecond)
	prober.err = nil
	m.probeOne(context.Background(), "a", e)
	if !m.Available("a") {
		t.Fatal("expected circuit closed after successful probe past the timeout")
	}
}
