package weight

import (
	"testing"
	"time"
)

func TestReportOutcome_FirstObservationInitializesEMA(t *testing.T) {
	m := New(Config{})
	m.Register("p", 1.0)

	m.ReportOutcome("p", 500*time.Millisecond, 0.002, true, 1.0)
	snap, ok := m.Snapshot("p")
	if !ok {
		t.Fatal("expected provider to be registered")
	}
	if snap.EMASuccessRate != 1.0 {
		t.Fatalf("expected first observation to initialize EMA directly, got %v", snap.EMASuccessRate)
	}
}

func TestReportOutcome_PerformanceDegradationTrigger(t *testing.T) {
	m := New(Config{})
	m.Register("p", 1.0)

	// Five successes establish ema_success_rate ~= 1.0.
	for i := 0; i < 5; i++ {
		m.ReportOutcome("p", 100*time.Millisecond, 0.001, true, 1.0)
	}
	before, _ := m.Snapshot("p")
	if before.EMASuccessRate < 0.9 {
		t.Fatalf("expected ema_success_rate near 1.0, got %v", before.EMASuccessRate)
	}

	// Five failures drag the recent window (last 10) well below ema-0.2.
	for i := 0; i < 5; i++ {
		m.ReportOutcome("p", 100*time.Millisecond, 0.001, false, 0.0)
	}

	after, _ := m.Snapshot("p")
	if after.CurrentWeight >= before.CurrentWeight {
		t.Fatalf("expected weight to drop after performance_degradation trigger: before=%v after=%v", before.CurrentWeight, after.CurrentWeight)
	}

	events := m.Events()
	found := false
	for _, e := range events {
		if e.Provider == "p" && e.Reason == "performance_degradation" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a performance_degradation AdjustmentEvent to be recorded")
	}
}

func TestReportOutcome_AvailabilityDropTrigger(t *testing.T) {
	m := New(Config{})
	m.Register("p", 1.0)

	// Five successful, available outcomes establish ema_availability ~= 1.0.
	for i := 0; i < 5; i++ {
		m.ReportOutcome("p", 100*time.Millisecond, 0.001, true, 1.0)
	}
	before, _ := m.Snapshot("p")
	if before.EMAAvailability < 0.9 {
		t.Fatalf("expected ema_availability near 1.0, got %v", before.EMAAvailability)
	}

	// Five more outcomes keep success_rate high (no performance_degradation)
	// but report availability 0, which should trip availability_drop instead.
	for i := 0; i < 5; i++ {
		m.ReportOutcome("p", 100*time.Millisecond, 0.001, true, 0.0)
	}

	after, _ := m.Snapshot("p")
	if after.CurrentWeight >= before.CurrentWeight {
		t.Fatalf("expected weight to drop after availability_drop trigger: before=%v after=%v", before.CurrentWeight, after.CurrentWeight)
	}

	events := m.Events()
	found := false
	for _, e := range events {
		if e.Provider == "p" && e.Reason == "availability_drop" {
			found = true
		}
		if e.Provider == "p" && e.Reason == "performance_degradation" {
			t.Fatal("expected success-rate-preserving scenario not to trip performance_degradation")
		}
	}
	if !found {
		t.Fatal("expected an availability_drop AdjustmentEvent to be recorded")
	}
}

func TestWeightClamp_NeverEscapesBounds(t *testing.T) {
	m := New(Config{MinWeight: 0.1, MaxWeight: 10.0})
	m.Register("p", 1.0)

	for i := 0; i < 200; i++ {
		success := i%7 != 0
		m.ReportOutcome("p", time.Duration(i%5)*time.Second, 0.01, success, 1.0)
	}

	w := m.Weight("p")
	if w < 0.1 || w > 10.0 {
		t.Fatalf("current_weight escaped bounds: %v", w)
	}
}

func TestRebalance_NoProvidersIsNoop(t *testing.T) {
	m := New(Config{})
	m.Rebalance() // must not panic
}

func TestRebalance_GlobalNudgeOnShareDeviation(t *testing.T) {
	m := New(Config{RebalanceThreshold: 0.1, Sensitivity: 1.0})
	m.Register("a", 5.0)
	m.Register("b", 1.0)

	m.ReportOutcome("a", 200*time.Millisecond, 0.001, true, 1.0)
	m.ReportOutcome("b", 200*time.Millisecond, 0.001, true, 1.0)

	m.Rebalance()

	wa, wb := m.Weight("a"), m.Weight("b")
	if wa < 0.1 || wa > 10.0 || wb < 0.1 || wb > 10.0 {
		t.Fatalf("rebalance produced out-of-bound weights: a=%v b=%v", wa, wb)
	}
}

func TestUnregister_RemovesProvider(t *testing.T) {
	m := New(Config{})
	m.Register("p", 1.0)
	m.Unregister("p")

	if _, ok := m.Snapshot("p"); ok {
		t.Fatal("expected provider to be gone after Unregister")
	}
	if m.Weight("p") != 0 {
		t.Fatalf("expected zero weight for unregistered provider, got %v", m.Weight("p"))
	}
}
