package latency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ferro-labs/model-gateway/internal/weight"
)

func TestSampler_SampleOne_ReachableReportsAvailability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	weights := weight.New(weight.Config{})
	weights.Register("mock", 1.0)

	s := New(Config{}, weights, func() []Target {
		return []Target{{Provider: "mock", BaseURL: srv.URL}}
	})
	s.sampleOne(context.Background(), Target{Provider: "mock", BaseURL: srv.URL})

	snap, ok := weights.Snapshot("mock")
	if !ok {
		t.Fatal("expected mock to be registered")
	}
	if snap.EMAAvailability != 1.0 {
		t.Errorf("got EMAAvailability %v, want 1.0", snap.EMAAvailability)
	}
}

func TestSampler_SampleOne_UnreachableReportsZeroAvailability(t *testing.T) {
	weights := weight.New(weight.Config{})
	weights.Register("mock", 1.0)

	s := New(Config{Timeout: 50 * time.Millisecond}, weights, nil)
	s.sampleOne(context.Background(), Target{Provider: "mock", BaseURL: "http://127.0.0.1:1"})

	snap, ok := weights.Snapshot("mock")
	if !ok {
		t.Fatal("expected mock to be registered")
	}
	if snap.EMAAvailability != 0 {
		t.Errorf("got EMAAvailability %v, want 0", snap.EMAAvailability)
	}
}

func TestSampler_Run_StopsOnCancellation(t *testing.T) {
	weights := weight.New(weight.Config{})
	s := New(Config{Interval: time.Millisecond}, weights, func() []Target { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestProxiableTargets_NilMapReturnsNoTargets(t *testing.T) {
	targets := ProxiableTargets(nil)
	if len(targets) != 0 {
		t.Errorf("expected no targets for a nil provider map, got %d", len(targets))
	}
}
