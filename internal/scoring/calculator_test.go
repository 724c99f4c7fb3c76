package scoring

import (
	"testing"
	"time"
)

func TestCalculate_PureFunctionBitIdenticalOutput(t *testing.T) {
	in := Input{
		MedianResponseTime: 800 * time.Millisecond,
		P95ResponseTime:    2 * time.Second,
		RecentSamples: []Sample{
			{ResponseTime: 700 * time.Millisecond, Success: true, Age: time.Hour},
			{ResponseTime: 900 * time.Millisecond, Success: true, Age: 2 * time.Hour},
			{ResponseTime: 1200 * time.Millisecond, Success: false, Age: 3 * time.Hour},
		},
		Cost:       0.004,
		PeerCosts:  []float64{0.002, 0.004, 0.01},
		Availability: []Sample{
			{Success: true, Age: time.Hour},
			{Success: true, Age: 4 * time.Hour},
		},
		TrendScore: 0.6,
	}

	a := Calculate(in, DefaultWeights())
	b := Calculate(in, DefaultWeights())

	if a != b {
		t.Fatalf("expected bit-identical output for identical input, got %+v vs %+v", a, b)
	}
}

func TestCalculate_CompositeBounded(t *testing.T) {
	in := Input{
		MedianResponseTime: 10 * time.Second,
		P95ResponseTime:    20 * time.Second,
		Cost:               1.0,
		TrendScore:         0,
	}
	out := Calculate(in, DefaultWeights())
	if out.Composite < 0 || out.Composite > 1 {
		t.Fatalf("composite score out of [0,1]: %v", out.Composite)
	}
}

func TestCalculate_FasterCheaperProviderScoresHigher(t *testing.T) {
	fast := Input{
		MedianResponseTime: 300 * time.Millisecond,
		P95ResponseTime:    500 * time.Millisecond,
		RecentSamples: []Sample{
			{ResponseTime: 300 * time.Millisecond, Success: true, Age: time.Minute},
		},
		Cost:       0.001,
		PeerCosts:  []float64{0.001, 0.02},
		TrendScore: 0.8,
	}
	slow := Input{
		MedianResponseTime: 4 * time.Second,
		P95ResponseTime:    9 * time.Second,
		RecentSamples: []Sample{
			{ResponseTime: 4 * time.Second, Success: true, Age: time.Minute},
		},
		Cost:       0.02,
		PeerCosts:  []float64{0.001, 0.02},
		TrendScore: 0.2,
	}

	fastScore := Calculate(fast, DefaultWeights())
	slowScore := Calculate(slow, DefaultWeights())

	if fastScore.Composite <= slowScore.Composite {
		t.Fatalf("expected faster/cheaper provider to score higher: fast=%v slow=%v", fastScore.Composite, slowScore.Composite)
	}
}

func TestCalculate_EmptySamplesDoNotPanic(t *testing.T) {
	Calculate(Input{}, Weights{})
}

func TestCalculate_ZeroWeightsFallsBackToDefault(t *testing.T) {
	in := Input{MedianResponseTime: time.Second, P95ResponseTime: 2 * time.Second}
	withZero := Calculate(in, Weights{})
	withDefault := Calculate(in, DefaultWeights())
	if withZero != withDefault {
		t.Fatalf("expected zero Weights to fall back to DefaultWeights")
	}
}
