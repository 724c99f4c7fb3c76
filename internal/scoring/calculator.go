// Package scoring implements the Score Calculator: a pure, stateless
// function mapping a provider's weight metrics (plus optional peer costs)
// to a composite score in [0,1].
//
// Grounded on original_source/advanced_routing/score_calculator.py for the
// sub-score formulas and time-decay weighting. No network calls, no shared
// state — the same inputs always produce bit-identical output, satisfying
// the purity invariant of spec.md §8.
package scoring

import (
	"math"
	"time"
)

// Weights holds the composite-score mixing weights. Must sum to 1; Calculate
// applies the spec default split when a zero Weights is passed.
type Weights struct {
	Latency      float64
	Throughput   float64
	Reliability  float64
	Cost         float64
	Quality      float64
	Consistency  float64
	Availability float64
	Trend        float64
}

// DefaultWeights returns the spec.md §4.4 default composite-score mix.
func DefaultWeights() Weights {
	return Weights{
		Latency:      0.25,
		Throughput:   0.15,
		Reliability:  0.20,
		Cost:         0.15,
		Quality:      0.10,
		Consistency:  0.10,
		Availability: 0.03,
		Trend:        0.02,
	}
}

func (w Weights) sum() float64 {
	return w.Latency + w.Throughput + w.Reliability + w.Cost + w.Quality + w.Consistency + w.Availability + w.Trend
}

func (w Weights) orDefault() Weights {
	if w.sum() <= 0 {
		return DefaultWeights()
	}
	return w
}

// Sample is a single observed (response_time, success) pair with an age
// used for time-decay weighting. ResponseTime and Success mirror the
// recent-window samples the Weight Manager maintains; Age is how long ago
// the sample was observed.
type Sample struct {
	ResponseTime time.Duration
	Success      bool
	Age          time.Duration
}

// Input is everything the Score Calculator needs to score one candidate.
type Input struct {
	MedianResponseTime time.Duration
	P95ResponseTime    time.Duration

	RecentSamples []Sample // for reliability/consistency time-decay averaging

	Cost          float64   // ema_cost for this candidate
	PeerCosts     []float64 // ema_cost of every candidate being compared, including this one; nil if unavailable

	Availability []Sample // availability observations reused as Success field; time-decayed mean

	TrendScore float64 // pre-computed by the Weight Manager, passed through
}

// Components is the per-candidate breakdown the router can log or inspect.
type Components struct {
	LatencyScore      float64
	ReliabilityScore  float64
	CostScore         float64
	AvailabilityScore float64
	ConsistencyScore  float64
	TrendScore        float64
	Composite         float64
}

// Calculate computes the composite score and its component breakdown for
// one candidate, using w for the composite mix (DefaultWeights() if zero).
func Calculate(in Input, w Weights) Components {
	w = w.orDefault()

	latency := latencyScore(in.MedianResponseTime, in.P95ResponseTime)
	reliability := reliabilityScore(in.RecentSamples)
	cost := costScore(in.Cost, in.PeerCosts)
	availability := availabilityScore(in.Availability)
	consistency := consistencyScore(in.RecentSamples)
	trend := clamp(in.TrendScore, 0, 1)

	composite := latency*w.Latency +
		reliability*w.Reliability +
		cost*w.Cost +
		availability*w.Availability +
		consistency*w.Consistency +
		trend*w.Trend +
		// Throughput and Quality have no dedicated sub-score in spec.md §4.4's
		// formula list; their configured share folds into reliability, which
		// is the closest available signal. See DESIGN.md.
		reliability*(w.Throughput+w.Quality)

	return Components{
		LatencyScore:      latency,
		ReliabilityScore:  reliability,
		CostScore:         cost,
		AvailabilityScore: availability,
		ConsistencyScore:  consistency,
		TrendScore:        trend,
		Composite:         clamp(composite, 0, 1),
	}
}

// latencyScore weights the inverse-normalized median (70%) and p95 (30%)
// response times per spec.md §4.4.
func latencyScore(median, p95 time.Duration) float64 {
	medianScore := inverseNormalize(median.Seconds(), 0.5, 5.0)
	p95Score := inverseNormalize(p95.Seconds(), 1.0, 10.0)
	return medianScore*0.7 + p95Score*0.3
}

// reliabilityScore is a time-decayed weighted average of success rate (80%)
// plus a consistency term based on variance (20%).
func reliabilityScore(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0.5
	}
	weightedSuccess, totalWeight := 0.0, 0.0
	for _, s := range samples {
		w := decayWeight(s.Age)
		if s.Success {
			weightedSuccess += w
		}
		totalWeight += w
	}
	successRate := 0.0
	if totalWeight > 0 {
		successRate = weightedSuccess / totalWeight
	}

	variance := successVariance(samples)
	consistency := clamp(1-variance/0.1, 0, 1)

	return successRate*0.8 + consistency*0.2
}

// costScore normalizes observed cost against peer costs when available,
// otherwise against the fixed $0.001-$0.1 per-1k-token range from spec.md
// §4.4.
func costScore(cost float64, peers []float64) float64 {
	if len(peers) > 0 {
		lo, hi := peers[0], peers[0]
		for _, p := range peers {
			if p < lo {
				lo = p
			}
			if p > hi {
				hi = p
			}
		}
		if hi <= lo {
			return 1
		}
		return clamp(1-(cost-lo)/(hi-lo), 0, 1)
	}
	return inverseNormalize(cost, 0.001, 0.1)
}

// availabilityScore is the time-decayed mean of observed availabilities,
// where each Sample's Success field stands in for "was available".
func availabilityScore(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0.5
	}
	weighted, totalWeight := 0.0, 0.0
	for _, s := range samples {
		w := decayWeight(s.Age)
		if s.Success {
			weighted += w
		}
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0.5
	}
	return weighted / totalWeight
}

// consistencyScore averages (1 - coefficient_of_variation) across the
// response-time and success-rate windows.
func consistencyScore(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0.5
	}
	rtCV := coefficientOfVariationDuration(samples)
	srCV := coefficientOfVariationSuccess(samples)
	return clamp(1-rtCV, 0, 1)*0.5 + clamp(1-srCV, 0, 1)*0.5
}

func coefficientOfVariationDuration(samples []Sample) float64 {
	vals := make([]float64, len(samples))
	for i, s := range samples {
		vals[i] = s.ResponseTime.Seconds()
	}
	mean, stddev := meanStddev(vals)
	if mean == 0 {
		return 0
	}
	return stddev / mean
}

func coefficientOfVariationSuccess(samples []Sample) float64 {
	vals := make([]float64, len(samples))
	for i, s := range samples {
		if s.Success {
			vals[i] = 1
		}
	}
	mean, stddev := meanStddev(vals)
	if mean == 0 {
		return 0
	}
	return stddev / mean
}

func successVariance(samples []Sample) float64 {
	vals := make([]float64, len(samples))
	for i, s := range samples {
		if s.Success {
			vals[i] = 1
		}
	}
	_, stddev := meanStddev(vals)
	return stddev * stddev
}

func meanStddev(vals []float64) (mean, stddev float64) {
	n := float64(len(vals))
	if n == 0 {
		return 0, 0
	}
	for _, v := range vals {
		mean += v
	}
	mean /= n
	var sumSq float64
	for _, v := range vals {
		d := v - mean
		sumSq += d * d
	}
	stddev = math.Sqrt(sumSq / n)
	return mean, stddev
}

// decayWeight implements the time-decay weighting of spec.md §4.4: an
// observation at age h hours carries weight max(0.1, 1 - h/24).
func decayWeight(age time.Duration) float64 {
	hours := age.Hours()
	w := 1 - hours/24
	if w < 0.1 {
		w = 0.1
	}
	return w
}

// inverseNormalize maps v to [0,1] where v<=lo scores 1 and v>=hi scores 0.
func inverseNormalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return clamp(1-(v-lo)/(hi-lo), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
