// Package router implements the Intelligent Router: request-characteristic
// derivation, selector selection, candidate resolution via the Alias
// Resolver, and descending-score candidate ordering combining the Score
// Calculator with health and pool-capacity penalties.
//
// Grounded on original_source/advanced_routing/pattern_analyzer.py for the
// request-characteristic derivation (simplified to spec.md §4.6's
// deterministic rules; the clustering contribution is left advisory per the
// resolved Open Question) and on the teacher's
// internal/strategies/conditional.go for the task_routing condition-matching
// shape.
package router

import (
	"context"
	"time"

	"github.com/ferro-labs/model-gateway/internal/alias"
	"github.com/ferro-labs/model-gateway/internal/health"
	"github.com/ferro-labs/model-gateway/internal/pool"
	"github.com/ferro-labs/model-gateway/internal/scoring"
	"github.com/ferro-labs/model-gateway/internal/weight"
)

// Complexity mirrors spec.md §3's GenerationRequest.complexity enum.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Sensitivity is a coarse high/medium/low tri-state used for
// cost_sensitivity and quality_requirement.
type Sensitivity string

const (
	SensitivityHigh   Sensitivity = "high"
	SensitivityMedium Sensitivity = "medium"
	SensitivityLow    Sensitivity = "low"
)

// Features is the derived request-characteristic bundle of spec.md §4.6
// step 1.
type Features struct {
	Complexity         Complexity
	Urgency            Sensitivity // only "high" or "normal" in spec.md, modeled as high/medium here
	CostSensitivity    Sensitivity
	QualityRequirement Sensitivity
}

// urgentTaskTypes lists task_type values that imply urgency=high.
var urgentTaskTypes = map[string]bool{
	"triage":             true,
	"outcome_detection":  true,
	"sentiment_analysis": true,
}

// qualityTaskTypes lists task_type values that imply quality_requirement=high.
var qualityTaskTypes = map[string]bool{
	"critique":   true,
	"refinement": true,
}

// DeriveFeatures implements spec.md §4.6 step 1.
func DeriveFeatures(promptLen int, explicitComplexity Complexity, taskType string) Features {
	complexity := explicitComplexity
	if complexity == "" {
		switch {
		case promptLen < 100:
			complexity = ComplexitySimple
		case promptLen > 1000:
			complexity = ComplexityComplex
		default:
			complexity = ComplexityMedium
		}
	}

	urgency := SensitivityMedium
	if urgentTaskTypes[taskType] {
		urgency = SensitivityHigh
	}

	var costSensitivity Sensitivity
	switch {
	case urgency == SensitivityHigh || complexity == ComplexitySimple:
		costSensitivity = SensitivityHigh
	case complexity == ComplexityComplex:
		costSensitivity = SensitivityLow
	default:
		costSensitivity = SensitivityMedium
	}

	qualityRequirement := SensitivityMedium
	if qualityTaskTypes[taskType] || complexity == ComplexityComplex {
		qualityRequirement = SensitivityHigh
	}

	return Features{
		Complexity:         complexity,
		Urgency:            urgency,
		CostSensitivity:    costSensitivity,
		QualityRequirement: qualityRequirement,
	}
}

// TaskRoute maps one task_type to the alias it should resolve through,
// shaped after the teacher's internal/strategies/conditional.go
// Condition{Key,Value,TargetKey}.
type TaskRoute struct {
	TaskType string
	Alias    string
}

// Request is the subset of GenerationRequest the router needs.
type Request struct {
	Prompt          string
	TaskType        string
	Complexity      Complexity
	Selector        string // user-supplied selector, used when no routing-table match applies
	ClientIP        string // optional, enables the geo pre-filter
	CostOptimize    bool
	FallbackEnabled bool
}

// Candidate is a scored, ordered (provider, model) pair ready for dispatch.
type Candidate struct {
	Provider string
	ModelID  string
	Score    float64
}

// HighQualityProviders is the config-supplied set of providers flagged as
// "high-quality" for the quality_requirement score adjustment of spec.md
// §4.6 step 4.
type HighQualityProviders map[string]bool

// Router combines the Alias Resolver, Score Calculator, Health Monitor, and
// connection pools to produce a descending-score candidate list.
type Router struct {
	Aliases    *alias.Resolver
	Health     *health.Monitor
	Weights    *weight.Manager
	Pools      *pool.Registry
	TaskRoutes map[string]string // task_type -> alias name
	HighQuality HighQualityProviders
	Geofilter  func(ctx context.Context, clientIP string, candidates []alias.Entry) []alias.Entry
}

// SelectSelector implements spec.md §4.6 step 2.
func (r *Router) SelectSelector(req Request, features Features) string {
	if aliasName, ok := r.TaskRoutes[req.TaskType]; ok {
		return aliasName
	}
	if req.CostOptimize {
		if features.Complexity == ComplexitySimple {
			return "cheapest"
		}
		if features.Complexity == ComplexityComplex {
			return "best"
		}
	}
	if req.Selector != "" {
		return req.Selector
	}
	return "balanced"
}

// Route runs the full routing pipeline and returns an ordered candidate
// list, highest score first.
func (r *Router) Route(ctx context.Context, req Request) []Candidate {
	features := DeriveFeatures(len(req.Prompt), req.Complexity, req.TaskType)
	selector := r.SelectSelector(req, features)

	entries := r.Aliases.Resolve(selector)
	if r.Geofilter != nil && req.ClientIP != "" {
		entries = r.Geofilter(ctx, req.ClientIP, entries)
	}

	candidates := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		score := r.scoreCandidate(e, features)
		candidates = append(candidates, Candidate{Provider: e.Provider, ModelID: e.ModelID, Score: score})
	}

	sortDescending(candidates)
	return candidates
}

// scoreCandidate implements spec.md §4.6 step 4: composite score (0-100)
// plus request-characteristic multipliers and health/pool penalties.
func (r *Router) scoreCandidate(e alias.Entry, features Features) float64 {
	metrics, _ := r.Weights.Snapshot(e.Provider)

	composite := scoring.Calculate(scoring.Input{
		MedianResponseTime: metrics.EMAResponseTime,
		P95ResponseTime:    metrics.EMAResponseTime * 2,
		Cost:               metrics.EMACost,
		TrendScore:         metrics.TrendScore,
	}, scoring.DefaultWeights())

	score := composite.Composite * 100

	if features.Urgency == SensitivityHigh && metrics.EMAResponseTime > 0 && metrics.EMAResponseTime < 2*time.Second {
		score *= 1.3
	}
	if features.QualityRequirement == SensitivityHigh && r.HighQuality != nil && r.HighQuality[e.Provider] {
		score *= 1.3
	}
	if features.CostSensitivity == SensitivityHigh && r.isLowestCost(e.Provider, metrics.EMACost) {
		score *= 1.4
	}

	if r.Health != nil {
		if rec, ok := r.Health.Snapshot(e.Provider); ok && rec.Status == health.StatusUnhealthy {
			score -= 50
		}
	}
	if r.Pools != nil {
		if p := r.Pools.Get(e.Provider); p != nil && p.Full() {
			score -= 50
		}
	}

	return score
}

// isLowestCost reports whether provider's ema_cost is the lowest among all
// providers currently tracked by the Weight Manager. Used for the
// cost_sensitivity=high multiplier of spec.md §4.6 step 4.
func (r *Router) isLowestCost(provider string, cost float64) bool {
	for _, name := range r.Weights.Providers() {
		if name == provider {
			continue
		}
		peer, ok := r.Weights.Snapshot(name)
		if ok && peer.EMACost < cost {
			return false
		}
	}
	return true
}
