// Package dispatcher implements the Dispatcher: executes an ordered
// candidate list against live providers with fallback, connection-pool
// bounding, and outcome reporting to the Weight Manager and Health Monitor.
//
// Grounded on the teacher's internal/strategies/fallback.go retry/backoff
// loop (the exponential-backoff-between-retries and ctx.Done() cancellation
// check are kept nearly verbatim), generalized from static config targets to
// Router-ordered (provider, model) candidates.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ferro-labs/model-gateway/internal/health"
	"github.com/ferro-labs/model-gateway/internal/logging"
	"github.com/ferro-labs/model-gateway/internal/metrics"
	"github.com/ferro-labs/model-gateway/internal/pool"
	"github.com/ferro-labs/model-gateway/internal/router"
	"github.com/ferro-labs/model-gateway/internal/weight"
	"github.com/ferro-labs/model-gateway/providers"
)

// Method selects which provider operation the dispatcher invokes, per
// spec.md §4.7's dispatch(request, selector, method).
type Method string

const (
	MethodGenerateText             Method = "generate_text"
	MethodGenerateStructuredOutput Method = "generate_structured_output"
)

// Result is the gateway-level GenerationResponse of spec.md §3. Content is
// empty on failure; Error is non-empty iff the dispatch failed.
type Result struct {
	Content          string
	ModelID          string
	ProviderName     string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Cost             float64
	ResponseTime     time.Duration
	Error            string
	FallbackDepth    int
	Raw              *providers.Response
}

// ProviderLookup resolves a provider name to its live adapter instance.
type ProviderLookup func(name string) (providers.Provider, bool)

// CostEstimator computes the USD cost of a completed request. Implementations
// typically wrap models.Calculate against the catalog.
type CostEstimator func(provider, model string, usage providers.Usage) float64

// CapabilitySource reports whether provider/model advertises the
// structured_output capability in the model catalog. Implementations
// typically wrap a models.Catalog lookup. A nil CapabilitySource disables
// the gate (treated as supported), matching the behavior of a model missing
// from the catalog.
type CapabilitySource func(provider, model string) bool

// Config tunes per-call timeout, retry count, and fallback behavior.
type Config struct {
	Timeout         time.Duration // default 60s, per spec.md §4.7 step 2d
	MaxRetries      int           // per-candidate retry attempts before moving on; default 1 (no retry)
	FallbackEnabled bool
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 1
	}
}

// Dispatcher ties the Intelligent Router to live provider adapters.
type Dispatcher struct {
	cfg Config

	Router       *router.Router
	Lookup       ProviderLookup
	Pools        *pool.Registry
	Health       *health.Monitor
	Weights      *weight.Manager
	Cost         CostEstimator
	Capabilities CapabilitySource
}

// New creates a Dispatcher, applying spec defaults for zero Config fields.
func New(cfg Config, r *router.Router, lookup ProviderLookup, pools *pool.Registry, healthMon *health.Monitor, weights *weight.Manager, cost CostEstimator, capabilities CapabilitySource) *Dispatcher {
	cfg.applyDefaults()
	return &Dispatcher{cfg: cfg, Router: r, Lookup: lookup, Pools: pools, Health: healthMon, Weights: weights, Cost: cost, Capabilities: capabilities}
}

// Dispatch implements spec.md §4.7: resolve candidates via the Intelligent
// Router, then try each in order with fallback, returning the first
// non-error response or a synthesized gateway failure.
func (d *Dispatcher) Dispatch(ctx context.Context, req providers.Request, routerReq router.Request, method Method, requiredKeys []string) Result {
	candidates := d.Router.Route(ctx, routerReq)
	if len(candidates) == 0 {
		return Result{
			ProviderName: "gateway",
			Error:        "no_candidates: router returned an empty candidate list",
		}
	}

	log := logging.FromContext(ctx)

	var lastErr error
	depth := 0
	for _, cand := range candidates {
		provider, ok := d.Lookup(cand.Provider)
		if !ok {
			lastErr = fmt.Errorf("provider not found: %s", cand.Provider)
			continue
		}

		// Step 2a: skip if unavailable or pool at capacity.
		if d.Health != nil && !d.Health.Available(cand.Provider) {
			log.Info("skipping unavailable candidate", "provider", cand.Provider, "model", cand.ModelID)
			continue
		}

		var p *pool.ConnectionPool
		if d.Pools != nil {
			p = d.Pools.Get(cand.Provider)
		}
		if p != nil && p.Full() {
			lastErr = fmt.Errorf("pool_exhausted: %s", cand.Provider)
			log.Info("skipping candidate at pool capacity", "provider", cand.Provider)
			continue
		}

		// Step 2b: structured-output capability check. Gated against the
		// model catalog's structured_output flag, not the provider-level
		// CapabilityReporter — no adapter implements per-model capability
		// reporting, so that path would never skip anything.
		if method == MethodGenerateStructuredOutput && d.Capabilities != nil && !d.Capabilities(cand.Provider, cand.ModelID) {
			log.Info("skipping candidate lacking structured_output capability", "provider", cand.Provider, "model", cand.ModelID)
			continue
		}

		if p != nil {
			if !p.TryAcquire() {
				lastErr = fmt.Errorf("pool_exhausted: %s", cand.Provider)
				continue
			}
		}

		depth++
		res, err := d.tryCandidate(ctx, provider, cand, req, requiredKeys)

		if p != nil {
			p.Release()
		}
		if d.Pools != nil {
			d.Pools.ReportActive()
		}

		res.FallbackDepth = depth - 1
		if err == nil {
			return res
		}

		lastErr = err
		if !d.cfg.FallbackEnabled {
			return res
		}
		// Continue to the next candidate.
	}

	if lastErr == nil {
		lastErr = errors.New("no candidate attempted")
	}
	return Result{
		ProviderName: "gateway",
		Error:        fmt.Sprintf("All providers failed. Last error: %v", lastErr),
	}
}

// tryCandidate runs the per-candidate retry loop (grounded on
// internal/strategies/fallback.go's exponential backoff) and reports the
// outcome to the Weight Manager and Health Monitor regardless of success.
func (d *Dispatcher) tryCandidate(ctx context.Context, provider providers.Provider, cand router.Candidate, req providers.Request, requiredKeys []string) (Result, error) {
	callReq := req
	callReq.Model = cand.ModelID

	var lastErr error
	for attempt := 0; attempt < d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return d.cancelledResult(cand), ctx.Err()
			case <-time.After(backoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		start := time.Now()
		resp, err := provider.Complete(callCtx, callReq)
		elapsed := time.Since(start)
		cancel()

		if ctx.Err() != nil {
			outcome := d.cancelledResult(cand)
			outcome.ResponseTime = elapsed
			d.reportOutcome(cand, elapsed, 0, false, providers.ErrorKindCancelled)
			return outcome, ctx.Err()
		}

		if err == nil {
			result := d.buildResult(cand, resp, elapsed, requiredKeys)
			success := result.Error == ""
			d.reportOutcome(cand, elapsed, result.Cost, success, classifyResultError(result))
			if success {
				return result, nil
			}
			lastErr = errors.New(result.Error)
			return result, lastErr
		}

		kind := providers.ClassifyErr(err)
		d.reportOutcome(cand, elapsed, 0, false, kind)
		lastErr = fmt.Errorf("%s: %w", cand.Provider, err)

		if !kind.Retryable() {
			break
		}
	}

	return Result{
		ProviderName: cand.Provider,
		ModelID:      cand.ModelID,
		Error:        lastErr.Error(),
	}, lastErr
}

func classifyResultError(r Result) providers.ErrorKind {
	if r.Error == "" {
		return ""
	}
	return providers.ErrorKindUnknown
}

func (d *Dispatcher) cancelledResult(cand router.Candidate) Result {
	return Result{
		ProviderName: cand.Provider,
		ModelID:      cand.ModelID,
		Error:        "cancelled",
	}
}

func (d *Dispatcher) reportOutcome(cand router.Candidate, responseTime time.Duration, cost float64, success bool, kind providers.ErrorKind) {
	availability := 0.0
	if success {
		availability = 1.0
	}
	if d.Weights != nil {
		d.Weights.ReportOutcome(cand.Provider, responseTime, cost, success, availability)
	}
	if d.Health != nil {
		var err error
		if !success {
			err = fmt.Errorf("dispatch outcome: %s", kind)
		}
		d.Health.ReportOutcome(cand.Provider, responseTime, err, kind)
	}

	status := "success"
	if !success {
		status = "error"
		metrics.ProviderErrors.WithLabelValues(cand.Provider, string(kind)).Inc()
	}
	metrics.RequestsTotal.WithLabelValues(cand.Provider, cand.ModelID, status).Inc()
	metrics.RequestDuration.WithLabelValues(cand.Provider, cand.ModelID).Observe(responseTime.Seconds())
}

// buildResult normalizes a provider Response into the gateway-level Result,
// computing cost via the configured CostEstimator and validating structured
// output when requiredKeys is non-empty.
func (d *Dispatcher) buildResult(cand router.Candidate, resp *providers.Response, elapsed time.Duration, requiredKeys []string) Result {
	result := Result{
		ProviderName:     cand.Provider,
		ModelID:          cand.ModelID,
		ResponseTime:     elapsed,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		Raw:              resp,
	}
	if len(resp.Choices) > 0 {
		result.Content = resp.Choices[0].Message.Content
	}
	if d.Cost != nil {
		result.Cost = d.Cost(cand.Provider, cand.ModelID, resp.Usage)
	}

	if len(requiredKeys) > 0 {
		if _, err := providers.ValidateStructured(result.Content, requiredKeys); err != nil {
			result.Error = err.Error()
		}
	}

	metrics.TokensInput.WithLabelValues(cand.Provider, cand.ModelID).Add(float64(result.PromptTokens))
	metrics.TokensOutput.WithLabelValues(cand.Provider, cand.ModelID).Add(float64(result.CompletionTokens))

	return result
}
