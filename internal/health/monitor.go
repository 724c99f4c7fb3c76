// Package health implements the gateway's liveness tracking: a periodic
// probe loop per provider, consecutive-failure counting, and the
// circuit-breaker-gated status derivation used by the router and dispatcher
// to decide which providers are currently eligible to serve traffic.
//
// Grounded on original_source/advanced_routing/health_monitor.py for the
// state-update and status-derivation rules, and on the teacher's
// internal/circuitbreaker package for the closed/open/half-open state
// machine underlying the circuit field.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/ferro-labs/model-gateway/internal/circuitbreaker"
	"github.com/ferro-labs/model-gateway/internal/logging"
	"github.com/ferro-labs/model-gateway/internal/metrics"
	"github.com/ferro-labs/model-gateway/providers"
)

// Status is the derived liveness classification for a provider.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// Prober performs a cheap liveness check for a single provider, distinct
// from a real generation call. Adapters implementing providers.HealthChecker
// are wrapped directly; others fall back to a minimal synthesized request.
type Prober interface {
	Probe(ctx context.Context) (time.Duration, error)
}

// Config tunes the monitor's thresholds and timing. Zero values are
// replaced with spec defaults by New.
type Config struct {
	CheckInterval           time.Duration // default 30s
	CircuitBreakerThreshold int           // default 5; consecutive failures to trip the circuit
	CircuitBreakerTimeout   time.Duration // default 300s; time the circuit stays open
	DegradedThreshold       int           // default 3; consecutive failures before status=unhealthy
	HealthyResponseTime     time.Duration // default 2s; probes slower than this are never "healthy"
}

func (c *Config) applyDefaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = 30 * time.Second
	}
	if c.CircuitBreakerThreshold <= 0 {
		c.CircuitBreakerThreshold = 5
	}
	if c.CircuitBreakerTimeout <= 0 {
		c.CircuitBreakerTimeout = 300 * time.Second
	}
	if c.DegradedThreshold <= 0 {
		c.DegradedThreshold = 3
	}
	if c.HealthyResponseTime <= 0 {
		c.HealthyResponseTime = 2 * time.Second
	}
}

// Record is a point-in-time snapshot of a provider's health state, safe to
// copy and hand to callers outside the monitor's lock.
type Record struct {
	Status              Status
	LastProbeTime        time.Time
	ConsecutiveFailures int
	TotalErrors         int
	LastError           string
	ResponseTime        time.Duration
	Circuit             circuitbreaker.State
	FailureCount        int
	OpenUntil           time.Time
}

type entry struct {
	mu      sync.RWMutex
	record  Record
	breaker *circuitbreaker.CircuitBreaker
	prober  Prober
}

// Monitor tracks liveness for a set of registered providers.
type Monitor struct {
	cfg Config

	mu       sync.RWMutex
	entries  map[string]*entry
}

// New creates a Monitor with the given configuration, applying spec
// defaults for any zero fields.
func New(cfg Config) *Monitor {
	cfg.applyDefaults()
	return &Monitor{
		cfg:     cfg,
		entries: make(map[string]*entry),
	}
}

// Register adds a provider to the monitor with a fresh HealthState and a
// closed circuit breaker. Matches spec.md §3: WeightMetrics/HealthState are
// created on registration.
func (m *Monitor) Register(name string, prober Prober) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = &entry{
		record: Record{Status: StatusUnknown},
		breaker: circuitbreaker.New(
			m.cfg.CircuitBreakerThreshold,
			1,
			m.cfg.CircuitBreakerTimeout,
		),
		prober: prober,
	}
}

// Unregister removes a provider's health state entirely.
func (m *Monitor) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, name)
}

func (m *Monitor) get(name string) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	return e, ok
}

// Available reports whether the provider is currently eligible to receive
// traffic: it is registered and its circuit is not open.
func (m *Monitor) Available(name string) bool {
	e, ok := m.get(name)
	if !ok {
		return false
	}
	return e.breaker.Allow()
}

// Snapshot returns a copy of the provider's current health record.
func (m *Monitor) Snapshot(name string) (Record, bool) {
	e, ok := m.get(name)
	if !ok {
		return Record{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	r := e.record
	fc, _, openUntil := e.breaker.Counts()
	r.Circuit = e.breaker.State()
	r.FailureCount = fc
	r.OpenUntil = openUntil
	return r, true
}

// ReportOutcome feeds a real dispatch outcome into the same state-update
// path a scheduled probe would use (spec.md §4.7 step 2f: the Dispatcher
// reports outcomes to both the Weight Manager and the Health Monitor).
// kind classifies the failure per providers.ErrorKind; kind is ignored
// (treated as success) when err is nil.
func (m *Monitor) ReportOutcome(name string, responseTime time.Duration, err error, kind providers.ErrorKind) {
	e, ok := m.get(name)
	if !ok {
		return
	}
	m.applyOutcome(name, e, responseTime, err, kind)
}

// applyOutcome implements the state-update rules of spec.md §4.2 steps 3-5,
// shared by the probe loop and by ReportOutcome.
func (m *Monitor) applyOutcome(name string, e *entry, responseTime time.Duration, err error, kind providers.ErrorKind) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.record.LastProbeTime = time.Now()
	e.record.ResponseTime = responseTime

	success := err == nil
	if success {
		e.record.ConsecutiveFailures = 0
		e.breaker.RecordSuccess()
	} else {
		e.record.ConsecutiveFailures++
		e.record.TotalErrors++
		e.record.LastError = err.Error()

		switch kind {
		case providers.ErrorKindAuthFailed:
			// Single failure trips the circuit immediately; no amount of
			// retrying recovers from a rejected credential.
			e.breaker.ForceOpen()
		case providers.ErrorKindRateLimited, providers.ErrorKindCancelled:
			// Deferred, but must not count toward the trip per spec.md §7.
		default:
			e.breaker.RecordFailure()
		}
	}

	circuit := e.breaker.State()
	switch {
	case circuit == circuitbreaker.StateOpen:
		e.record.Status = StatusUnhealthy
	case e.record.ConsecutiveFailures == 0 && responseTime <= m.cfg.HealthyResponseTime:
		e.record.Status = StatusHealthy
	case e.record.ConsecutiveFailures < m.cfg.DegradedThreshold:
		e.record.Status = StatusDegraded
	default:
		e.record.Status = StatusUnhealthy
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(circuitStateGauge(circuit))
}

func circuitStateGauge(s circuitbreaker.State) float64 {
	switch s {
	case circuitbreaker.StateOpen:
		return 1
	case circuitbreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// Run starts the periodic probe loop. It blocks until ctx is cancelled;
// callers should invoke it in its own goroutine, mirroring the teacher's
// Gateway.StartDiscovery pattern.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeAll(ctx)
		}
	}
}

// probeAll fans a probe out to every registered provider concurrently; one
// slow provider must never delay the others.
func (m *Monitor) probeAll(ctx context.Context) {
	m.mu.RLock()
	names := make([]string, 0, len(m.entries))
	ents := make([]*entry, 0, len(m.entries))
	for name, e := range m.entries {
		names = append(names, name)
		ents = append(ents, e)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for i := range names {
		name, e := names[i], ents[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.probeOne(ctx, name, e)
		}()
	}
	wg.Wait()
}

func (m *Monitor) probeOne(ctx context.Context, name string, e *entry) {
	// Rule 1: circuit open and still within the timeout window skips the
	// probe entirely and leaves the provider marked unhealthy.
	if !e.breaker.Allow() {
		e.mu.Lock()
		e.record.Status = StatusUnhealthy
		e.mu.Unlock()
		return
	}
	// Rule 2: circuit open but past the timeout (Allow() above already
	// advanced it to half-open) — run the probe as normal.

	if e.prober == nil {
		return
	}

	start := time.Now()
	respTime, err := e.prober.Probe(ctx)
	if respTime == 0 {
		respTime = time.Since(start)
	}

	var kind providers.ErrorKind
	if err != nil {
		kind = providers.ClassifyErr(err)
		logging.FromContext(ctx).Warn("health probe failed", "provider", name, "error", err, "kind", kind)
	}
	m.applyOutcome(name, e, respTime, err, kind)
}
