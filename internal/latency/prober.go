// Package latency implements the optional Latency Prober: an out-of-band
// periodic sampler that measures each provider's base-URL reachability and
// latency independent of real traffic, feeding samples into the Weight
// Manager so routing decisions reflect current network conditions even
// during a lull in dispatch volume.
//
// Grounded on the teacher's Gateway.StartDiscovery ticker-goroutine pattern
// (same start/stop-on-cancellation shape), reusing internal/health.Monitor's
// concurrent fan-out-per-provider structure for the per-tick sampling round.
package latency

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ferro-labs/model-gateway/internal/logging"
	"github.com/ferro-labs/model-gateway/internal/weight"
	"github.com/ferro-labs/model-gateway/providers"
)

// Config tunes the prober's sampling interval and HTTP timeout.
type Config struct {
	Interval time.Duration // default 300s, per spec.md §5
	Timeout  time.Duration // default 5s per-sample budget
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 300 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

// Target is one provider to sample, paired with the base URL to probe.
type Target struct {
	Provider string
	BaseURL  string
}

// ProviderLister enumerates the providers the Sampler should probe each
// tick; callers typically supply a closure over the gateway's registered
// providers filtered to those implementing providers.ProxiableProvider.
type ProviderLister func() []Target

// Sampler periodically samples provider reachability and reports the
// measured latency to the Weight Manager as a zero-cost, zero-token outcome,
// distinct from the Dispatcher's real-traffic reporting.
type Sampler struct {
	cfg     Config
	client  *http.Client
	weights *weight.Manager
	list    ProviderLister
}

// New creates a Sampler, applying spec defaults for zero Config fields.
func New(cfg Config, weights *weight.Manager, list ProviderLister) *Sampler {
	cfg.applyDefaults()
	return &Sampler{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		weights: weights,
		list:    list,
	}
}

// Run starts the periodic sampling loop. It blocks until ctx is cancelled;
// callers should invoke it in its own goroutine, mirroring the teacher's
// Gateway.StartDiscovery pattern.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleAll(ctx)
		}
	}
}

// sampleAll fans a probe out to every target concurrently; one slow or
// unreachable provider must never delay sampling the others.
func (s *Sampler) sampleAll(ctx context.Context) {
	if s.list == nil {
		return
	}
	targets := s.list()

	var wg sync.WaitGroup
	for _, target := range targets {
		target := target
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.sampleOne(ctx, target)
		}()
	}
	wg.Wait()
}

// sampleOne issues a minimal HTTP HEAD (falling back to GET when the HEAD
// request gets no response at all) against target.BaseURL and reports the measured latency to the
// Weight Manager. Availability is reported as 1.0 for any response that
// completes the round trip, including 4xx/5xx status codes — the sample
// tests reachability and latency, not API-level correctness.
func (s *Sampler) sampleOne(ctx context.Context, target Target) {
	log := logging.FromContext(ctx)

	start := time.Now()
	reachable := s.probe(ctx, http.MethodHead, target.BaseURL)
	if !reachable {
		reachable = s.probe(ctx, http.MethodGet, target.BaseURL)
	}
	elapsed := time.Since(start)

	availability := 0.0
	if reachable {
		availability = 1.0
	} else {
		log.Warn("latency probe unreachable", "provider", target.Provider, "base_url", target.BaseURL)
	}

	// cost=0, success=reachable: a probe is not a billed dispatch outcome,
	// but its response time still informs ema_response_time.
	s.weights.ReportOutcome(target.Provider, elapsed, 0, reachable, availability)
}

func (s *Sampler) probe(ctx context.Context, method, url string) bool {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return true
}

// ProxiableTargets adapts a slice of providers.Provider into the Target list
// a ProviderLister returns, keeping only adapters that expose a base URL via
// providers.ProxiableProvider.
func ProxiableTargets(all map[string]providers.Provider) []Target {
	targets := make([]Target, 0, len(all))
	for name, p := range all {
		if pp, ok := p.(providers.ProxiableProvider); ok {
			targets = append(targets, Target{Provider: name, BaseURL: pp.BaseURL()})
		}
	}
	return targets
}
