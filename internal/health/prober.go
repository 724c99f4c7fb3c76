package health

import (
	"context"
	"time"

	"github.com/ferro-labs/model-gateway/providers"
)

// AdapterProber wraps a providers.Provider as a Prober. If the provider
// implements providers.HealthChecker its native check is used; otherwise a
// minimal single-token completion request against the first supported model
// stands in for a probe.
type AdapterProber struct {
	Provider providers.Provider
}

// Probe performs the cheapest available liveness check for the wrapped
// provider and returns its measured latency.
func (a AdapterProber) Probe(ctx context.Context) (time.Duration, error) {
	start := time.Now()

	if hc, ok := a.Provider.(providers.HealthChecker); ok {
		err := hc.CheckHealth(ctx)
		return time.Since(start), err
	}

	models := a.Provider.SupportedModels()
	if len(models) == 0 {
		return time.Since(start), nil
	}

	maxTokens := 1
	req := providers.Request{
		Model:     models[0],
		Messages:  []providers.Message{{Role: providers.RoleUser, Content: "ping"}},
		MaxTokens: &maxTokens,
	}
	_, err := a.Provider.Complete(ctx, req)
	return time.Since(start), err
}
