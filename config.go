package aigateway

import "time"

// Config holds the gateway configuration, matching the top-level keys of
// spec.md §6: gateway, providers, model_aliases, task_routing.
type Config struct {
	Gateway      GatewayConfig             `json:"gateway" yaml:"gateway"`
	Providers    map[string]ProviderConfig `json:"providers" yaml:"providers"`
	ModelAliases map[string][]AliasEntry   `json:"model_aliases" yaml:"model_aliases"`
	TaskRouting  map[string]string         `json:"task_routing" yaml:"task_routing"`
}

// GatewayConfig carries the `gateway` top-level key.
type GatewayConfig struct {
	FallbackEnabled     *bool `json:"fallback_enabled,omitempty" yaml:"fallback_enabled,omitempty"`
	TimeoutSeconds      int   `json:"timeout" yaml:"timeout"`
	MaxRetries          int   `json:"max_retries" yaml:"max_retries"`
	CostOptimization    bool  `json:"cost_optimization" yaml:"cost_optimization"`
	PerformanceTracking bool  `json:"performance_tracking" yaml:"performance_tracking"`
}

// fallbackEnabled returns the configured value, defaulting to true when unset.
func (g GatewayConfig) fallbackEnabled() bool {
	if g.FallbackEnabled == nil {
		return true
	}
	return *g.FallbackEnabled
}

func (g GatewayConfig) timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

func (g GatewayConfig) maxRetries() int {
	if g.MaxRetries <= 0 {
		return 3
	}
	return g.MaxRetries
}

// ProviderConfig is one entry of the `providers` mapping.
type ProviderConfig struct {
	Enabled     bool                         `json:"enabled" yaml:"enabled"`
	Priority    int                          `json:"priority" yaml:"priority"`
	APIKey      *string                      `json:"api_key" yaml:"api_key"`
	BaseURL     string                       `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Temperature *float64                     `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Models      map[string]ModelConfigSubset `json:"models,omitempty" yaml:"models,omitempty"`
	MaxPoolSize int                          `json:"max_pool_size,omitempty" yaml:"max_pool_size,omitempty"`
	BaseWeight  float64                      `json:"base_weight,omitempty" yaml:"base_weight,omitempty"`
}

// ModelConfigSubset is the configurable slice of models.Model an operator may
// override per provider (the rest of the catalog entry is sourced remotely).
type ModelConfigSubset struct {
	DisplayName     string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	ContextWindow   int    `json:"context_window,omitempty" yaml:"context_window,omitempty"`
	MaxOutputTokens int    `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty"`
}

// AliasEntry is one candidate within a `model_aliases` entry.
type AliasEntry struct {
	Provider string `json:"provider" yaml:"provider"`
	ModelID  string `json:"model_id" yaml:"model_id"`
	Priority int    `json:"priority" yaml:"priority"`
}

// apiKeyEnvVar returns the environment variable name a provider's API key
// falls back to when config omits api_key, per spec.md §6:
// "<PROVIDER>_API_KEY" (uppercase).
func apiKeyEnvVar(providerName string) string {
	upper := make([]byte, 0, len(providerName)+8)
	for i := 0; i < len(providerName); i++ {
		c := providerName[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = append(upper, c)
	}
	return string(upper) + "_API_KEY"
}
