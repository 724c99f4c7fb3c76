package aigateway

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ferro-labs/model-gateway/internal/alias"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads and parses a config file from the given path.
// Supported formats: JSON (.json), YAML (.yaml, .yml).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	return &cfg, nil
}

// ValidateConfig validates a Config for correctness.
func ValidateConfig(cfg Config) error {
	if len(cfg.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}

	enabledCount := 0
	for name, p := range cfg.Providers {
		if !p.Enabled {
			continue
		}
		enabledCount++
		if p.APIKey == nil && os.Getenv(apiKeyEnvVar(name)) == "" {
			// Not fatal: some providers (e.g. Ollama) need no key. Adapter
			// construction is responsible for rejecting a genuinely missing
			// credential at the point it is required.
			continue
		}
	}
	if enabledCount == 0 {
		return fmt.Errorf("at least one provider must be enabled")
	}

	for name, entries := range cfg.ModelAliases {
		for _, e := range entries {
			if e.Provider == "" || e.ModelID == "" {
				return fmt.Errorf("model_aliases[%q]: provider and model_id are required", name)
			}
			if _, ok := cfg.Providers[e.Provider]; !ok {
				return fmt.Errorf("model_aliases[%q]: references unknown provider %q", name, e.Provider)
			}
		}
	}

	for taskType, aliasName := range cfg.TaskRouting {
		if _, ok := cfg.ModelAliases[aliasName]; !ok {
			isRequired := false
			for _, req := range alias.RequiredAliases {
				if req == aliasName {
					isRequired = true
					break
				}
			}
			if !isRequired {
				return fmt.Errorf("task_routing[%q]: references undefined alias %q", taskType, aliasName)
			}
		}
	}

	return nil
}

// aliasConfig converts the YAML/JSON model_aliases map into an
// internal/alias.Config, preserving config order as the registration-order
// tie-break.
func aliasConfig(cfg Config) alias.Config {
	out := make(alias.Config, len(cfg.ModelAliases))
	for name, entries := range cfg.ModelAliases {
		converted := make([]alias.Entry, len(entries))
		for i, e := range entries {
			converted[i] = alias.Entry{Provider: e.Provider, ModelID: e.ModelID, Priority: e.Priority}
		}
		out[name] = converted
	}
	return out
}
