package main

import (
	"fmt"

	aigateway "github.com/ferro-labs/model-gateway"
)

// buildGateway loads cfgPath if set (defaulting to an empty Config
// otherwise), validates it, constructs a Gateway, and registers every
// provider whose API-key environment variable is present.
func buildGateway() (*aigateway.Gateway, []string, error) {
	cfg := aigateway.Config{}
	if cfgPath != "" {
		loaded, err := aigateway.LoadConfig(cfgPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = *loaded
		if err := aigateway.ValidateConfig(cfg); err != nil {
			return nil, nil, fmt.Errorf("validation error: %w", err)
		}
	}

	gw, err := aigateway.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating gateway: %w", err)
	}

	registered := autoRegisterProviders(gw)
	return gw, registered, nil
}
