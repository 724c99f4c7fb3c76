package main

import (
	"fmt"
	"sort"
	"strings"

	aigateway "github.com/ferro-labs/model-gateway"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config-file>",
	Short: "Validate a gateway configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		cfg, err := aigateway.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := aigateway.ValidateConfig(*cfg); err != nil {
			return fmt.Errorf("validation error: %w", err)
		}

		fmt.Println("✓ Config is valid")
		fmt.Printf("  Timeout:      %d\n", cfg.Gateway.TimeoutSeconds)
		fmt.Printf("  Max retries:  %d\n", cfg.Gateway.MaxRetries)

		names := make([]string, 0, len(cfg.Providers))
		for name := range cfg.Providers {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Printf("  Providers:    %s\n", strings.Join(names, ", "))

		aliases := make([]string, 0, len(cfg.ModelAliases))
		for name := range cfg.ModelAliases {
			aliases = append(aliases, name)
		}
		sort.Strings(aliases)
		fmt.Printf("  Aliases:      %s\n", strings.Join(aliases, ", "))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
