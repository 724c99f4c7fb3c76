// Command gatewayctl is the operator CLI for the model gateway: validate a
// configuration file, dispatch a single request from the command line, and
// inspect the catalog, health and weight state of registered providers.
// It replaces the teacher's raw-flag-parsed ferrogw-cli with a cobra-based
// command tree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "gatewayctl",
	Short: "Operate and inspect the model gateway",
	Long: `gatewayctl is the operator CLI for the model gateway.

Usage:
  gatewayctl validate <config-file>      Validate a gateway configuration file
  gatewayctl dispatch <prompt>           Dispatch a prompt from the command line
  gatewayctl catalog                     List known models and pricing
  gatewayctl health                      Show per-provider health state
  gatewayctl weight                      Show per-provider adaptive weight state
  gatewayctl version                     Print version info`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a gateway configuration file (JSON/YAML)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
