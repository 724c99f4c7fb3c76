package main

import (
	"context"
	"fmt"
	"strings"

	aigateway "github.com/ferro-labs/model-gateway"
	"github.com/spf13/cobra"
)

var (
	dispatchSelector string
	dispatchTaskType  string
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <prompt>",
	Short: "Dispatch a prompt from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, registered, err := buildGateway()
		if err != nil {
			return err
		}
		if len(registered) == 0 {
			return fmt.Errorf("no providers registered; set at least one provider API key environment variable")
		}

		resp := gw.Dispatch(context.Background(), aigateway.GenerationRequest{
			Prompt:   strings.Join(args, " "),
			TaskType: dispatchTaskType,
		}, dispatchSelector)

		if resp.Error != "" {
			return fmt.Errorf("dispatch failed: %s", resp.Error)
		}

		fmt.Println(resp.Content)
		fmt.Fprintf(cmd.OutOrStdout(), "\n--- provider=%s model=%s tokens=%d cost_usd=%.6f fallback_depth=%d ---\n",
			resp.ProviderName, resp.ModelID, resp.TotalTokens, resp.Cost, resp.FallbackDepth)
		return nil
	},
}

func init() {
	dispatchCmd.Flags().StringVar(&dispatchSelector, "selector", "balanced", "alias or provider:model selector to route against")
	dispatchCmd.Flags().StringVar(&dispatchTaskType, "task-type", "", "task type hint for task-based routing")
	rootCmd.AddCommand(dispatchCmd)
}
