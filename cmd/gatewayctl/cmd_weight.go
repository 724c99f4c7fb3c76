package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var weightCmd = &cobra.Command{
	Use:   "weight",
	Short: "Show per-provider adaptive routing weight state (EMAs, scores)",
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, registered, err := buildGateway()
		if err != nil {
			return err
		}
		sort.Strings(registered)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tCURRENT WEIGHT\tEMA RESP TIME\tEMA SUCCESS RATE\tEMA AVAILABILITY\tPERFORMANCE SCORE")
		for _, name := range registered {
			m, ok := gw.WeightSnapshot(name)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s\t%.3f\t%s\t%.3f\t%.3f\t%.3f\n",
				name, m.CurrentWeight, m.EMAResponseTime, m.EMASuccessRate, m.EMAAvailability, m.PerformanceScore)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(weightCmd)
}
