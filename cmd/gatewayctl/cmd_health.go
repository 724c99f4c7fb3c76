package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show per-provider health state (status, circuit breaker, error counts)",
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, registered, err := buildGateway()
		if err != nil {
			return err
		}
		sort.Strings(registered)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tSTATUS\tCIRCUIT\tCONSECUTIVE FAILURES\tTOTAL ERRORS\tLAST PROBE RESPONSE TIME")
		for _, name := range registered {
			rec, ok := gw.HealthSnapshot(name)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				name, rec.Status, rec.Circuit, rec.ConsecutiveFailures, rec.TotalErrors, rec.ResponseTime)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
