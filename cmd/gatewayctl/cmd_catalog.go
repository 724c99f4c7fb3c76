package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List known models and pricing from the model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, _, err := buildGateway()
		if err != nil {
			return err
		}

		catalog := gw.Catalog()
		keys := make([]string, 0, len(catalog))
		for k := range catalog {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "MODEL\tCONTEXT\tIN $/1M\tOUT $/1M\tMODE")
		for _, k := range keys {
			m := catalog[k]
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
				k, m.ContextWindow, perMillion(m.Pricing.InputPerMTokens), perMillion(m.Pricing.OutputPerMTokens), m.Mode)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}

func perMillion(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}
