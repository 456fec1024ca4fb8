package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long: `Print every configuration flag with its resolved value and the layer
that supplied it (default, file or env). The same provenance map is
frozen into each run's manifest at creation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := map[string]any{"config": prov}
		return emit(payload, func() {
			keys := make([]string, 0, len(prov))
			for k := range prov {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				v := prov[k]
				fmt.Printf("%-24s %-8s (%s)\n", k, v.Value, v.Source)
			}
		})
	},
}
