package main

import (
	"fmt"
	"text/tabwriter"

	"fssim/internal/simulation"

	"github.com/spf13/cobra"
)

// actionsCmd lists the operation catalog
var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the operation catalog with configured weights",
	RunE:  listActions,
}

func listActions(cmd *cobra.Command, args []string) error {
	table, err := simulation.TableFromNames(cfg.Weights)
	if err != nil {
		return err
	}
	var total float64
	for _, w := range table {
		total += w
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTION\tPERMISSION\tWEIGHT\tSHARE")
	for _, a := range simulation.Actions() {
		perm := "-"
		if p, ok := simulation.PermissionOf(a); ok {
			perm = p.String()
		}
		share := 0.0
		if total > 0 {
			share = table[a] / total * 100
		}
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%.1f%%\n", a, perm, table[a], share)
	}
	return tw.Flush()
}
