package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newScenariosCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the configured scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSENSORS\tDIMENSION\tP_TX_MAX")
			for _, id := range a.doc.ScenarioIDs() {
				s, err := a.doc.Scenario(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%g\n", s.ID, len(s.Sensors), s.Dimension(), s.MaxTxPowerDBm)
			}
			return tw.Flush()
		},
	}
}
