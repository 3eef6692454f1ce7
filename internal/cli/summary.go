package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/dissent/internal/app"
)

func newSummaryCmd(e *env) *cobra.Command {
	var (
		filters filterFlags
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the KPI summary for a filter selection",
		Long: `Summary loads the dataset, applies the filters and prints the same KPIs the
dashboard tiles show.

Example:
  cccctl summary --state TX --state CA --start 2025-01-20 --outcome arrests
  cccctl summary --org indivisible --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := filters.params()
			if err != nil {
				return err
			}

			dash, err := app.NewDashboard(e.cfg, nil, nil, e.log)
			if err != nil {
				return err
			}
			if _, err := dash.Service.Reload(cmd.Context()); err != nil {
				return err
			}
			result, err := dash.Service.Dashboard(cmd.Context(), params)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					KPIs    interface{} `json:"kpis"`
					Display interface{} `json:"display"`
				}{result.KPIs, result.Display})
			}

			d := result.Display
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			rows := [][2]string{
				{"Events", d.TotalEvents},
				{"Mean participants", d.MeanParticipants},
				{"Total participants", d.TotalParticipants},
				{"Largest event", d.LargestEvent},
				{"Largest day", d.LargestDay},
				{"Missing size", d.PercentMissingSize},
				{"No injuries", d.PercentNoInjuries},
				{"No arrests", d.PercentNoArrests},
				{"No property damage", d.PercentNoPropertyDamage},
				{"Share of population", d.PercentOfPopulation},
			}
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\n", r[0], r[1])
			}
			return w.Flush()
		},
	}

	filters.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw and formatted KPIs as JSON")
	return cmd
}
