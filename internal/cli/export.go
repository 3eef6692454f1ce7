package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/dissent/internal/app"
	"github.com/stwalsh4118/dissent/internal/services"
)

func newExportCmd(e *env) *cobra.Command {
	var (
		filters filterFlags
		out     string
		full    bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export filtered rows as CSV",
		Long: `Export writes the rows matching the filters, or the whole dataset with --full,
as CSV with a header row. Output goes to stdout unless --out is given.

Example:
  cccctl export --state NY --size has --out ny.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := filters.params()
			if err != nil {
				return err
			}
			scope := services.ExportFiltered
			if full {
				scope = services.ExportFull
			}

			dash, err := app.NewDashboard(e.cfg, nil, nil, e.log)
			if err != nil {
				return err
			}
			if _, err := dash.Service.Reload(cmd.Context()); err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			rows, err := dash.Service.Export(cmd.Context(), w, params, scope)
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d rows to %s\n", rows, out)
			}
			return nil
		},
	}

	filters.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&full, "full", false, "export every row, ignoring filters")
	return cmd
}
