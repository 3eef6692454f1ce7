package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/stwalsh4118/dissent/internal/repository"
	"github.com/stwalsh4118/dissent/internal/services"
)

func newSubmissionsCmd(e *env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "List recent manual submissions from the CSV sink",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo := repository.NewCSVSubmissionRepository(e.cfg.Submissions.Path)
			service := services.NewSubmissionService(repo, nil, nil, e.log)

			submissions, err := service.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SUBMITTED\tDATE\tPLACE\tSIZE\tTITLE")
			for _, s := range submissions {
				size := "-"
				if s.SizeEstimate != nil {
					size = humanize.Comma(int64(*s.SizeEstimate))
				}
				place := s.Locality
				if s.State != "" {
					place += ", " + s.State
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					humanize.Time(s.SubmittedAt), s.Date, place, size, s.Title)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of submissions to show (0 for all)")
	return cmd
}
