// Package cli implements cccctl, the offline companion to the dashboard API: building the
// dataset snapshot, printing KPIs, exporting filtered rows and reviewing submissions.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stwalsh4118/dissent/internal/config"
	"github.com/stwalsh4118/dissent/internal/logger"
)

// Version is the cccctl version, overridable at link time.
var Version = "0.1.0"

// globalFlags binds the persistent flags to configuration keys. Flags that are set win
// over environment variables, which win over defaults.
var globalFlags = []struct {
	name, key, usage string
}{
	{"dataset", "DATASET_PATH", "source CSV path"},
	{"encoding", "DATASET_ENCODING", "source CSV encoding (latin1 or utf-8)"},
	{"snapshot", "SNAPSHOT_PATH", "sqlite snapshot path (empty disables)"},
	{"submissions", "SUBMISSIONS_PATH", "manual submissions CSV path"},
	{"populations", "STATE_POPULATIONS_FILE", "state population YAML override"},
	{"env", "ENV", "environment (development, production, test)"},
	{"log-level", "LOG_LEVEL", "log level override"},
}

// env carries what every subcommand needs. It is filled in by the root PersistentPreRunE.
type env struct {
	v   *viper.Viper
	cfg *config.Config
	log *logger.Logger
}

// NewRootCmd builds the cccctl command tree. Each call returns an independent tree.
func NewRootCmd() *cobra.Command {
	e := &env{v: viper.New()}

	root := &cobra.Command{
		Use:   "cccctl",
		Short: "Crowd Counting Consortium dashboard tooling",
		Long: `cccctl works directly on the protest event dataset used by the dashboard API.

It builds the sqlite snapshot the server loads from, prints the KPI summary for a
filter selection, exports filtered rows as CSV, and lists manual submissions.
Configuration uses the same environment variables as the server; flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFrom(e.v)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.log = logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Server.Env, cfg.Server.LogLevel)
			return nil
		},
	}

	for _, f := range globalFlags {
		root.PersistentFlags().String(f.name, "", f.usage)
		if err := e.v.BindPFlag(f.key, root.PersistentFlags().Lookup(f.name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", f.name, err))
		}
	}

	root.AddCommand(
		newSnapshotCmd(e),
		newSummaryCmd(e),
		newExportCmd(e),
		newSubmissionsCmd(e),
		newVersionCmd(),
	)
	return root
}

// Execute runs cccctl with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// The root pre-run loads configuration, which version does not need.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cccctl %s\n", Version)
		},
	}
}
