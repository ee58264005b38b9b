package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/BartekS5/subjectmap/internal/config"
)

type RunOptions struct {
	ConfigPath string
	Workers    int
	Timeout    time.Duration
	DryRun     bool
}

func NewRunCmd() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, transform, materialize and dispatch per-site artifacts",
		RunE: func(c *cobra.Command, args []string) error {
			return runPipeline(c.Context(), opts, c.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultSetupPath, "Path to setup file")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "Concurrent transfers (overrides dispatch.workers)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Per-transfer timeout (overrides dispatch.timeout)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Stop after matching artifacts to catalog entries")

	return cmd
}
