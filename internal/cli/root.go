// Package cli handles the command-line interface logic
// using the Cobra library.
package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "subjectmap",
		Short: "subjectmap - per-site delivery of research subject records",
		Long: `subjectmap fetches subject records from a data capture system, cleans
and groups them by site, writes one XML artifact per site and delivers
each artifact to the destination listed for that site in the site catalog.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(NewRunCmd(), NewCatalogCmd())

	return rootCmd
}
