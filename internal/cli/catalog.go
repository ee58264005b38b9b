package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/BartekS5/subjectmap/internal/config"
	"github.com/BartekS5/subjectmap/internal/etl"
)

func NewCatalogCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List resolvable and excluded site catalog entries",
		RunE: func(c *cobra.Command, args []string) error {
			setup, err := config.Load(configPath)
			if err != nil {
				return err
			}
			catalog, err := etl.LoadCatalog(setup.SiteCatalog)
			if err != nil {
				return err
			}
			printCatalog(c.OutOrStdout(), catalog)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultSetupPath, "Path to setup file")
	return cmd
}

func printCatalog(w io.Writer, catalog *etl.Catalog) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SITE\tADDRESS\tREMOTE PATH\tCONTACT")
	for _, e := range catalog.Entries() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.SiteID, e.Address, e.RemotePath, e.FailureEmail)
	}
	tw.Flush()

	issues := catalog.Issues()
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(w, "\nExcluded (%d):\n", len(issues))
	for _, issue := range issues {
		fmt.Fprintf(w, "  %s: %s\n", issue.SiteID, issue.Reason)
	}
}
