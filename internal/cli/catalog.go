package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/levelup-learning/levelup/internal/app/engagement"
)

func init() {
	catalogCmd.Flags().StringVar(&catalogFile, "file", "", "Load a catalog TOML file instead of the built-in one")
	catalogCmd.Flags().BoolVar(&catalogJSON, "json", false, "Print the catalog as JSON")
	rootCmd.AddCommand(catalogCmd)
}

var (
	catalogFile string
	catalogJSON bool
)

var catalogCmd = &cobra.Command{
	Use:     "catalog",
	Aliases: []string{"achievements"},
	Short:   "List the achievement catalog",
	RunE:    runCatalog,
}

func runCatalog(cmd *cobra.Command, args []string) error {
	catalog := engagement.DefaultCatalog()
	if catalogFile != "" {
		var err error
		if catalog, err = engagement.LoadCatalog(catalogFile); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if catalogJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(catalog)
	}

	fmt.Fprintln(out, headingStyle.Render(fmt.Sprintf("Achievements (catalog %s)", catalog.Version)))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tTHRESHOLD\tTITLE\tREWARD")
	for _, a := range catalog.Achievements {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d XP\n", a.ID, a.Category, a.ThresholdValue, a.Title, a.XPReward)
	}
	return w.Flush()
}
