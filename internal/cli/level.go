package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/levelup-learning/levelup/internal/app/engagement"
)

func init() {
	levelCmd.Flags().IntVar(&levelTable, "table", 0, "Print the first N levels of the curve instead")
	rootCmd.AddCommand(levelCmd)
}

var levelTable int

var levelCmd = &cobra.Command{
	Use:   "level [total-xp]",
	Short: "Show where a total XP amount sits on the level curve",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLevel,
}

func runLevel(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if levelTable > 0 {
		n := levelTable
		if n > engagement.MaxLevel {
			n = engagement.MaxLevel
		}
		fmt.Fprintln(out, headingStyle.Render("Level curve"))
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LEVEL\tXP TO NEXT\tCUMULATIVE")
		for lvl := 1; lvl <= n; lvl++ {
			fmt.Fprintf(w, "%d\t%d\t%d\n", lvl, engagement.XPForLevel(lvl), engagement.CumulativeXPForLevel(lvl))
		}
		return w.Flush()
	}

	if len(args) == 0 {
		return fmt.Errorf("total XP required (or use --table N)")
	}
	total, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || total < 0 {
		return fmt.Errorf("invalid total XP %q", args[0])
	}
	printLevel(out, total)
	return nil
}
