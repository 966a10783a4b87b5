// Package cli implements the LevelUp command-line interface using Cobra.
// Each subcommand maps to one capability: serve the API, inspect the level
// curve and achievement catalog, simulate activities, play the demo.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "levelup",
	Short: "LevelUp: XP, levels and achievements for learning apps",
	Long: `LevelUp scores learning activities into XP, levels, streaks and
achievements, and plays the resulting notifications one at a time.

Run 'levelup serve' for the HTTP API or 'levelup simulate' to try the
engine from the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $LEVELUP_HOME/config.toml)")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
