package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/levelup-learning/levelup/internal/app/engagement"
	"github.com/levelup-learning/levelup/internal/notify"
)

func init() {
	demoCmd.Flags().DurationVar(&demoSpacing, "spacing", notify.DefaultSpacing, "Pause between notifications")
	demoCmd.Flags().BoolVar(&demoSound, "sound", false, "Ring the terminal bell for each notification")
	rootCmd.AddCommand(demoCmd)
}

var (
	demoSpacing time.Duration
	demoSound   bool
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Play one notification of every kind",
	RunE:  runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg := notify.Config{Spacing: demoSpacing, Logger: quietLogger(cmd.ErrOrStderr())}
	if demoSound {
		cfg.Sound = notify.NewBellPlayer(out)
	}
	q := notify.NewQueue(notify.NewTerminalSink(out), cfg)

	events := engagement.DemoSequence()
	q.EnqueueBatch(events)
	if err := q.WaitIdle(contextOrBackground(cmd)); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nPlayed %d notifications.\n", len(events))
	return nil
}

// contextOrBackground guards commands invoked without ExecuteContext.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
