package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/levelup-learning/levelup/internal/app/engagement"
	"github.com/levelup-learning/levelup/internal/domain"
	"github.com/levelup-learning/levelup/internal/notify"
)

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&sim.kind, "kind", string(domain.ActivityVideoWatch), "Activity kind")
	f.IntVar(&sim.count, "count", 1, "Number of activities to complete")
	f.BoolVar(&sim.firstTime, "first-time", false, "Mark the activity first-time for its subject")
	f.IntVar(&sim.score, "score", 0, "Quiz score percent (0-100)")
	f.IntVar(&sim.completion, "completion", 0, "Completion rate percent (0-100)")
	f.Int64Var(&sim.duration, "duration", 0, "Activity duration in seconds")
	f.IntVar(&sim.streak, "streak", 0, "Starting streak in days")
	f.Int64Var(&sim.xp, "xp", 0, "Starting total XP")
	f.StringVar(&sim.at, "at", "", "Time of the first activity, RFC 3339 (default now)")
	f.IntVar(&sim.daysApart, "days-apart", 0, "Calendar days between consecutive activities")
	f.DurationVar(&sim.spacing, "spacing", 300*time.Millisecond, "Pause between notifications")
	f.StringVar(&sim.tz, "tz", "", "IANA timezone for streak days and time bonuses (default from config)")
	rootCmd.AddCommand(simulateCmd)
}

var sim struct {
	kind       string
	count      int
	firstTime  bool
	score      int
	completion int
	duration   int64
	streak     int
	xp         int64
	at         string
	daysApart  int
	spacing    time.Duration
	tz         string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Score activities offline and play their notifications",
	Long: `Run activities through the engine without a server or database and
play the resulting notifications in the terminal.

Example:
  levelup simulate --kind quiz_complete --score 100 --streak 6 --count 3 --days-apart 1`,
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	kind := domain.ActivityKind(sim.kind)
	if !kind.Valid() {
		return fmt.Errorf("unknown activity kind %q (one of: %s)", sim.kind, kindsList())
	}
	if sim.count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	loc, err := simulateLocation()
	if err != nil {
		return err
	}
	start, err := parseAt(sim.at, loc)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	base := domain.ActivityEvent{
		Kind:                  kind,
		IsFirstTimeForSubject: sim.firstTime,
		ScorePercent:          intFlag(f.Changed("score"), sim.score),
		CompletionRatePercent: intFlag(f.Changed("completion"), sim.completion),
	}
	if f.Changed("duration") {
		d := sim.duration
		base.DurationSeconds = &d
	}

	state := domain.UserProgressionState{TotalXP: sim.xp}
	if sim.streak > 0 {
		// A streak only carries if the user was active the day before.
		state.CurrentStreakDays = sim.streak
		state.BestStreakDays = sim.streak
		state.LastActiveAt = start.AddDate(0, 0, -1)
	}

	out := cmd.OutOrStdout()
	eng := engagement.NewEngine(engagement.DefaultCatalog(), loc)
	q := notify.NewQueue(notify.NewTerminalSink(out), notify.Config{
		Spacing: sim.spacing,
		Logger:  quietLogger(cmd.ErrOrStderr()),
	})

	unlocked := make(map[string]bool)
	var earned int64
	startXP := state.TotalXP
	for i := 0; i < sim.count; i++ {
		ev := base
		ev.OccurredAt = start.AddDate(0, 0, i*sim.daysApart)

		r, err := eng.CompleteActivity(ev, state, unlocked)
		if err != nil {
			return err
		}
		for _, a := range r.NewAchievements {
			unlocked[a.ID] = true
		}
		earned += r.Award.TotalXP
		state = r.StateAfter
		q.EnqueueBatch(engagement.Notifications(kind, r))
	}

	if err := q.WaitIdle(contextOrBackground(cmd)); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, headingStyle.Render("Summary"))
	fmt.Fprintf(out, "Activities:    %d x %s\n", sim.count, kind)
	fmt.Fprintf(out, "XP earned:     %d (%d -> %d)\n", earned, startXP, state.TotalXP)
	fmt.Fprintf(out, "Streak:        %d days (best %d)\n", state.CurrentStreakDays, state.BestStreakDays)
	fmt.Fprintf(out, "Achievements:  %d unlocked\n", len(unlocked))
	printLevel(out, state.TotalXP)
	return nil
}

func simulateLocation() (*time.Location, error) {
	if sim.tz != "" {
		loc, err := time.LoadLocation(sim.tz)
		if err != nil {
			return nil, fmt.Errorf("invalid --tz %q: %w", sim.tz, err)
		}
		return loc, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Location()
}
