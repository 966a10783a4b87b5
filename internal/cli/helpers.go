package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/levelup-learning/levelup/internal/app/engagement"
	"github.com/levelup-learning/levelup/internal/daemon"
	"github.com/levelup-learning/levelup/internal/domain"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A855F7"))
	barFull      = lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E"))
	barEmpty     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4B5563"))
)

// loadConfig reads --config when given, else the default location.
func loadConfig() (daemon.Config, error) {
	if configPath != "" {
		return daemon.LoadConfigFile(configPath)
	}
	return daemon.LoadConfig()
}

// newLogger builds the configured logger.
func newLogger(cfg daemon.Config) (*logrus.Entry, error) {
	logger, err := daemon.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return logrus.NewEntry(logger), nil
}

// quietLogger discards everything below errors; offline commands use it so
// log lines do not interleave with terminal cards.
func quietLogger(w io.Writer) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(logger)
}

// progressBar draws fraction (0..1) as a width-cell bar.
func progressBar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	full := int(fraction*float64(width) + 0.5)
	bar := ""
	for i := 0; i < width; i++ {
		if i < full {
			bar += barFull.Render("█")
		} else {
			bar += barEmpty.Render("░")
		}
	}
	return bar
}

// printLevel writes a one-line level summary.
func printLevel(w io.Writer, total int64) {
	info := engagement.LevelForTotalXP(total)
	fmt.Fprintf(w, "Level %d  %s  %d/%d XP (%d to next)\n",
		info.Level, progressBar(info.ProgressFraction, 20),
		info.CurrentLevelXP, info.NextLevelXP, engagement.XPToNextLevel(total))
}

// parseAt parses an RFC 3339 instant, defaulting to now.
func parseAt(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Now().In(loc), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: %w", s, err)
	}
	return t.In(loc), nil
}

func intFlag(set bool, v int) *int {
	if !set {
		return nil
	}
	return &v
}

func kindsList() string {
	out := ""
	for i, k := range domain.ActivityKinds() {
		if i > 0 {
			out += ", "
		}
		out += string(k)
	}
	return out
}
