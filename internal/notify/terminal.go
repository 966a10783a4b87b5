package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/levelup-learning/levelup/internal/domain"
)

// Tailwind gradient start colours mapped to terminal colours.
var palette = map[string]string{
	"amber":   "#F59E0B",
	"blue":    "#3B82F6",
	"cyan":    "#06B6D4",
	"emerald": "#10B981",
	"green":   "#22C55E",
	"pink":    "#EC4899",
	"purple":  "#A855F7",
	"red":     "#EF4444",
	"violet":  "#8B5CF6",
	"yellow":  "#EAB308",
}

const defaultColor = "#6366F1"

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Width(52)

	titleStyle = lipgloss.NewStyle().Bold(true)

	factStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF"))
)

// TerminalSink draws each notification as a bordered card.
type TerminalSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminalSink writes cards to w.
func NewTerminalSink(w io.Writer) *TerminalSink {
	return &TerminalSink{w: w}
}

// Name implements named.
func (s *TerminalSink) Name() string { return "terminal" }

// Render draws ev.
func (s *TerminalSink) Render(_ context.Context, ev domain.NotificationEvent) error {
	card := RenderCard(ev)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, card)
	return err
}

// RenderCard formats a notification for a terminal.
func RenderCard(ev domain.NotificationEvent) string {
	color := lipgloss.Color(ColorFor(ev.RenderHint.ColorClass))

	var b strings.Builder
	b.WriteString(titleStyle.Foreground(color).Render(strings.TrimSpace(ev.RenderHint.Emoji + " " + ev.Title)))
	if ev.Description != "" {
		b.WriteString("\n")
		b.WriteString(ev.Description)
	}

	var facts []string
	if ev.XPAmount != nil {
		facts = append(facts, fmt.Sprintf("+%d XP", *ev.XPAmount))
	}
	if ev.Level != nil {
		facts = append(facts, fmt.Sprintf("Level %d", *ev.Level))
	}
	if ev.StreakDays != nil {
		facts = append(facts, fmt.Sprintf("%d Day Streak!", *ev.StreakDays))
	}
	if len(facts) > 0 {
		b.WriteString("\n")
		b.WriteString(factStyle.Render(strings.Join(facts, "  ·  ")))
	}

	return cardStyle.BorderForeground(color).Render(b.String())
}

// ColorFor picks a hex colour from a "bg-gradient-to-r from-X-500 ..."
// class list.
func ColorFor(class string) string {
	for _, f := range strings.Fields(class) {
		rest, ok := strings.CutPrefix(f, "from-")
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(rest, "-")
		if hex, ok := palette[name]; ok {
			return hex
		}
	}
	return defaultColor
}
