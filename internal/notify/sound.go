package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/levelup-learning/levelup/internal/domain"
)

// NoteGap is the delay between consecutive notes of a cue.
const NoteGap = 100 * time.Millisecond

// Note is one tone of a sound cue.
type Note struct {
	FrequencyHz int           `json:"frequency_hz"`
	Offset      time.Duration `json:"offset"`
}

// SoundPlayer plays a cue. Failures are non-fatal to delivery.
type SoundPlayer interface {
	Play(ctx context.Context, notes []Note) error
}

// Ascending note frequencies per kind (C5=523, E5=659, G5=784, ...).
var cues = map[domain.NotificationKind][]int{
	domain.NotifyXPGained:       {523, 659},
	domain.NotifyLevelUp:        {523, 659, 784, 1047},
	domain.NotifyAchievement:    {392, 523, 659, 784},
	domain.NotifyStreakBonus:    {659, 784, 988},
	domain.NotifyMilestone:      {523, 698, 880},
	domain.NotifyBaseXP:         {440, 554},
	domain.NotifyBonusXP:        {587, 698},
	domain.NotifyFirstTimeBonus: {659, 784, 988},
	domain.NotifyPerfectScore:   {784, 988, 1175},
}

var fallbackCue = []int{523, 659}

// SoundFor returns the cue for a notification kind, NoteGap apart.
func SoundFor(kind domain.NotificationKind) []Note {
	freqs, ok := cues[kind]
	if !ok {
		freqs = fallbackCue
	}
	notes := make([]Note, len(freqs))
	for i, f := range freqs {
		notes[i] = Note{FrequencyHz: f, Offset: time.Duration(i) * NoteGap}
	}
	return notes
}

// BellPlayer approximates a cue with terminal bells, one per note.
type BellPlayer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewBellPlayer writes bells to w.
func NewBellPlayer(w io.Writer) *BellPlayer {
	return &BellPlayer{w: w}
}

// Play rings once per note, honouring note offsets.
func (b *BellPlayer) Play(ctx context.Context, notes []Note) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	for _, n := range notes {
		if wait := n.Offset - time.Since(start); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if _, err := io.WriteString(b.w, "\a"); err != nil {
			return fmt.Errorf("bell: %w", err)
		}
	}
	return nil
}
