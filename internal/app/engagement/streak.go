// Package engagement implements the LevelUp progression engine:
// level curve, bonus stacking, achievement thresholds, streaks and the
// translation of results into ordered notifications.
package engagement

import (
	"time"

	"github.com/levelup-learning/levelup/internal/domain"
)

// AdvanceStreak applies one day of learning activity to a snapshot and
// returns the updated streak fields. A "day" is a calendar date in loc
// (the timestamp's own zone when loc is nil).
//
//   - Unknown last activity or same day: streak kept, minimum 1.
//   - Next calendar day: streak extended.
//   - Gap of more than one day: streak resets to 1.
//   - Timestamp earlier than the last activity: streak unchanged.
//
// Streaks break silently; nothing is emitted for a reset.
func AdvanceStreak(s domain.UserProgressionState, at time.Time, loc *time.Location) domain.UserProgressionState {
	if at.IsZero() {
		return s
	}

	switch {
	case s.LastActiveAt.IsZero():
		s.CurrentStreakDays = max(s.CurrentStreakDays, 1)
	default:
		gap := daysBetween(s.LastActiveAt, at, loc)
		switch {
		case gap <= 0:
			// Same day, or an out-of-order replay of an earlier day.
			s.CurrentStreakDays = max(s.CurrentStreakDays, 1)
		case gap == 1:
			s.CurrentStreakDays++
		default:
			s.CurrentStreakDays = 1
		}
	}

	if s.CurrentStreakDays > s.BestStreakDays {
		s.BestStreakDays = s.CurrentStreakDays
	}
	if at.After(s.LastActiveAt) {
		s.LastActiveAt = at
	}
	return s
}

// StreakBroken reports whether a streak recorded at last would already be
// broken at now, i.e. more than one calendar day has passed.
func StreakBroken(last, now time.Time, loc *time.Location) bool {
	if last.IsZero() {
		return false
	}
	return daysBetween(last, now, loc) > 1
}

// daysBetween counts calendar days from a to b in loc.
func daysBetween(a, b time.Time, loc *time.Location) int {
	if loc != nil {
		a, b = a.In(loc), b.In(loc)
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
