package engagement

import (
	"fmt"
	"strconv"
	"time"

	"github.com/levelup-learning/levelup/internal/domain"
)

// Base XP per activity kind.
var baseXP = map[domain.ActivityKind]int64{
	domain.ActivityVideoWatch:        50,
	domain.ActivityVideoLike:         15,
	domain.ActivityQuizComplete:      100,
	domain.ActivityChallengeComplete: 200,
	domain.ActivityCourseComplete:    500,
}

// Flat bonus amounts.
const (
	FirstTimeBonusXP      = 50
	PerfectScoreBonusXP   = 100
	CompletionBonusXP     = 30
	EarlyBirdBonusXP      = 20
	NightOwlBonusXP       = 15
	WeekendWarriorBonusXP = 25

	// CompletionThreshold is the minimum completion rate for the bonus.
	CompletionThreshold = 95
)

// Streak multiplier: +2% per streak day from day MinStreakDays, capped at
// 3.0x once the streak reaches StreakCapDays.
const (
	MinStreakDays = 3
	StreakCapDays = 100
	MaxMultiplier = 3.0
)

// BaseXPFor returns the fixed reward for an activity kind.
func BaseXPFor(kind domain.ActivityKind) (int64, error) {
	xp, ok := baseXP[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %w %q", domain.ErrInvalidActivity, domain.ErrUnknownActivityKind, kind)
	}
	return xp, nil
}

// BonusCalculator derives the ordered bonus list for one activity.
// It is deterministic: the same event, state and location always produce
// the same bonuses.
type BonusCalculator struct {
	loc *time.Location
}

// NewBonusCalculator creates a calculator. A nil location evaluates
// time-of-day rules in the event timestamp's own zone.
func NewBonusCalculator(loc *time.Location) *BonusCalculator {
	return &BonusCalculator{loc: loc}
}

// Calculate returns the award for an activity. Bonuses are ordered
// first-time, perfect-score, completion-rate, time-of-day, streak.
// The streak bonus multiplies everything accumulated before it.
func (c *BonusCalculator) Calculate(ev domain.ActivityEvent, state domain.UserProgressionState) (domain.XPAward, error) {
	if err := ValidateEvent(ev); err != nil {
		return domain.XPAward{}, err
	}
	base, err := BaseXPFor(ev.Kind)
	if err != nil {
		return domain.XPAward{}, err
	}

	bonuses := make([]domain.Bonus, 0, 5)
	running := base

	add := func(b domain.Bonus) {
		bonuses = append(bonuses, b)
		running += b.AmountXP
	}

	if ev.IsFirstTimeForSubject {
		add(domain.Bonus{
			Kind:        domain.BonusFirstTime,
			AmountXP:    FirstTimeBonusXP,
			Description: fmt.Sprintf("First time completing this %s", ev.Kind.Noun()),
		})
	}

	if ev.Kind.Scored() && ev.ScorePercent != nil && *ev.ScorePercent == 100 {
		add(domain.Bonus{
			Kind:        domain.BonusPerfectScore,
			AmountXP:    PerfectScoreBonusXP,
			Description: "Perfect score",
		})
	}

	if ev.CompletionRatePercent != nil && *ev.CompletionRatePercent >= CompletionThreshold {
		add(domain.Bonus{
			Kind:        domain.BonusCompletionRate,
			AmountXP:    CompletionBonusXP,
			Description: fmt.Sprintf("Completed %d%% of the content", *ev.CompletionRatePercent),
		})
	}

	if w := c.TimeWindow(ev.OccurredAt); w != domain.WindowNone {
		add(domain.Bonus{
			Kind:        domain.BonusTimeOfDay,
			AmountXP:    windowBonusXP(w),
			Description: w.Label() + " bonus",
			Window:      w,
		})
	}

	if state.CurrentStreakDays >= MinStreakDays {
		factor := StreakMultiplier(state.CurrentStreakDays)
		add(domain.Bonus{
			Kind:        domain.BonusStreak,
			AmountXP:    streakBonusXP(running, state.CurrentStreakDays),
			Description: fmt.Sprintf("%d-day streak: %sx multiplier", state.CurrentStreakDays, FormatMultiplier(factor)),
			StreakDays:  state.CurrentStreakDays,
			Multiplier:  factor,
		})
	}

	return domain.XPAward{
		BaseXP:  base,
		Bonuses: bonuses,
		TotalXP: running,
	}, nil
}

// TimeWindow returns the single time-of-day window an instant falls in.
// Priority: Early Bird > Night Owl > Weekend Warrior.
func (c *BonusCalculator) TimeWindow(at time.Time) domain.TimeWindow {
	if at.IsZero() {
		return domain.WindowNone
	}
	if c.loc != nil {
		at = at.In(c.loc)
	}
	hour := at.Hour()
	switch {
	case hour >= 5 && hour < 8:
		return domain.WindowEarlyBird
	case hour >= 22 || hour < 2:
		// Wraps midnight
		return domain.WindowNightOwl
	case at.Weekday() == time.Saturday || at.Weekday() == time.Sunday:
		return domain.WindowWeekendWarrior
	}
	return domain.WindowNone
}

func windowBonusXP(w domain.TimeWindow) int64 {
	switch w {
	case domain.WindowEarlyBird:
		return EarlyBirdBonusXP
	case domain.WindowNightOwl:
		return NightOwlBonusXP
	case domain.WindowWeekendWarrior:
		return WeekendWarriorBonusXP
	case domain.WindowNone:
	}
	return 0
}

// StreakMultiplier returns the XP factor for a streak length:
// 1.0 below MinStreakDays, rising linearly to MaxMultiplier at StreakCapDays.
func StreakMultiplier(days int) float64 {
	if days < MinStreakDays {
		return 1.0
	}
	if days > StreakCapDays {
		days = StreakCapDays
	}
	return 1.0 + (MaxMultiplier-1.0)*float64(days)/StreakCapDays
}

// streakBonusXP is round_half_up(running * (factor - 1)), computed exactly:
// factor - 1 == 2*days/100.
func streakBonusXP(running int64, days int) int64 {
	if days < MinStreakDays || running <= 0 {
		return 0
	}
	if days > StreakCapDays {
		days = StreakCapDays
	}
	return (running*2*int64(days) + 50) / 100
}

// FormatMultiplier renders a factor with at most two decimals: 1.14, 3.
func FormatMultiplier(f float64) string {
	return strconv.FormatFloat(roundTo(f, 2), 'f', -1, 64)
}

func roundTo(f float64, places int) float64 {
	p := 1.0
	for i := 0; i < places; i++ {
		p *= 10
	}
	return float64(int64(f*p+0.5)) / p
}
