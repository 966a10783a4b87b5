package engagement

import (
	"fmt"
	"time"

	"github.com/levelup-learning/levelup/internal/domain"
)

// Result is everything one completed activity produced.
// Invariant: StateAfter.TotalXP == before.TotalXP + Award.TotalXP.
type Result struct {
	Award           domain.XPAward              `json:"award"`
	NewAchievements []domain.Achievement        `json:"new_achievements"`
	LevelChange     *domain.LevelChange         `json:"level_change,omitempty"`
	StateBefore     domain.UserProgressionState `json:"state_before"`
	StateAfter      domain.UserProgressionState `json:"state_after"`
}

// LevelUp reports whether the activity moved the user to a higher level.
func (r Result) LevelUp() bool {
	return r.LevelChange != nil && r.LevelChange.NewLevel > r.LevelChange.OldLevel
}

// ValidateEvent rejects events the engine must not score. All failures
// wrap domain.ErrInvalidActivity.
func ValidateEvent(ev domain.ActivityEvent) error {
	if !ev.Kind.Valid() {
		return fmt.Errorf("%w: %w %q", domain.ErrInvalidActivity, domain.ErrUnknownActivityKind, ev.Kind)
	}
	if ev.ScorePercent != nil && (*ev.ScorePercent < 0 || *ev.ScorePercent > 100) {
		return fmt.Errorf("%w: %w (got %d)", domain.ErrInvalidActivity, domain.ErrScoreOutOfRange, *ev.ScorePercent)
	}
	if ev.CompletionRatePercent != nil && (*ev.CompletionRatePercent < 0 || *ev.CompletionRatePercent > 100) {
		return fmt.Errorf("%w: %w (got %d)", domain.ErrInvalidActivity, domain.ErrCompletionOutOfRange, *ev.CompletionRatePercent)
	}
	if ev.DurationSeconds != nil && *ev.DurationSeconds < 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidActivity, domain.ErrNegativeDuration)
	}
	return nil
}

// Engine turns one activity plus a state snapshot into an award, the
// successor state, the achievements crossed and any level change.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	calc      *BonusCalculator
	evaluator *AchievementEvaluator
	loc       *time.Location
}

// NewEngine creates an engine. loc decides calendar days for streaks and
// the hour for time-of-day bonuses; nil uses each timestamp's own zone.
func NewEngine(catalog Catalog, loc *time.Location) *Engine {
	return &Engine{
		calc:      NewBonusCalculator(loc),
		evaluator: NewAchievementEvaluator(catalog),
		loc:       loc,
	}
}

// Catalog returns the achievement catalog the engine evaluates.
func (e *Engine) Catalog() Catalog {
	return e.evaluator.Catalog()
}

// Evaluator exposes the achievement evaluator for progress reporting.
func (e *Engine) Evaluator() *AchievementEvaluator {
	return e.evaluator
}

// CompleteActivity scores ev against before. Invalid events fail fast
// with nothing computed. unlocked holds achievement ids already earned;
// those are never reported again.
func (e *Engine) CompleteActivity(ev domain.ActivityEvent, before domain.UserProgressionState, unlocked map[string]bool) (Result, error) {
	if err := ValidateEvent(ev); err != nil {
		return Result{}, err
	}

	// Streak rolls forward first so the multiplier sees today's streak.
	rolled := AdvanceStreak(before, ev.OccurredAt, e.loc)

	award, err := e.calc.Calculate(ev, rolled)
	if err != nil {
		return Result{}, err
	}

	after := applyCounters(rolled, ev)
	after.TotalXP = before.TotalXP + award.TotalXP

	return Result{
		Award:           award,
		NewAchievements: e.evaluator.Evaluate(before, after, unlocked),
		LevelChange:     LevelChangeFor(before.TotalXP, after.TotalXP),
		StateBefore:     before,
		StateAfter:      after,
	}, nil
}

// MaxFlatAward caps a single flat XP award.
const MaxFlatAward = 1000

// AwardFlat credits amount XP outside any activity kind: no bonuses,
// no counters, no streak. Achievements and level change are evaluated as
// for an activity.
func (e *Engine) AwardFlat(amount int64, before domain.UserProgressionState, unlocked map[string]bool) (Result, error) {
	if amount <= 0 || amount > MaxFlatAward {
		return Result{}, fmt.Errorf("%w: %w (got %d, want 1..%d)", domain.ErrInvalidActivity, domain.ErrAwardOutOfRange, amount, MaxFlatAward)
	}
	award := domain.XPAward{BaseXP: amount, TotalXP: amount}
	after := before
	after.TotalXP = before.TotalXP + amount

	return Result{
		Award:           award,
		NewAchievements: e.evaluator.Evaluate(before, after, unlocked),
		LevelChange:     LevelChangeFor(before.TotalXP, after.TotalXP),
		StateBefore:     before,
		StateAfter:      after,
	}, nil
}

// applyCounters bumps the per-category counters an activity feeds.
func applyCounters(s domain.UserProgressionState, ev domain.ActivityEvent) domain.UserProgressionState {
	switch ev.Kind {
	case domain.ActivityVideoWatch:
		s.VideosWatched++
	case domain.ActivityVideoLike:
		s.SocialInteractionCount++
		return s
	}
	if ev.DurationSeconds != nil {
		s.TotalStudySeconds += *ev.DurationSeconds
	}
	return s
}
