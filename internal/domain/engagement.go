// Package domain holds the progression types shared by the engine, the
// notification queue and the persistence layer.
// Domain types are pure: no infrastructure dependency.
package domain

import "time"

// ─── User State ─────────────────────────────────────────────────────────────

// UserProgressionState is a snapshot of a learner's aggregate counters.
// Owned by persistence; the engine only reads it and proposes a successor.
type UserProgressionState struct {
	TotalXP                int64     `json:"total_xp"`
	CurrentStreakDays      int       `json:"current_streak_days"`
	BestStreakDays         int       `json:"best_streak_days"`
	VideosWatched          int64     `json:"videos_watched"`
	TotalStudySeconds      int64     `json:"total_study_seconds"`
	SocialInteractionCount int64     `json:"social_interaction_count"`
	LastActiveAt           time.Time `json:"last_active_at"`
}

// StudyHours returns whole and fractional study hours.
func (s UserProgressionState) StudyHours() float64 {
	return float64(s.TotalStudySeconds) / 3600
}

// ─── Activities ─────────────────────────────────────────────────────────────

// ActivityKind enumerates the learning activities that award XP.
type ActivityKind string

const (
	ActivityVideoWatch        ActivityKind = "video_watch"
	ActivityVideoLike         ActivityKind = "video_like"
	ActivityQuizComplete      ActivityKind = "quiz_complete"
	ActivityChallengeComplete ActivityKind = "challenge_complete"
	ActivityCourseComplete    ActivityKind = "course_complete"
)

// ActivityKinds lists every known activity kind in declaration order.
func ActivityKinds() []ActivityKind {
	return []ActivityKind{
		ActivityVideoWatch,
		ActivityVideoLike,
		ActivityQuizComplete,
		ActivityChallengeComplete,
		ActivityCourseComplete,
	}
}

// Valid reports whether k is a known activity kind.
func (k ActivityKind) Valid() bool {
	switch k {
	case ActivityVideoWatch, ActivityVideoLike, ActivityQuizComplete,
		ActivityChallengeComplete, ActivityCourseComplete:
		return true
	}
	return false
}

// Scored reports whether the activity carries a meaningful score.
func (k ActivityKind) Scored() bool {
	return k == ActivityQuizComplete || k == ActivityChallengeComplete
}

// Noun is the short human name used in notification copy.
func (k ActivityKind) Noun() string {
	switch k {
	case ActivityVideoWatch, ActivityVideoLike:
		return "video"
	case ActivityQuizComplete:
		return "quiz"
	case ActivityChallengeComplete:
		return "challenge"
	case ActivityCourseComplete:
		return "course"
	}
	return "activity"
}

// ActivityEvent is one completed activity. Created per request, consumed once.
type ActivityEvent struct {
	Kind                  ActivityKind `json:"kind"`
	OccurredAt            time.Time    `json:"occurred_at"`
	IsFirstTimeForSubject bool         `json:"is_first_time_for_subject"`
	ScorePercent          *int         `json:"score_percent,omitempty"`
	CompletionRatePercent *int         `json:"completion_rate_percent,omitempty"`
	DurationSeconds       *int64       `json:"duration_seconds,omitempty"`
}

// ─── XP Award ───────────────────────────────────────────────────────────────

// BonusKind is the closed set of XP adjustments.
type BonusKind string

const (
	BonusFirstTime      BonusKind = "first_time"
	BonusPerfectScore   BonusKind = "perfect_score"
	BonusCompletionRate BonusKind = "completion_rate"
	BonusTimeOfDay      BonusKind = "time_of_day"
	BonusStreak         BonusKind = "streak"
)

// TimeWindow names the time-of-day bonus that applied.
type TimeWindow string

const (
	WindowNone           TimeWindow = ""
	WindowEarlyBird      TimeWindow = "early_bird"
	WindowNightOwl       TimeWindow = "night_owl"
	WindowWeekendWarrior TimeWindow = "weekend_warrior"
)

// Label returns the display name of the window.
func (w TimeWindow) Label() string {
	switch w {
	case WindowEarlyBird:
		return "Early Bird"
	case WindowNightOwl:
		return "Night Owl"
	case WindowWeekendWarrior:
		return "Weekend Warrior"
	}
	return ""
}

// Bonus is one applied adjustment. Window, StreakDays and Multiplier are
// only set for the kinds they describe.
type Bonus struct {
	Kind        BonusKind  `json:"kind"`
	AmountXP    int64      `json:"amount_xp"`
	Description string     `json:"description"`
	Window      TimeWindow `json:"window,omitempty"`
	StreakDays  int        `json:"streak_days,omitempty"`
	Multiplier  float64    `json:"multiplier,omitempty"`
}

// XPAward is the immutable result of scoring one activity.
// Invariant: TotalXP == BaseXP + sum(Bonuses.AmountXP).
type XPAward struct {
	BaseXP  int64   `json:"base_xp"`
	Bonuses []Bonus `json:"bonuses"`
	TotalXP int64   `json:"total_xp"`
}

// BonusXP returns the sum of all bonus amounts.
func (a XPAward) BonusXP() int64 {
	var sum int64
	for _, b := range a.Bonuses {
		sum += b.AmountXP
	}
	return sum
}

// Bonus returns the first bonus of the given kind.
func (a XPAward) Bonus(kind BonusKind) (Bonus, bool) {
	for _, b := range a.Bonuses {
		if b.Kind == kind {
			return b, true
		}
	}
	return Bonus{}, false
}

// ─── Levels ─────────────────────────────────────────────────────────────────

// LevelInfo places a total XP amount on the level curve.
type LevelInfo struct {
	Level            int     `json:"level"`
	CurrentLevelXP   int64   `json:"current_level_xp"`
	NextLevelXP      int64   `json:"next_level_xp"`
	ProgressFraction float64 `json:"progress"`
}

// LevelChange records an integer level transition.
type LevelChange struct {
	OldLevel int `json:"old_level"`
	NewLevel int `json:"new_level"`
}

// ─── Achievements ───────────────────────────────────────────────────────────

// AchievementCategory groups achievements by the counter they watch.
type AchievementCategory string

const (
	CatLearning    AchievementCategory = "learning"
	CatConsistency AchievementCategory = "consistency"
	CatTime        AchievementCategory = "time"
	CatSocial      AchievementCategory = "social"
	CatMastery     AchievementCategory = "mastery"
)

// AchievementCategories returns categories in evaluation order.
func AchievementCategories() []AchievementCategory {
	return []AchievementCategory{CatLearning, CatConsistency, CatTime, CatSocial, CatMastery}
}

// Rank is the category's position in evaluation order, -1 if unknown.
func (c AchievementCategory) Rank() int {
	for i, cat := range AchievementCategories() {
		if cat == c {
			return i
		}
	}
	return -1
}

// Achievement is a catalog entry. Threshold is in the category's unit:
// videos, streak days, study hours, interactions or total XP.
type Achievement struct {
	ID             string              `json:"id" toml:"id"`
	Category       AchievementCategory `json:"category" toml:"category"`
	ThresholdValue int64               `json:"threshold" toml:"threshold"`
	Title          string              `json:"title" toml:"title"`
	Description    string              `json:"description" toml:"description"`
	XPReward       int64               `json:"xp_reward" toml:"xp_reward"`
}

// UnlockedAchievement records when a user earned an achievement.
type UnlockedAchievement struct {
	ID         string    `json:"id"`
	UnlockedAt time.Time `json:"unlocked_at"`
	Notified   bool      `json:"notified"`
}

// AchievementProgress is a catalog entry annotated with a user's progress.
type AchievementProgress struct {
	Achievement
	Current    float64    `json:"current"`
	Progress   float64    `json:"progress"`
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

// XPTransaction is one persisted XP credit. Kind is empty for flat
// awards, which carry a Reason instead.
type XPTransaction struct {
	ID         string       `json:"id"`
	UserID     string       `json:"user_id"`
	ActivityID string       `json:"activity_id"`
	Kind       ActivityKind `json:"kind,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	Content    ContentRef   `json:"content"`
	BaseXP     int64        `json:"base_xp"`
	BonusXP    int64        `json:"bonus_xp"`
	TotalXP    int64        `json:"total_xp"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ─── Course content ─────────────────────────────────────────────────────────

// ContentRef places an activity in the course structure. Every field is
// optional; activities outside a course leave it empty.
type ContentRef struct {
	CourseID string `json:"course_id,omitempty"`
	ModuleID string `json:"module_id,omitempty"`
	VideoID  string `json:"video_id,omitempty"`
}

// Module is an ordered list of videos inside a course.
type Module struct {
	ID       string   `json:"id"`
	CourseID string   `json:"course_id"`
	Title    string   `json:"title"`
	VideoIDs []string `json:"video_ids"`
}

// VideoCompletion is the first time a user finished a module video.
type VideoCompletion struct {
	VideoID     string    `json:"video_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// ModuleStats summarises a user's progress through one module.
type ModuleStats struct {
	TotalVideos        int     `json:"total_videos"`
	CompletedVideos    int     `json:"completed_videos"`
	ProgressPercentage float64 `json:"progress_percentage"`
	EstimatedMinutes   int     `json:"estimated_minutes"`
}

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationKind is the closed set of celebratory notifications.
type NotificationKind string

const (
	NotifyXPGained         NotificationKind = "xp_gained"
	NotifyLevelUp          NotificationKind = "level_up"
	NotifyAchievement      NotificationKind = "achievement_unlocked"
	NotifyStreakBonus      NotificationKind = "streak_bonus"
	NotifyMilestone        NotificationKind = "milestone_reached"
	NotifyBaseXP           NotificationKind = "base_xp"
	NotifyBonusXP          NotificationKind = "bonus_xp"
	NotifyFirstTimeBonus   NotificationKind = "first_time_bonus"
	NotifyPerfectScore     NotificationKind = "perfect_score"
	NotifyCompletionBonus  NotificationKind = "completion_bonus"
	NotifyTimeBonus        NotificationKind = "time_bonus"
	NotifyStreakMultiplier NotificationKind = "streak_multiplier"
	NotifyWatchMilestone   NotificationKind = "watch_milestone"
	NotifyStreakMilestone  NotificationKind = "streak_milestone"
	NotifyTimeMilestone    NotificationKind = "time_milestone"
	NotifySocialMilestone  NotificationKind = "social_milestone"
	NotifyMasteryMilestone NotificationKind = "mastery_milestone"
)

// NotificationKinds lists every notification kind.
func NotificationKinds() []NotificationKind {
	return []NotificationKind{
		NotifyXPGained, NotifyLevelUp, NotifyAchievement, NotifyStreakBonus,
		NotifyMilestone, NotifyBaseXP, NotifyBonusXP, NotifyFirstTimeBonus,
		NotifyPerfectScore, NotifyCompletionBonus, NotifyTimeBonus,
		NotifyStreakMultiplier, NotifyWatchMilestone, NotifyStreakMilestone,
		NotifyTimeMilestone, NotifySocialMilestone, NotifyMasteryMilestone,
	}
}

// RenderHint tells the sink how to decorate a notification.
type RenderHint struct {
	Emoji      string `json:"emoji"`
	ColorClass string `json:"color_class"`
}

// NotificationEvent is one item of celebratory playback.
// Consumed exactly once by the notification queue; never persisted by the core.
type NotificationEvent struct {
	UserID          string           `json:"user_id,omitempty"`
	AchievementID   string           `json:"achievement_id,omitempty"`
	Kind            NotificationKind `json:"kind"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	XPAmount        *int64           `json:"xp,omitempty"`
	Level           *int             `json:"level,omitempty"`
	StreakDays      *int             `json:"streak,omitempty"`
	DisplayDuration time.Duration    `json:"display_duration"`
	RenderHint      RenderHint       `json:"render_hint"`
}

// StoredNotification is a delivered notification kept in a user's inbox.
type StoredNotification struct {
	ID        int64             `json:"id"`
	Event     NotificationEvent `json:"event"`
	CreatedAt time.Time         `json:"created_at"`
	Shown     bool              `json:"shown"`
}
