package engagement

import (
	"fmt"
	"time"

	"github.com/levelup-learning/levelup/internal/domain"
)

// Display durations.
const (
	DefaultDisplayDuration     = 4 * time.Second
	LevelUpDisplayDuration     = 6 * time.Second
	AchievementDisplayDuration = 6 * time.Second
	StreakDisplayDuration      = 5 * time.Second
	MilestoneDisplayDuration   = 5 * time.Second
)

// defaultHint is used for kinds without their own decoration.
var defaultHint = domain.RenderHint{Emoji: "🎉", ColorClass: "bg-gradient-to-r from-blue-500 to-purple-600"}

// HintFor returns the emoji and colour class for a notification kind.
func HintFor(kind domain.NotificationKind) domain.RenderHint {
	switch kind {
	case domain.NotifyXPGained:
		return domain.RenderHint{Emoji: "⚡", ColorClass: "bg-gradient-to-r from-yellow-400 to-orange-500"}
	case domain.NotifyLevelUp:
		return domain.RenderHint{Emoji: "🎊", ColorClass: "bg-gradient-to-r from-purple-500 to-pink-600"}
	case domain.NotifyAchievement:
		return domain.RenderHint{Emoji: "🏆", ColorClass: "bg-gradient-to-r from-yellow-500 to-orange-600"}
	case domain.NotifyStreakBonus:
		return domain.RenderHint{Emoji: "🔥", ColorClass: "bg-gradient-to-r from-red-500 to-orange-500"}
	case domain.NotifyMilestone:
		return domain.RenderHint{Emoji: "🎯", ColorClass: "bg-gradient-to-r from-green-500 to-blue-500"}
	case domain.NotifyBaseXP:
		return domain.RenderHint{Emoji: "📚", ColorClass: "bg-gradient-to-r from-blue-400 to-blue-600"}
	case domain.NotifyBonusXP:
		return domain.RenderHint{Emoji: "✨", ColorClass: "bg-gradient-to-r from-purple-400 to-pink-500"}
	case domain.NotifyFirstTimeBonus:
		return domain.RenderHint{Emoji: "🆕", ColorClass: "bg-gradient-to-r from-green-400 to-teal-500"}
	case domain.NotifyPerfectScore:
		return domain.RenderHint{Emoji: "💯", ColorClass: "bg-gradient-to-r from-amber-400 to-orange-500"}
	case domain.NotifyCompletionBonus:
		return domain.RenderHint{Emoji: "✅", ColorClass: "bg-gradient-to-r from-emerald-400 to-green-600"}
	case domain.NotifyTimeBonus:
		return domain.RenderHint{Emoji: "⏰", ColorClass: "bg-gradient-to-r from-cyan-400 to-blue-500"}
	case domain.NotifyStreakMultiplier:
		return domain.RenderHint{Emoji: "🔥", ColorClass: "bg-gradient-to-r from-red-400 to-orange-500"}
	case domain.NotifyWatchMilestone:
		return domain.RenderHint{Emoji: "👁️", ColorClass: "bg-gradient-to-r from-violet-500 to-purple-600"}
	case domain.NotifyStreakMilestone:
		return domain.RenderHint{Emoji: "📆", ColorClass: "bg-gradient-to-r from-amber-500 to-red-500"}
	case domain.NotifyTimeMilestone:
		return domain.RenderHint{Emoji: "⏱️", ColorClass: "bg-gradient-to-r from-blue-500 to-indigo-600"}
	case domain.NotifySocialMilestone:
		return domain.RenderHint{Emoji: "👍", ColorClass: "bg-gradient-to-r from-pink-500 to-rose-600"}
	case domain.NotifyMasteryMilestone:
		return domain.RenderHint{Emoji: "🌟", ColorClass: "bg-gradient-to-r from-amber-400 to-yellow-600"}
	}
	return defaultHint
}

// DurationFor returns how long a kind stays on screen.
func DurationFor(kind domain.NotificationKind) time.Duration {
	switch kind {
	case domain.NotifyLevelUp:
		return LevelUpDisplayDuration
	case domain.NotifyAchievement:
		return AchievementDisplayDuration
	case domain.NotifyStreakBonus:
		return StreakDisplayDuration
	case domain.NotifyMilestone:
		return MilestoneDisplayDuration
	}
	return DefaultDisplayDuration
}

func newEvent(kind domain.NotificationKind, title, desc string) domain.NotificationEvent {
	return domain.NotificationEvent{
		Kind:            kind,
		Title:           title,
		Description:     desc,
		DisplayDuration: DurationFor(kind),
		RenderHint:      HintFor(kind),
	}
}

func xp(v int64) *int64 { return &v }
func num(v int) *int    { return &v }

// Notifications translates an engine result into playback order:
//
//	base XP, each bonus in calculator order, level up, each achievement
//	followed by its category milestone, streak bonus.
//
// The streak-bonus event is only added when a streak bonus was paid and
// the streak after the activity is at least MinStreakDays.
func Notifications(kind domain.ActivityKind, r Result) []domain.NotificationEvent {
	events := make([]domain.NotificationEvent, 0, 2+len(r.Award.Bonuses)+2*len(r.NewAchievements))

	events = append(events, BaseXPNotification(kind, r.Award.BaseXP))
	for _, b := range r.Award.Bonuses {
		events = append(events, BonusNotification(kind, b))
	}

	if r.LevelUp() {
		events = append(events, LevelUpNotification(r.LevelChange.NewLevel))
	}

	for _, a := range r.NewAchievements {
		events = append(events, AchievementNotification(a), MilestoneNotification(a))
	}

	if streak, ok := r.Award.Bonus(domain.BonusStreak); ok && streak.AmountXP > 0 &&
		r.StateAfter.CurrentStreakDays >= MinStreakDays {
		events = append(events, StreakBonusNotification(r.StateAfter.CurrentStreakDays, streak.AmountXP))
	}
	return events
}

// FlatAwardNotifications translates a flat award: one xp_gained event
// naming the reason, then level-up and achievements as for an activity.
func FlatAwardNotifications(reason string, r Result) []domain.NotificationEvent {
	gained := XPGainedNotification(r.Award)
	if reason != "" {
		gained.Description += "\n• " + reason
	}
	events := []domain.NotificationEvent{gained}
	if r.LevelUp() {
		events = append(events, LevelUpNotification(r.LevelChange.NewLevel))
	}
	for _, a := range r.NewAchievements {
		events = append(events, AchievementNotification(a), MilestoneNotification(a))
	}
	return events
}

// BaseXPNotification announces the fixed reward for an activity.
func BaseXPNotification(kind domain.ActivityKind, amount int64) domain.NotificationEvent {
	title, desc := "Base XP Earned", "You earned base XP for this activity."
	switch kind {
	case domain.ActivityVideoWatch:
		title, desc = "Video Watched", "You earned base XP for watching this video."
	case domain.ActivityVideoLike:
		title, desc = "Video Liked", "You earned base XP for liking this video."
	case domain.ActivityQuizComplete:
		title, desc = "Quiz Completed", "You earned base XP for completing this quiz."
	case domain.ActivityChallengeComplete:
		title, desc = "Challenge Completed", "You earned base XP for completing this challenge."
	case domain.ActivityCourseComplete:
		title, desc = "Course Completed", "You earned base XP for completing this course."
	}
	ev := newEvent(domain.NotifyBaseXP, title, desc)
	ev.XPAmount = xp(amount)
	return ev
}

// BonusNotification renders one applied bonus.
func BonusNotification(kind domain.ActivityKind, b domain.Bonus) domain.NotificationEvent {
	var ev domain.NotificationEvent
	switch b.Kind {
	case domain.BonusFirstTime:
		ev = newEvent(domain.NotifyFirstTimeBonus, "First Time Bonus!",
			fmt.Sprintf("This is your first time completing this %s!", kind.Noun()))
	case domain.BonusPerfectScore:
		ev = newEvent(domain.NotifyPerfectScore, "Perfect Score!",
			fmt.Sprintf("You achieved a perfect score on this %s!", kind.Noun()))
	case domain.BonusCompletionRate:
		ev = newEvent(domain.NotifyCompletionBonus, "Completion Bonus", b.Description+"!")
	case domain.BonusTimeOfDay:
		ev = timeBonusNotification(b.Window)
	case domain.BonusStreak:
		ev = newEvent(domain.NotifyStreakMultiplier, "Streak Multiplier",
			fmt.Sprintf("Your %d-day streak gives you a %sx XP multiplier!", b.StreakDays, FormatMultiplier(b.Multiplier)))
		ev.StreakDays = num(b.StreakDays)
	default:
		return BonusXPNotification(b.AmountXP, b.Description)
	}
	ev.XPAmount = xp(b.AmountXP)
	return ev
}

// BonusXPNotification is a generic bonus credit.
func BonusXPNotification(amount int64, desc string) domain.NotificationEvent {
	ev := newEvent(domain.NotifyBonusXP, "Bonus XP", desc)
	ev.XPAmount = xp(amount)
	return ev
}

func timeBonusNotification(w domain.TimeWindow) domain.NotificationEvent {
	ev := newEvent(domain.NotifyTimeBonus, "Time Bonus", "You earned a time-based bonus!")
	switch w {
	case domain.WindowEarlyBird:
		ev.Title, ev.Description = "Early Bird Bonus", "You're learning early in the morning!"
		ev.RenderHint.Emoji = "🌅"
	case domain.WindowNightOwl:
		ev.Title, ev.Description = "Night Owl Bonus", "You're learning late at night!"
		ev.RenderHint.Emoji = "🦉"
	case domain.WindowWeekendWarrior:
		ev.Title, ev.Description = "Weekend Warrior Bonus", "You're learning on the weekend!"
		ev.RenderHint.Emoji = "⚡"
	case domain.WindowNone:
	}
	return ev
}

// LevelUpNotification congratulates the user on a new level.
func LevelUpNotification(level int) domain.NotificationEvent {
	ev := newEvent(domain.NotifyLevelUp, "Level Up!", fmt.Sprintf("Congratulations! You've reached Level %d!", level))
	ev.Level = num(level)
	return ev
}

// AchievementNotification announces an unlocked achievement.
func AchievementNotification(a domain.Achievement) domain.NotificationEvent {
	ev := newEvent(domain.NotifyAchievement, "Achievement Unlocked!", a.Title+": "+a.Description)
	ev.AchievementID = a.ID
	ev.XPAmount = xp(a.XPReward)
	return ev
}

// MilestoneNotification renders the category milestone for an achievement
// from its structured threshold.
func MilestoneNotification(a domain.Achievement) domain.NotificationEvent {
	var ev domain.NotificationEvent
	switch a.Category {
	case domain.CatLearning:
		ev = newEvent(domain.NotifyWatchMilestone, "Watch Milestone",
			printer.Sprintf("You've watched %d videos!", a.ThresholdValue))
	case domain.CatConsistency:
		ev = newEvent(domain.NotifyStreakMilestone, "Streak Milestone",
			printer.Sprintf("You've maintained a %d-day learning streak!", a.ThresholdValue))
		ev.StreakDays = num(int(a.ThresholdValue))
	case domain.CatTime:
		ev = newEvent(domain.NotifyTimeMilestone, "Study Time Milestone",
			printer.Sprintf("You've studied for %d hours!", a.ThresholdValue))
	case domain.CatSocial:
		ev = newEvent(domain.NotifySocialMilestone, "Social Milestone",
			printer.Sprintf("You've liked %d times!", a.ThresholdValue))
	case domain.CatMastery:
		ev = newEvent(domain.NotifyMasteryMilestone, "Mastery Milestone",
			fmt.Sprintf("You've reached %s total XP!", masteryLabel(a.ThresholdValue)))
	default:
		ev = newEvent(domain.NotifyMilestone, a.Title, a.Description)
	}
	ev.XPAmount = xp(a.XPReward)
	return ev
}

// masteryLabel abbreviates an XP milestone: 1K, 10K, 100K, 1 Million.
func masteryLabel(total int64) string {
	switch {
	case total >= 1_000_000 && total%1_000_000 == 0:
		if total == 1_000_000 {
			return "1 Million"
		}
		return fmt.Sprintf("%d Million", total/1_000_000)
	case total >= 1_000 && total%1_000 == 0:
		return fmt.Sprintf("%dK", total/1_000)
	}
	return printer.Sprintf("%d", total)
}

// StreakBonusNotification celebrates an active streak that paid out.
func StreakBonusNotification(days int, bonus int64) domain.NotificationEvent {
	ev := newEvent(domain.NotifyStreakBonus, "Streak Bonus!",
		fmt.Sprintf("Amazing! You're on a %d-day learning streak!", days))
	ev.StreakDays = num(days)
	ev.XPAmount = xp(bonus)
	return ev
}

// XPGainedNotification summarises a whole award in one event.
func XPGainedNotification(a domain.XPAward) domain.NotificationEvent {
	desc := fmt.Sprintf("You earned %d XP!", a.TotalXP)
	for _, b := range a.Bonuses {
		desc += "\n• " + b.Description
	}
	ev := newEvent(domain.NotifyXPGained, "XP Gained!", desc)
	ev.XPAmount = xp(a.TotalXP)
	return ev
}

// GenericMilestoneNotification is a free-form milestone.
func GenericMilestoneNotification(title, desc string) domain.NotificationEvent {
	return newEvent(domain.NotifyMilestone, title, desc)
}

// DemoSequence returns one notification of every kind, in the order the
// demo plays them: base XP per activity, every bonus, every category
// milestone, then the system notifications.
func DemoSequence() []domain.NotificationEvent {
	var out []domain.NotificationEvent
	for _, k := range domain.ActivityKinds() {
		base, _ := BaseXPFor(k)
		out = append(out, BaseXPNotification(k, base))
	}

	completion := 95
	out = append(out,
		BonusNotification(domain.ActivityVideoWatch, domain.Bonus{Kind: domain.BonusFirstTime, AmountXP: FirstTimeBonusXP}),
		BonusNotification(domain.ActivityQuizComplete, domain.Bonus{Kind: domain.BonusPerfectScore, AmountXP: PerfectScoreBonusXP}),
		BonusNotification(domain.ActivityVideoWatch, domain.Bonus{
			Kind: domain.BonusCompletionRate, AmountXP: CompletionBonusXP,
			Description: fmt.Sprintf("Completed %d%% of the content", completion),
		}),
		BonusNotification(domain.ActivityVideoWatch, domain.Bonus{Kind: domain.BonusTimeOfDay, AmountXP: EarlyBirdBonusXP, Window: domain.WindowEarlyBird}),
		BonusNotification(domain.ActivityVideoWatch, domain.Bonus{Kind: domain.BonusTimeOfDay, AmountXP: NightOwlBonusXP, Window: domain.WindowNightOwl}),
		BonusNotification(domain.ActivityVideoWatch, domain.Bonus{Kind: domain.BonusTimeOfDay, AmountXP: WeekendWarriorBonusXP, Window: domain.WindowWeekendWarrior}),
		BonusNotification(domain.ActivityVideoWatch, domain.Bonus{
			Kind: domain.BonusStreak, AmountXP: streakBonusXP(100, 7),
			StreakDays: 7, Multiplier: StreakMultiplier(7),
		}),
		BonusXPNotification(10, "Community challenge bonus"),
	)

	catalog := DefaultCatalog()
	for _, id := range []string{"learning_10", "consistency_7", "time_10", "social_50", "mastery_1000"} {
		if a, ok := catalog.Lookup(id); ok {
			out = append(out, MilestoneNotification(a))
		}
	}

	bonus := domain.XPAward{BaseXP: 100, TotalXP: 200, Bonuses: []domain.Bonus{
		{Kind: domain.BonusPerfectScore, AmountXP: PerfectScoreBonusXP, Description: "Perfect score"},
	}}
	out = append(out, XPGainedNotification(bonus), LevelUpNotification(5))
	if a, ok := catalog.Lookup("learning_10"); ok {
		out = append(out, AchievementNotification(a))
	}
	out = append(out,
		StreakBonusNotification(7, streakBonusXP(100, 7)),
		GenericMilestoneNotification("Halfway There!", "You've completed 50% of the course!"),
	)
	return out
}
