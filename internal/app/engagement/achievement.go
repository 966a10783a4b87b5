package engagement

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/levelup-learning/levelup/internal/domain"
)

// CatalogVersion identifies the built-in achievement catalog.
const CatalogVersion = "2024.1"

// Catalog is the static, versioned achievement configuration.
// Changing it is a deployment-time concern, not a runtime API.
type Catalog struct {
	Version      string               `toml:"version" json:"version"`
	Achievements []domain.Achievement `toml:"achievement" json:"achievements"`
}

// printer formats thresholds in catalog copy (1,000 rather than 1000).
var printer = message.NewPrinter(language.English)

// DefaultCatalog returns the built-in catalog, already in evaluation order.
func DefaultCatalog() Catalog {
	var list []domain.Achievement

	learning := []struct {
		n      int64
		title  string
		reward int64
	}{
		{1, "First Steps", 10},
		{10, "Learning Enthusiast", 50},
		{50, "Dedicated Learner", 100},
		{100, "Knowledge Seeker", 200},
		{500, "Video Virtuoso", 1000},
	}
	for _, l := range learning {
		desc := printer.Sprintf("Watch %d videos", l.n)
		if l.n == 1 {
			desc = "Watch your first video"
		}
		list = append(list, domain.Achievement{
			ID: fmt.Sprintf("learning_%d", l.n), Category: domain.CatLearning,
			ThresholdValue: l.n, Title: l.title, Description: desc, XPReward: l.reward,
		})
	}

	consistency := []struct {
		n      int64
		title  string
		reward int64
	}{
		{3, "Getting Consistent", 30},
		{7, "Week Warrior", 75},
		{30, "Monthly Master", 300},
		{100, "Centurion", 1000},
	}
	for _, c := range consistency {
		list = append(list, domain.Achievement{
			ID: fmt.Sprintf("consistency_%d", c.n), Category: domain.CatConsistency,
			ThresholdValue: c.n, Title: c.title,
			Description: printer.Sprintf("Keep a %d-day learning streak", c.n), XPReward: c.reward,
		})
	}

	studyTime := []struct {
		n      int64
		title  string
		reward int64
	}{
		{10, "Time Investor", 100},
		{100, "Study Marathon", 500},
		{1000, "Lifelong Learner", 2000},
	}
	for _, t := range studyTime {
		list = append(list, domain.Achievement{
			ID: fmt.Sprintf("time_%d", t.n), Category: domain.CatTime,
			ThresholdValue: t.n, Title: t.title,
			Description: printer.Sprintf("Study for %d hours", t.n), XPReward: t.reward,
		})
	}

	social := []struct {
		n      int64
		title  string
		reward int64
	}{
		{50, "Community Member", 100},
		{200, "Social Butterfly", 300},
	}
	for _, s := range social {
		list = append(list, domain.Achievement{
			ID: fmt.Sprintf("social_%d", s.n), Category: domain.CatSocial,
			ThresholdValue: s.n, Title: s.title,
			Description: printer.Sprintf("Interact with %d videos", s.n), XPReward: s.reward,
		})
	}

	mastery := []struct {
		n      int64
		title  string
		reward int64
	}{
		{1_000, "XP Apprentice", 50},
		{10_000, "XP Expert", 200},
		{100_000, "XP Master", 1000},
		{1_000_000, "XP Legend", 5000},
	}
	for _, m := range mastery {
		list = append(list, domain.Achievement{
			ID: fmt.Sprintf("mastery_%d", m.n), Category: domain.CatMastery,
			ThresholdValue: m.n, Title: m.title,
			Description: printer.Sprintf("Earn %d total XP", m.n), XPReward: m.reward,
		})
	}

	return Catalog{Version: CatalogVersion, Achievements: list}
}

// LoadCatalog reads a catalog override from a TOML file:
//
//	version = "2025.2"
//	[[achievement]]
//	id = "learning_1"
//	category = "learning"
//	threshold = 1
//	...
func LoadCatalog(path string) (Catalog, error) {
	var c Catalog
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return c, fmt.Errorf("%w: %v", domain.ErrInvalidCatalog, err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	c.sort()
	return c, nil
}

// Validate checks ids are unique, categories known and thresholds positive.
func (c Catalog) Validate() error {
	if len(c.Achievements) == 0 {
		return fmt.Errorf("%w: no achievements", domain.ErrInvalidCatalog)
	}
	seen := make(map[string]bool, len(c.Achievements))
	for _, a := range c.Achievements {
		if a.ID == "" {
			return fmt.Errorf("%w: achievement without id", domain.ErrInvalidCatalog)
		}
		if seen[a.ID] {
			return fmt.Errorf("%w: duplicate id %q", domain.ErrInvalidCatalog, a.ID)
		}
		seen[a.ID] = true
		if a.Category.Rank() < 0 {
			return fmt.Errorf("%w: %s has unknown category %q", domain.ErrInvalidCatalog, a.ID, a.Category)
		}
		if a.ThresholdValue <= 0 {
			return fmt.Errorf("%w: %s threshold must be positive", domain.ErrInvalidCatalog, a.ID)
		}
		if a.XPReward < 0 {
			return fmt.Errorf("%w: %s reward must not be negative", domain.ErrInvalidCatalog, a.ID)
		}
	}
	return nil
}

// sort puts achievements in evaluation order: category order, then
// ascending threshold.
func (c *Catalog) sort() {
	sort.SliceStable(c.Achievements, func(i, j int) bool {
		a, b := c.Achievements[i], c.Achievements[j]
		if a.Category != b.Category {
			return a.Category.Rank() < b.Category.Rank()
		}
		return a.ThresholdValue < b.ThresholdValue
	})
}

// Lookup finds an achievement by id.
func (c Catalog) Lookup(id string) (domain.Achievement, bool) {
	for _, a := range c.Achievements {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Achievement{}, false
}

// ─── Evaluator ──────────────────────────────────────────────────────────────

// AchievementEvaluator detects thresholds crossed by one activity.
type AchievementEvaluator struct {
	catalog Catalog
}

// NewAchievementEvaluator creates an evaluator over a catalog.
func NewAchievementEvaluator(c Catalog) *AchievementEvaluator {
	c.Achievements = append([]domain.Achievement(nil), c.Achievements...)
	c.sort()
	return &AchievementEvaluator{catalog: c}
}

// Catalog returns the evaluator's catalog.
func (e *AchievementEvaluator) Catalog() Catalog {
	return e.catalog
}

// Evaluate returns achievements with before < threshold <= after, in
// catalog order. Every crossed threshold is reported, not just the
// highest. Ids in unlocked are skipped.
func (e *AchievementEvaluator) Evaluate(before, after domain.UserProgressionState, unlocked map[string]bool) []domain.Achievement {
	var crossed []domain.Achievement
	for _, a := range e.catalog.Achievements {
		if unlocked[a.ID] {
			continue
		}
		b, t, n := measure(a.Category, before), threshold(a), measure(a.Category, after)
		if b < t && t <= n {
			crossed = append(crossed, a)
		}
	}
	return crossed
}

// Progress annotates every catalog entry with the user's progress.
func (e *AchievementEvaluator) Progress(state domain.UserProgressionState, unlocked []domain.UnlockedAchievement) []domain.AchievementProgress {
	at := make(map[string]domain.UnlockedAchievement, len(unlocked))
	for _, u := range unlocked {
		at[u.ID] = u
	}

	out := make([]domain.AchievementProgress, 0, len(e.catalog.Achievements))
	for _, a := range e.catalog.Achievements {
		current := displayValue(a.Category, state)
		p := domain.AchievementProgress{
			Achievement: a,
			Current:     current,
			Progress:    current / float64(a.ThresholdValue),
		}
		if p.Progress > 1 {
			p.Progress = 1
		}
		if u, ok := at[a.ID]; ok {
			p.Unlocked = true
			unlockedAt := u.UnlockedAt
			p.UnlockedAt = &unlockedAt
			p.Progress = 1
		}
		out = append(out, p)
	}
	return out
}

// measure returns the category counter in units comparable with
// threshold(a). Study time compares in seconds so partial hours count.
func measure(cat domain.AchievementCategory, s domain.UserProgressionState) int64 {
	switch cat {
	case domain.CatLearning:
		return s.VideosWatched
	case domain.CatConsistency:
		return int64(s.CurrentStreakDays)
	case domain.CatTime:
		return s.TotalStudySeconds
	case domain.CatSocial:
		return s.SocialInteractionCount
	case domain.CatMastery:
		return s.TotalXP
	}
	return 0
}

func threshold(a domain.Achievement) int64 {
	if a.Category == domain.CatTime {
		return a.ThresholdValue * 3600
	}
	return a.ThresholdValue
}

func displayValue(cat domain.AchievementCategory, s domain.UserProgressionState) float64 {
	if cat == domain.CatTime {
		return s.StudyHours()
	}
	return float64(measure(cat, s))
}
