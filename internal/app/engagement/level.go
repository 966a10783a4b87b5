package engagement

import (
	"math"

	"github.com/levelup-learning/levelup/internal/domain"
)

// MaxLevel caps the curve. Beyond it progress reads as full.
const MaxLevel = 100

// Level curve: level n spans round(100 * 1.4^(n-1)) XP.
// Level 1 starts at 0 XP; finishing level 1 takes 100 XP.
const (
	levelBaseXP = 100
	levelGrowth = 1.4
)

// spans[n] is the XP width of level n; cumulative[n] is the total XP at
// which level n is entered. Index 0 is unused.
var spans, cumulative = buildCurve()

func buildCurve() ([]int64, []int64) {
	s := make([]int64, MaxLevel+1)
	c := make([]int64, MaxLevel+2)
	for n := 1; n <= MaxLevel; n++ {
		s[n] = int64(math.Round(levelBaseXP * math.Pow(levelGrowth, float64(n-1))))
		c[n+1] = c[n] + s[n]
	}
	return s, c
}

// XPForLevel returns the XP span of a level: what must be earned inside
// level n to leave it.
func XPForLevel(level int) int64 {
	if level < 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return spans[level]
}

// CumulativeXPForLevel returns the total XP at which a level is entered.
// Level 1 is entered at 0.
func CumulativeXPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return cumulative[level]
}

// LevelForXP returns only the integer level for a total.
func LevelForXP(total int64) int {
	level := 1
	for level < MaxLevel && total >= cumulative[level+1] {
		level++
	}
	return level
}

// LevelForTotalXP places a total on the curve. Negative totals are
// treated as zero.
func LevelForTotalXP(total int64) domain.LevelInfo {
	if total < 0 {
		total = 0
	}
	level := LevelForXP(total)
	current := total - cumulative[level]
	next := spans[level]

	progress := float64(current) / float64(next)
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	return domain.LevelInfo{
		Level:            level,
		CurrentLevelXP:   current,
		NextLevelXP:      next,
		ProgressFraction: progress,
	}
}

// XPToNextLevel returns XP remaining until the next level, 0 at the cap.
func XPToNextLevel(total int64) int64 {
	info := LevelForTotalXP(total)
	if info.Level >= MaxLevel {
		return 0
	}
	return info.NextLevelXP - info.CurrentLevelXP
}

// LevelChangeFor reports a level transition between two totals, or nil.
func LevelChangeFor(before, after int64) *domain.LevelChange {
	oldLevel, newLevel := LevelForXP(before), LevelForXP(after)
	if oldLevel == newLevel {
		return nil
	}
	return &domain.LevelChange{OldLevel: oldLevel, NewLevel: newLevel}
}
