package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// ProgressStore abstracts persistent user progression storage.
// Implemented by infra/sqlite.DB.
type ProgressStore interface {
	// GetUser returns the user's snapshot, or nil if the user is unknown.
	GetUser(ctx context.Context, userID string) (*UserProgressionState, error)

	// CreateUser inserts a fresh zero-counter user.
	CreateUser(ctx context.Context, userID string, at time.Time) error

	// ApplyProgress atomically writes the new state, unlocks achievements,
	// appends the ledger entry and claims the activity id.
	// Returns the achievement ids that were newly inserted.
	ApplyProgress(ctx context.Context, rec ProgressRecord) ([]string, error)

	// ListUnlockedAchievements returns the user's unlocked set.
	ListUnlockedAchievements(ctx context.Context, userID string) ([]UnlockedAchievement, error)

	// RecentTransactions returns the newest ledger entries first.
	RecentTransactions(ctx context.Context, userID string, limit int) ([]XPTransaction, error)

	// UserCount returns the number of registered users.
	UserCount(ctx context.Context) (int, error)

	ModuleStore
}

// ModuleStore keeps the course structure activities are tracked against.
type ModuleStore interface {
	// SaveModule creates or replaces a module and its video list.
	SaveModule(ctx context.Context, m Module, at time.Time) error

	// GetModule returns the module, or nil if the id is unknown.
	GetModule(ctx context.Context, moduleID string) (*Module, error)

	// ListVideoCompletions returns the module videos a user has watched,
	// earliest first.
	ListVideoCompletions(ctx context.Context, userID, moduleID string) ([]VideoCompletion, error)
}

// ProgressRecord is everything persistence writes for one activity.
type ProgressRecord struct {
	UserID       string
	ActivityID   string
	StateAfter   UserProgressionState
	Achievements []string
	Transaction  XPTransaction
	At           time.Time
}

// NotificationInbox abstracts the delivered-notification store clients poll.
type NotificationInbox interface {
	InsertNotification(ctx context.Context, ev NotificationEvent, at time.Time) (int64, error)
	ListPendingNotifications(ctx context.Context, userID string, limit int) ([]StoredNotification, error)
	MarkNotificationShown(ctx context.Context, userID string, id int64) error

	// MarkAchievementNotified records that an unlock reached the user.
	MarkAchievementNotified(ctx context.Context, userID, achievementID string) error
}
