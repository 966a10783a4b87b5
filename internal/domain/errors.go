package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure: no infrastructure dependency.

var (
	// Validation errors: the engine fails fast and nothing is mutated.
	ErrInvalidActivity      = errors.New("invalid activity")
	ErrUnknownActivityKind  = errors.New("unknown activity kind")
	ErrScoreOutOfRange      = errors.New("score percent must be within 0..100")
	ErrCompletionOutOfRange = errors.New("completion rate percent must be within 0..100")
	ErrNegativeDuration     = errors.New("duration must not be negative")
	ErrAwardOutOfRange      = errors.New("xp award out of range")

	// State errors
	ErrStateUnavailable  = errors.New("user progression state unavailable")
	ErrUserExists        = errors.New("user already exists")
	ErrDuplicateActivity = errors.New("activity already recorded")

	// Course content errors
	ErrInvalidModule  = errors.New("invalid module")
	ErrModuleNotFound = errors.New("module not found")

	// Catalog errors
	ErrInvalidCatalog = errors.New("invalid achievement catalog")

	// Notification errors
	ErrNotificationNotFound = errors.New("notification not found")
	ErrSinkUnavailable      = errors.New("notification sink unavailable")
)
