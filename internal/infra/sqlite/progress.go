package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/levelup-learning/levelup/internal/domain"
)

// ─── Users ──────────────────────────────────────────────────────────────────

// CreateUser inserts a learner with zero counters.
// Returns domain.ErrUserExists if the id is taken.
func (d *DB) CreateUser(ctx context.Context, userID string, at time.Time) error {
	result, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id, created_at, updated_at) VALUES (?, ?, ?)`,
		userID, at.Unix(), at.Unix(),
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrUserExists, userID)
	}
	return nil
}

// GetUser returns the learner's snapshot, or nil if the id is unknown.
func (d *DB) GetUser(ctx context.Context, userID string) (*domain.UserProgressionState, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT total_xp, current_streak_days, best_streak_days, videos_watched,
		        total_study_seconds, social_interaction_count, last_active
		 FROM users WHERE id = ?`, userID,
	)
	s, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// UserCount returns the number of registered learners.
func (d *DB) UserCount(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func scanUser(s scanner) (*domain.UserProgressionState, error) {
	var u domain.UserProgressionState
	var lastActive sql.NullInt64
	if err := s.Scan(&u.TotalXP, &u.CurrentStreakDays, &u.BestStreakDays, &u.VideosWatched,
		&u.TotalStudySeconds, &u.SocialInteractionCount, &lastActive); err != nil {
		return nil, err
	}
	u.LastActiveAt = fromNullableUnix(lastActive)
	return &u, nil
}

// ─── Progress ───────────────────────────────────────────────────────────────

// ApplyProgress writes one activity's outcome in a single transaction:
// claims the activity id, stores the new counters, appends the ledger
// entry and unlocks achievements. Returns the achievement ids that were
// not already unlocked.
//
// A reused activity id fails with domain.ErrDuplicateActivity and an
// unknown user with domain.ErrStateUnavailable; nothing is written.
func (d *DB) ApplyProgress(ctx context.Context, rec domain.ProgressRecord) ([]string, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_activities (user_id, activity_id, processed_at) VALUES (?, ?, ?)`,
		rec.UserID, rec.ActivityID, rec.At.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("claim activity: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateActivity, rec.ActivityID)
	}

	s := rec.StateAfter
	result, err = tx.ExecContext(ctx,
		`UPDATE users SET
			total_xp = ?, current_streak_days = ?, best_streak_days = ?,
			videos_watched = ?, total_study_seconds = ?, social_interaction_count = ?,
			last_active = ?, updated_at = ?
		 WHERE id = ?`,
		s.TotalXP, s.CurrentStreakDays, s.BestStreakDays,
		s.VideosWatched, s.TotalStudySeconds, s.SocialInteractionCount,
		nullableUnix(s.LastActiveAt), rec.At.Unix(), rec.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrStateUnavailable, rec.UserID)
	}

	t := rec.Transaction
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO xp_transactions (id, user_id, activity_id, kind, reason, course_id, module_id, video_id,
		                             base_xp, bonus_xp, total_xp, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, rec.UserID, rec.ActivityID, string(t.Kind), t.Reason,
		t.Content.CourseID, t.Content.ModuleID, t.Content.VideoID,
		t.BaseXP, t.BonusXP, t.TotalXP, rec.At.Unix(),
	); err != nil {
		return nil, fmt.Errorf("append ledger: %w", err)
	}

	var inserted []string
	for _, id := range rec.Achievements {
		result, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_achievements (user_id, achievement_id, unlocked_at, notified) VALUES (?, ?, ?, 0)`,
			rec.UserID, id, rec.At.Unix(),
		)
		if err != nil {
			return nil, fmt.Errorf("unlock %s: %w", id, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			inserted = append(inserted, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inserted, nil
}

// ─── Achievements ───────────────────────────────────────────────────────────

// ListUnlockedAchievements returns a learner's unlocked achievements,
// newest first.
func (d *DB) ListUnlockedAchievements(ctx context.Context, userID string) ([]domain.UnlockedAchievement, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT achievement_id, unlocked_at, notified FROM user_achievements
		 WHERE user_id = ? ORDER BY unlocked_at DESC, achievement_id`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var achievements []domain.UnlockedAchievement
	for rows.Next() {
		var a domain.UnlockedAchievement
		var unlockedAt int64
		if err := rows.Scan(&a.ID, &unlockedAt, &a.Notified); err != nil {
			return nil, err
		}
		a.UnlockedAt = time.Unix(unlockedAt, 0)
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

// MarkAchievementNotified records that an unlock was celebrated.
func (d *DB) MarkAchievementNotified(ctx context.Context, userID, achievementID string) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE user_achievements SET notified = 1 WHERE user_id = ? AND achievement_id = ?`,
		userID, achievementID,
	)
	return err
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

// RecentTransactions returns the newest ledger entries first.
func (d *DB) RecentTransactions(ctx context.Context, userID string, limit int) ([]domain.XPTransaction, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, activity_id, kind, reason, course_id, module_id, video_id,
		        base_xp, bonus_xp, total_xp, created_at
		 FROM xp_transactions WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.XPTransaction
	for rows.Next() {
		var t domain.XPTransaction
		var kind string
		var created int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.ActivityID, &kind, &t.Reason,
			&t.Content.CourseID, &t.Content.ModuleID, &t.Content.VideoID,
			&t.BaseXP, &t.BonusXP, &t.TotalXP, &created); err != nil {
			return nil, err
		}
		t.Kind = domain.ActivityKind(kind)
		t.CreatedAt = time.Unix(created, 0)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
