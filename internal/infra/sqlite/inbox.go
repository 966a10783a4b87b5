package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/levelup-learning/levelup/internal/domain"
)

// ─── Notification Inbox ─────────────────────────────────────────────────────

// InsertNotification stores a delivered notification.
func (d *DB) InsertNotification(ctx context.Context, ev domain.NotificationEvent, at time.Time) (int64, error) {
	result, err := d.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, kind, achievement_id, title, body, xp, level, streak, emoji, color_class, duration_ms, created_at, shown)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		ev.UserID, string(ev.Kind), ev.AchievementID, ev.Title, ev.Description,
		nullableInt64(ev.XPAmount), nullableInt(ev.Level), nullableInt(ev.StreakDays),
		ev.RenderHint.Emoji, ev.RenderHint.ColorClass, ev.DisplayDuration.Milliseconds(), at.Unix(),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListPendingNotifications returns unshown notifications in delivery order.
func (d *DB) ListPendingNotifications(ctx context.Context, userID string, limit int) ([]domain.StoredNotification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, kind, achievement_id, title, body, xp, level, streak, emoji, color_class, duration_ms, created_at, shown
		 FROM notifications WHERE user_id = ? AND shown = 0
		 ORDER BY id ASC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StoredNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// MarkNotificationShown acknowledges one notification.
// Returns domain.ErrNotificationNotFound if it does not belong to the user.
func (d *DB) MarkNotificationShown(ctx context.Context, userID string, id int64) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE notifications SET shown = 1 WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", domain.ErrNotificationNotFound, id)
	}
	return nil
}

// PruneNotifications deletes shown notifications created before cutoff.
func (d *DB) PruneNotifications(ctx context.Context, before time.Time) (int64, error) {
	result, err := d.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE shown = 1 AND created_at < ?`, before.Unix(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanNotification(s scanner) (*domain.StoredNotification, error) {
	var n domain.StoredNotification
	var kind string
	var xp, level, streak sql.NullInt64
	var durationMS, created int64
	ev := &n.Event
	if err := s.Scan(&n.ID, &ev.UserID, &kind, &ev.AchievementID, &ev.Title, &ev.Description, &xp, &level, &streak,
		&ev.RenderHint.Emoji, &ev.RenderHint.ColorClass, &durationMS, &created, &n.Shown); err != nil {
		return nil, err
	}
	ev.Kind = domain.NotificationKind(kind)
	ev.DisplayDuration = time.Duration(durationMS) * time.Millisecond
	if xp.Valid {
		v := xp.Int64
		ev.XPAmount = &v
	}
	if level.Valid {
		v := int(level.Int64)
		ev.Level = &v
	}
	if streak.Valid {
		v := int(streak.Int64)
		ev.StreakDays = &v
	}
	n.CreatedAt = time.Unix(created, 0)
	return &n, nil
}
