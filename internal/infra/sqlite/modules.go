package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/levelup-learning/levelup/internal/domain"
)

// ─── Modules ────────────────────────────────────────────────────────────────

// SaveModule upserts a module and replaces its video list in order.
func (d *DB) SaveModule(ctx context.Context, m domain.Module, at time.Time) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO modules (id, course_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET course_id=excluded.course_id, title=excluded.title, updated_at=excluded.updated_at`,
		m.ID, m.CourseID, m.Title, at.Unix(), at.Unix(),
	); err != nil {
		return fmt.Errorf("upsert module: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM module_videos WHERE module_id = ?`, m.ID); err != nil {
		return fmt.Errorf("clear videos: %w", err)
	}
	for i, v := range m.VideoIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO module_videos (module_id, video_id, position) VALUES (?, ?, ?)`,
			m.ID, v, i,
		); err != nil {
			return fmt.Errorf("add video %s: %w", v, err)
		}
	}
	return tx.Commit()
}

// GetModule returns the module with its videos in order, or nil if the id
// is unknown.
func (d *DB) GetModule(ctx context.Context, moduleID string) (*domain.Module, error) {
	m := domain.Module{ID: moduleID}
	err := d.db.QueryRowContext(ctx,
		`SELECT course_id, title FROM modules WHERE id = ?`, moduleID,
	).Scan(&m.CourseID, &m.Title)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT video_id FROM module_videos WHERE module_id = ? ORDER BY position`, moduleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m.VideoIDs = []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		m.VideoIDs = append(m.VideoIDs, v)
	}
	return &m, rows.Err()
}

// ListVideoCompletions returns the module's videos the user has watched,
// each with its first watch time. Watches of videos no longer in the
// module do not count.
func (d *DB) ListVideoCompletions(ctx context.Context, userID, moduleID string) ([]domain.VideoCompletion, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT t.video_id, MIN(t.created_at) AS first_at
		 FROM xp_transactions t
		 JOIN module_videos v ON v.module_id = t.module_id AND v.video_id = t.video_id
		 WHERE t.user_id = ? AND t.module_id = ? AND t.kind = ?
		 GROUP BY t.video_id
		 ORDER BY first_at, t.video_id`,
		userID, moduleID, string(domain.ActivityVideoWatch),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.VideoCompletion
	for rows.Next() {
		var c domain.VideoCompletion
		var at int64
		if err := rows.Scan(&c.VideoID, &at); err != nil {
			return nil, err
		}
		c.CompletedAt = time.Unix(at, 0)
		out = append(out, c)
	}
	return out, rows.Err()
}
