// Package sqlite provides SQLite-based persistent storage for LevelUp.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
// It implements domain.ProgressStore, domain.ModuleStore and
// domain.NotificationInbox.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Aggregate progression counters, one row per learner
		`CREATE TABLE IF NOT EXISTS users (
			id                       TEXT PRIMARY KEY,
			total_xp                 INTEGER NOT NULL DEFAULT 0,
			current_streak_days      INTEGER NOT NULL DEFAULT 0,
			best_streak_days         INTEGER NOT NULL DEFAULT 0,
			videos_watched           INTEGER NOT NULL DEFAULT 0,
			total_study_seconds      INTEGER NOT NULL DEFAULT 0,
			social_interaction_count INTEGER NOT NULL DEFAULT 0,
			last_active              INTEGER,
			created_at               INTEGER NOT NULL,
			updated_at               INTEGER NOT NULL
		)`,

		// Unlocked achievements; the primary key makes unlocks idempotent
		`CREATE TABLE IF NOT EXISTS user_achievements (
			user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			achievement_id TEXT NOT NULL,
			unlocked_at    INTEGER NOT NULL,
			notified       BOOLEAN DEFAULT 0,
			PRIMARY KEY (user_id, achievement_id)
		)`,

		// XP ledger
		`CREATE TABLE IF NOT EXISTS xp_transactions (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			activity_id TEXT NOT NULL,
			kind        TEXT NOT NULL DEFAULT '',
			reason      TEXT NOT NULL DEFAULT '',
			course_id   TEXT NOT NULL DEFAULT '',
			module_id   TEXT NOT NULL DEFAULT '',
			video_id    TEXT NOT NULL DEFAULT '',
			base_xp     INTEGER NOT NULL,
			bonus_xp    INTEGER NOT NULL,
			total_xp    INTEGER NOT NULL,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_user_created ON xp_transactions(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_user_module ON xp_transactions(user_id, module_id)`,

		// Course structure activities are tracked against
		`CREATE TABLE IF NOT EXISTS modules (
			id         TEXT PRIMARY KEY,
			course_id  TEXT NOT NULL DEFAULT '',
			title      TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS module_videos (
			module_id TEXT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
			video_id  TEXT NOT NULL,
			position  INTEGER NOT NULL,
			PRIMARY KEY (module_id, video_id)
		)`,

		// Idempotency keys for submitted activities
		`CREATE TABLE IF NOT EXISTS processed_activities (
			user_id      TEXT NOT NULL,
			activity_id  TEXT NOT NULL,
			processed_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, activity_id)
		)`,

		// Delivered notifications, polled by clients
		`CREATE TABLE IF NOT EXISTS notifications (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id        TEXT NOT NULL,
			kind           TEXT NOT NULL,
			achievement_id TEXT NOT NULL DEFAULT '',
			title          TEXT NOT NULL,
			body           TEXT NOT NULL,
			xp             INTEGER,
			level          INTEGER,
			streak         INTEGER,
			emoji          TEXT NOT NULL DEFAULT '',
			color_class    TEXT NOT NULL DEFAULT '',
			duration_ms    INTEGER NOT NULL,
			created_at     INTEGER NOT NULL,
			shown          BOOLEAN DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_user_shown ON notifications(user_id, shown)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_created ON notifications(created_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Meta ───────────────────────────────────────────────────────────────────

// SetMeta stores a key-value pair (catalog version, schema notes).
func (d *DB) SetMeta(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	return err
}

// GetMeta retrieves a value by key. Returns "" if key not found.
func (d *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// ─── Helpers ────────────────────────────────────────────────────────────────

type scanner interface {
	Scan(dest ...any) error
}

func nullableUnix(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

func fromNullableUnix(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0)
}

func nullableInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
