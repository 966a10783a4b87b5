package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/levelup-learning/levelup/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestUser(t *testing.T, db *DB, id string) {
	t.Helper()
	if err := db.CreateUser(context.Background(), id, time.Unix(1_700_000_000, 0)); err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}
}

func record(userID, activityID string, state domain.UserProgressionState, achievements ...string) domain.ProgressRecord {
	at := time.Unix(1_700_000_100, 0)
	return domain.ProgressRecord{
		UserID:       userID,
		ActivityID:   activityID,
		StateAfter:   state,
		Achievements: achievements,
		Transaction: domain.XPTransaction{
			ID: "tx-" + activityID, Kind: domain.ActivityVideoWatch,
			BaseXP: 50, BonusXP: 0, TotalXP: 50,
		},
		At: at,
	}
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "state.db")); os.IsNotExist(err) {
		t.Error("state.db should exist")
	}
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	newTestUser(t, db, "alice")
	db.Close()

	db2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer db2.Close()
	u, err := db2.GetUser(context.Background(), "alice")
	if err != nil || u == nil {
		t.Fatalf("GetUser() after reopen = %v, %v", u, err)
	}
}

// ─── Meta ───────────────────────────────────────────────────────────────────

func TestMeta_SetGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if v, _ := db.GetMeta(ctx, "catalog_version"); v != "" {
		t.Errorf("missing key = %q, want empty", v)
	}
	if err := db.SetMeta(ctx, "catalog_version", "2024.1"); err != nil {
		t.Fatalf("SetMeta() error: %v", err)
	}
	if err := db.SetMeta(ctx, "catalog_version", "2025.1"); err != nil {
		t.Fatalf("SetMeta() overwrite error: %v", err)
	}
	if v, _ := db.GetMeta(ctx, "catalog_version"); v != "2025.1" {
		t.Errorf("GetMeta() = %q, want 2025.1", v)
	}
}

// ─── Users ──────────────────────────────────────────────────────────────────

func TestCreateUser_ZeroState(t *testing.T) {
	db := newTestDB(t)
	newTestUser(t, db, "alice")

	u, err := db.GetUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUser() error: %v", err)
	}
	if u == nil {
		t.Fatal("user should exist")
	}
	if u.TotalXP != 0 || u.CurrentStreakDays != 0 || !u.LastActiveAt.IsZero() {
		t.Errorf("new user not zeroed: %+v", u)
	}
}

func TestCreateUser_Duplicate(t *testing.T) {
	db := newTestDB(t)
	newTestUser(t, db, "alice")

	err := db.CreateUser(context.Background(), "alice", time.Now())
	if !errors.Is(err, domain.ErrUserExists) {
		t.Errorf("duplicate CreateUser() = %v, want ErrUserExists", err)
	}
}

func TestGetUser_Unknown(t *testing.T) {
	db := newTestDB(t)
	u, err := db.GetUser(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetUser() error: %v", err)
	}
	if u != nil {
		t.Errorf("unknown user should be nil, got %+v", u)
	}
}

func TestUserCount(t *testing.T) {
	db := newTestDB(t)
	newTestUser(t, db, "a")
	newTestUser(t, db, "b")
	n, err := db.UserCount(context.Background())
	if err != nil || n != 2 {
		t.Errorf("UserCount() = %d, %v; want 2", n, err)
	}
}

// ─── Progress ───────────────────────────────────────────────────────────────

func TestApplyProgress_WritesEverything(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	newTestUser(t, db, "alice")

	last := time.Unix(1_700_000_050, 0)
	state := domain.UserProgressionState{
		TotalXP: 50, CurrentStreakDays: 1, BestStreakDays: 1,
		VideosWatched: 1, TotalStudySeconds: 600, LastActiveAt: last,
	}
	inserted, err := db.ApplyProgress(ctx, record("alice", "act-1", state, "learning_1"))
	if err != nil {
		t.Fatalf("ApplyProgress() error: %v", err)
	}
	if len(inserted) != 1 || inserted[0] != "learning_1" {
		t.Errorf("inserted = %v, want [learning_1]", inserted)
	}

	u, _ := db.GetUser(ctx, "alice")
	if u.TotalXP != 50 || u.VideosWatched != 1 || u.TotalStudySeconds != 600 {
		t.Errorf("state not persisted: %+v", u)
	}
	if !u.LastActiveAt.Equal(last) {
		t.Errorf("last active = %v, want %v", u.LastActiveAt, last)
	}

	txs, err := db.RecentTransactions(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("RecentTransactions() error: %v", err)
	}
	if len(txs) != 1 || txs[0].TotalXP != 50 || txs[0].ActivityID != "act-1" {
		t.Errorf("ledger = %+v", txs)
	}

	unlocked, _ := db.ListUnlockedAchievements(ctx, "alice")
	if len(unlocked) != 1 || unlocked[0].ID != "learning_1" {
		t.Errorf("unlocked = %+v", unlocked)
	}
}

func TestApplyProgress_DuplicateActivity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	newTestUser(t, db, "alice")

	state := domain.UserProgressionState{TotalXP: 50}
	if _, err := db.ApplyProgress(ctx, record("alice", "act-1", state)); err != nil {
		t.Fatalf("first ApplyProgress() error: %v", err)
	}

	replay := domain.UserProgressionState{TotalXP: 100}
	_, err := db.ApplyProgress(ctx, record("alice", "act-1", replay))
	if !errors.Is(err, domain.ErrDuplicateActivity) {
		t.Fatalf("replay = %v, want ErrDuplicateActivity", err)
	}

	u, _ := db.GetUser(ctx, "alice")
	if u.TotalXP != 50 {
		t.Errorf("replay mutated state: total = %d, want 50", u.TotalXP)
	}
	txs, _ := db.RecentTransactions(ctx, "alice", 10)
	if len(txs) != 1 {
		t.Errorf("ledger entries = %d, want 1", len(txs))
	}
}

func TestApplyProgress_UnknownUserRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.ApplyProgress(ctx, record("ghost", "act-1", domain.UserProgressionState{TotalXP: 50}))
	if !errors.Is(err, domain.ErrStateUnavailable) {
		t.Fatalf("ApplyProgress() = %v, want ErrStateUnavailable", err)
	}

	// The activity claim must have been rolled back too.
	newTestUser(t, db, "ghost")
	if _, err := db.ApplyProgress(ctx, record("ghost", "act-1", domain.UserProgressionState{TotalXP: 50})); err != nil {
		t.Errorf("retry after rollback error: %v", err)
	}
}

func TestApplyProgress_AchievementIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	newTestUser(t, db, "alice")

	if _, err := db.ApplyProgress(ctx, record("alice", "a1", domain.UserProgressionState{TotalXP: 50}, "learning_1")); err != nil {
		t.Fatal(err)
	}
	inserted, err := db.ApplyProgress(ctx, record("alice", "a2", domain.UserProgressionState{TotalXP: 100}, "learning_1", "consistency_3"))
	if err != nil {
		t.Fatal(err)
	}
	if len(inserted) != 1 || inserted[0] != "consistency_3" {
		t.Errorf("second unlock inserted = %v, want [consistency_3]", inserted)
	}

	if err := db.MarkAchievementNotified(ctx, "alice", "learning_1"); err != nil {
		t.Fatalf("MarkAchievementNotified() error: %v", err)
	}
	list, _ := db.ListUnlockedAchievements(ctx, "alice")
	if len(list) != 2 {
		t.Fatalf("unlocked count = %d, want 2", len(list))
	}
	for _, a := range list {
		if a.ID == "learning_1" && !a.Notified {
			t.Error("learning_1 should be marked notified")
		}
	}
}

func TestRecentTransactions_NewestFirstAndLimit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	newTestUser(t, db, "alice")

	for i, id := range []string{"a", "b", "c"} {
		rec := record("alice", id, domain.UserProgressionState{TotalXP: int64(50 * (i + 1))})
		rec.At = time.Unix(1_700_000_000+int64(i), 0)
		if _, err := db.ApplyProgress(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	txs, err := db.RecentTransactions(ctx, "alice", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 {
		t.Fatalf("len = %d, want 2", len(txs))
	}
	if txs[0].ActivityID != "c" || txs[1].ActivityID != "b" {
		t.Errorf("order = %s,%s; want c,b", txs[0].ActivityID, txs[1].ActivityID)
	}
}

func TestRecentTransactions_ContentAndReason(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	newTestUser(t, db, "alice")

	rec := record("alice", "watch", domain.UserProgressionState{TotalXP: 50})
	rec.Transaction.Content = domain.ContentRef{CourseID: "go", ModuleID: "m1", VideoID: "v1"}
	if _, err := db.ApplyProgress(ctx, rec); err != nil {
		t.Fatal(err)
	}
	award := record("alice", "award", domain.UserProgressionState{TotalXP: 60})
	award.At = award.At.Add(time.Second)
	award.Transaction.Kind = ""
	award.Transaction.Reason = "Section completed"
	if _, err := db.ApplyProgress(ctx, award); err != nil {
		t.Fatal(err)
	}

	txs, err := db.RecentTransactions(ctx, "alice", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 {
		t.Fatalf("len = %d, want 2", len(txs))
	}
	if txs[0].Reason != "Section completed" || txs[0].Kind != "" {
		t.Errorf("award entry = %+v", txs[0])
	}
	if txs[1].Content != (domain.ContentRef{CourseID: "go", ModuleID: "m1", VideoID: "v1"}) {
		t.Errorf("content = %+v", txs[1].Content)
	}
}

// ─── Modules ────────────────────────────────────────────────────────────────

func watchIn(userID, activityID, moduleID, videoID string, at time.Time) domain.ProgressRecord {
	rec := record(userID, activityID, domain.UserProgressionState{TotalXP: 50})
	rec.At = at
	rec.Transaction.ID = "tx-" + userID + "-" + activityID
	rec.Transaction.Content = domain.ContentRef{ModuleID: moduleID, VideoID: videoID}
	return rec
}

func TestModules_SaveGetReplace(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if m, err := db.GetModule(ctx, "m1"); err != nil || m != nil {
		t.Fatalf("GetModule(unknown) = %v, %v; want nil, nil", m, err)
	}

	m := domain.Module{ID: "m1", CourseID: "go", Title: "Basics", VideoIDs: []string{"v3", "v1", "v2"}}
	if err := db.SaveModule(ctx, m, time.Now()); err != nil {
		t.Fatalf("SaveModule() error: %v", err)
	}
	got, err := db.GetModule(ctx, "m1")
	if err != nil || got == nil {
		t.Fatalf("GetModule() = %v, %v", got, err)
	}
	if got.Title != "Basics" || got.CourseID != "go" {
		t.Errorf("module = %+v", got)
	}
	if len(got.VideoIDs) != 3 || got.VideoIDs[0] != "v3" || got.VideoIDs[2] != "v2" {
		t.Errorf("video order = %v, want [v3 v1 v2]", got.VideoIDs)
	}

	m.Title = "Go Basics"
	m.VideoIDs = []string{"v1"}
	if err := db.SaveModule(ctx, m, time.Now()); err != nil {
		t.Fatalf("SaveModule() replace error: %v", err)
	}
	got, _ = db.GetModule(ctx, "m1")
	if got.Title != "Go Basics" || len(got.VideoIDs) != 1 || got.VideoIDs[0] != "v1" {
		t.Errorf("replaced module = %+v", got)
	}
}

func TestModules_VideoCompletions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	newTestUser(t, db, "alice")
	newTestUser(t, db, "bob")

	m := domain.Module{ID: "m1", VideoIDs: []string{"v1", "v2", "v3"}}
	if err := db.SaveModule(ctx, m, time.Now()); err != nil {
		t.Fatal(err)
	}

	base := time.Unix(1_700_000_000, 0)
	recs := []domain.ProgressRecord{
		watchIn("alice", "a1", "m1", "v2", base),
		watchIn("alice", "a2", "m1", "v1", base.Add(time.Minute)),
		watchIn("alice", "a3", "m1", "v2", base.Add(2*time.Minute)), // rewatch
		watchIn("alice", "a4", "m1", "v9", base.Add(3*time.Minute)), // not in module
		watchIn("alice", "a5", "m2", "v3", base.Add(4*time.Minute)), // other module
		watchIn("bob", "b1", "m1", "v3", base.Add(5*time.Minute)),
	}
	like := watchIn("alice", "a6", "m1", "v3", base.Add(6*time.Minute))
	like.Transaction.Kind = domain.ActivityVideoLike
	recs = append(recs, like)
	for _, rec := range recs {
		if _, err := db.ApplyProgress(ctx, rec); err != nil {
			t.Fatalf("ApplyProgress(%s) error: %v", rec.ActivityID, err)
		}
	}

	got, err := db.ListVideoCompletions(ctx, "alice", "m1")
	if err != nil {
		t.Fatalf("ListVideoCompletions() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("completions = %+v, want v2 and v1", got)
	}
	if got[0].VideoID != "v2" || !got[0].CompletedAt.Equal(base) {
		t.Errorf("first completion = %+v, want v2 at %v", got[0], base)
	}
	if got[1].VideoID != "v1" {
		t.Errorf("second completion = %+v, want v1", got[1])
	}
}

// ─── Notification Inbox ─────────────────────────────────────────────────────

func TestInbox_InsertListMark(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	xp, level := int64(50), 3
	first := domain.NotificationEvent{
		UserID: "alice", Kind: domain.NotifyBaseXP, Title: "Video Watched", AchievementID: "learning_1",
		Description: "You earned base XP for watching this video.", XPAmount: &xp,
		DisplayDuration: 4 * time.Second,
		RenderHint:      domain.RenderHint{Emoji: "📚", ColorClass: "bg-gradient-to-r from-blue-400 to-blue-600"},
	}
	second := domain.NotificationEvent{
		UserID: "alice", Kind: domain.NotifyLevelUp, Title: "Level Up!", Level: &level,
		DisplayDuration: 6 * time.Second,
	}
	other := domain.NotificationEvent{UserID: "bob", Kind: domain.NotifyBaseXP, Title: "x", DisplayDuration: time.Second}

	id1, err := db.InsertNotification(ctx, first, time.Now())
	if err != nil {
		t.Fatalf("InsertNotification() error: %v", err)
	}
	if _, err := db.InsertNotification(ctx, second, time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertNotification(ctx, other, time.Now()); err != nil {
		t.Fatal(err)
	}

	pending, err := db.ListPendingNotifications(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("ListPendingNotifications() error: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	got := pending[0].Event
	if got.Kind != domain.NotifyBaseXP || got.XPAmount == nil || *got.XPAmount != 50 || got.Level != nil {
		t.Errorf("first event round trip = %+v", got)
	}
	if got.AchievementID != "learning_1" {
		t.Errorf("achievement id = %q, want learning_1", got.AchievementID)
	}
	if got.DisplayDuration != 4*time.Second || got.RenderHint.Emoji != "📚" {
		t.Errorf("render fields = %v %q", got.DisplayDuration, got.RenderHint.Emoji)
	}
	if pending[1].Event.Level == nil || *pending[1].Event.Level != 3 {
		t.Errorf("second event level = %v", pending[1].Event.Level)
	}

	if err := db.MarkNotificationShown(ctx, "bob", id1); !errors.Is(err, domain.ErrNotificationNotFound) {
		t.Errorf("foreign mark = %v, want ErrNotificationNotFound", err)
	}
	if err := db.MarkNotificationShown(ctx, "alice", id1); err != nil {
		t.Fatalf("MarkNotificationShown() error: %v", err)
	}
	pending, _ = db.ListPendingNotifications(ctx, "alice", 10)
	if len(pending) != 1 {
		t.Errorf("pending after mark = %d, want 1", len(pending))
	}
}

func TestInbox_Prune(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	ev := domain.NotificationEvent{UserID: "alice", Kind: domain.NotifyBaseXP, Title: "old", DisplayDuration: time.Second}
	id, _ := db.InsertNotification(ctx, ev, old)
	_, _ = db.InsertNotification(ctx, ev, old) // unshown, kept
	_ = db.MarkNotificationShown(ctx, "alice", id)

	n, err := db.PruneNotifications(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneNotifications() error: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}
}
