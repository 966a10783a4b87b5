package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/levelup-learning/levelup/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quiet() Options {
	logger, _ := logtest.NewNullLogger()
	return Options{Logger: logrus.NewEntry(logger)}
}

type fixedBacklog int

func (b fixedBacklog) Len() int { return int(b) }

type brokenPinger struct{}

func (brokenPinger) Ping(context.Context) error { return errors.New("database is locked") }

func statusOf(t *testing.T, c *Checker, name string) Status {
	t.Helper()
	for _, s := range c.Statuses() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("check %q not found", name)
	return Status{}
}

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestNewChecker(t *testing.T) {
	c := NewChecker(newTestDB(t), fixedBacklog(0), t.TempDir(), quiet())
	if len(c.checks) != 3 {
		t.Errorf("checks = %d, want 3", len(c.checks))
	}
	if c.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", c.interval, DefaultInterval)
	}
}

func TestNewChecker_NoQueue(t *testing.T) {
	c := NewChecker(newTestDB(t), nil, t.TempDir(), quiet())
	if len(c.checks) != 2 {
		t.Errorf("checks = %d, want 2 without a queue", len(c.checks))
	}
}

func TestChecker_RunAllHealthy(t *testing.T) {
	c := NewChecker(newTestDB(t), fixedBacklog(3), t.TempDir(), quiet())
	c.RunOnce(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 3 {
		t.Fatalf("Statuses() = %d, want 3", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	c := NewChecker(newTestDB(t), nil, t.TempDir(), quiet())

	// No statuses yet, so vacuously healthy.
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run")
	}
}

func TestChecker_SQLiteFailure(t *testing.T) {
	c := NewChecker(brokenPinger{}, nil, t.TempDir(), quiet())
	c.RunOnce(context.Background())

	s := statusOf(t, c, "sqlite")
	if s.Healthy {
		t.Error("sqlite check should fail")
	}
	if s.Error != "database is locked" {
		t.Errorf("error = %q", s.Error)
	}
	if c.IsHealthy() {
		t.Error("IsHealthy() should be false")
	}
}

func TestChecker_BacklogOverLimit(t *testing.T) {
	opts := quiet()
	opts.MaxBacklog = 10
	c := NewChecker(newTestDB(t), fixedBacklog(11), t.TempDir(), opts)
	c.RunOnce(context.Background())

	if statusOf(t, c, "notification_backlog").Healthy {
		t.Error("backlog over limit should be unhealthy")
	}
}

func TestChecker_DataDirRecovers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	c := NewChecker(newTestDB(t), nil, dir, quiet())

	c.RunOnce(context.Background())
	if statusOf(t, c, "data_dir").Healthy {
		t.Error("missing data dir should fail the first run")
	}

	// Recovery created the directory.
	c.RunOnce(context.Background())
	if !statusOf(t, c, "data_dir").Healthy {
		t.Error("data dir should be healthy after recovery")
	}
}

func TestChecker_DataDirIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	if err := os.WriteFile(path, []byte("not a dir"), 0644); err != nil {
		t.Fatal(err)
	}
	c := NewChecker(newTestDB(t), nil, path, quiet())
	c.RunOnce(context.Background())

	if statusOf(t, c, "data_dir").Healthy {
		t.Error("data_dir should fail when path is a file")
	}
}

func TestChecker_CustomCheck(t *testing.T) {
	c := &Checker{log: quiet().Logger}
	c.Add(Check{
		Name:    "always_pass",
		CheckFn: func(ctx context.Context) error { return nil },
	})
	c.RunOnce(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 1 {
		t.Fatalf("statuses = %d, want 1", len(statuses))
	}
	if !statuses[0].Healthy {
		t.Error("always_pass check should be healthy")
	}
}

func TestChecker_RecoverCalledOnFailure(t *testing.T) {
	recovered := false
	c := &Checker{log: quiet().Logger}
	c.Add(Check{
		Name:      "always_fail",
		CheckFn:   func(ctx context.Context) error { return os.ErrPermission },
		RecoverFn: func(ctx context.Context) error { recovered = true; return nil },
	})
	c.RunOnce(context.Background())

	statuses := c.Statuses()
	if statuses[0].Healthy {
		t.Error("always_fail check should not be healthy")
	}
	if statuses[0].Error == "" {
		t.Error("failing check should have error message")
	}
	if !recovered {
		t.Error("RecoverFn should run after a failure")
	}
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	c := NewChecker(newTestDB(t), nil, t.TempDir(), quiet())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Run(ctx); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
	if len(c.Statuses()) != 2 {
		t.Error("Run should execute the checks once before waiting")
	}
}
