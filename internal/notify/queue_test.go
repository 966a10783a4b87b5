package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levelup-learning/levelup/internal/domain"
)

const testSpacing = 40 * time.Millisecond

// jitter covers the time between dispatch and the recorder's clock read
// on the render goroutine.
const jitter = 10 * time.Millisecond

func quietLogger() *logrus.Entry {
	l, _ := logtest.NewNullLogger()
	return logrus.NewEntry(l)
}

func event(kind domain.NotificationKind, title string) domain.NotificationEvent {
	return domain.NotificationEvent{Kind: kind, Title: title, DisplayDuration: 4 * time.Second}
}

func waitIdle(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.WaitIdle(ctx))
}

func titles(ds []Delivery) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Event.Title
	}
	return out
}

func TestQueue_DeliversInOrderWithSpacing(t *testing.T) {
	rec := &Recorder{}
	q := NewQueue(rec, Config{Spacing: testSpacing, Logger: quietLogger()})
	require.True(t, q.Idle())

	for i := 0; i < 5; i++ {
		q.Enqueue(event(domain.NotifyBaseXP, fmt.Sprintf("n%d", i)))
	}
	assert.False(t, q.Idle())

	waitIdle(t, q)
	require.Eventually(t, func() bool { return len(rec.Deliveries()) == 5 }, time.Second, 5*time.Millisecond)

	ds := rec.Deliveries()
	assert.Equal(t, []string{"n0", "n1", "n2", "n3", "n4"}, titles(ds))
	for i := 1; i < len(ds); i++ {
		gap := ds[i].At.Sub(ds[i-1].At)
		assert.GreaterOrEqual(t, gap, testSpacing-jitter, "gap %d", i)
	}
	assert.True(t, q.Idle())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, int64(5), q.Stats().Delivered)
}

func TestQueue_IdleOnlyAfterLastDelivery(t *testing.T) {
	rec := &Recorder{}
	q := NewQueue(rec, Config{Spacing: testSpacing, Logger: quietLogger()})

	q.EnqueueBatch([]domain.NotificationEvent{
		event(domain.NotifyBaseXP, "a"),
		event(domain.NotifyLevelUp, "b"),
	})
	start := time.Now()
	waitIdle(t, q)

	// Two deliveries, each followed by the spacing.
	assert.GreaterOrEqual(t, time.Since(start), 2*testSpacing-jitter)
	assert.Len(t, rec.Deliveries(), 2)
}

func TestQueue_EnqueueDuringDrainAppends(t *testing.T) {
	rec := &Recorder{}
	q := NewQueue(rec, Config{Spacing: testSpacing, Logger: quietLogger()})

	q.EnqueueBatch([]domain.NotificationEvent{event(domain.NotifyBaseXP, "first"), event(domain.NotifyBonusXP, "second")})
	require.Eventually(t, func() bool { return len(rec.Deliveries()) >= 1 }, time.Second, time.Millisecond)
	require.False(t, q.Idle())
	q.Enqueue(event(domain.NotifyLevelUp, "third"))

	waitIdle(t, q)
	require.Eventually(t, func() bool { return len(rec.Deliveries()) == 3 }, time.Second, 5*time.Millisecond)
	ds := rec.Deliveries()
	assert.Equal(t, []string{"first", "second", "third"}, titles(ds))
	for i := 1; i < len(ds); i++ {
		assert.GreaterOrEqual(t, ds[i].At.Sub(ds[i-1].At), testSpacing-jitter)
	}
}

func TestQueue_SlowSinkDoesNotStretchSpacing(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var seen []string
	sink := SinkFunc(func(_ context.Context, ev domain.NotificationEvent) error {
		if ev.Title == "slow" {
			<-release
		}
		mu.Lock()
		seen = append(seen, ev.Title)
		mu.Unlock()
		return nil
	})
	q := NewQueue(sink, Config{Spacing: testSpacing, Logger: quietLogger()})

	start := time.Now()
	q.EnqueueBatch([]domain.NotificationEvent{
		event(domain.NotifyBaseXP, "slow"),
		event(domain.NotifyBonusXP, "second"),
		event(domain.NotifyLevelUp, "third"),
	})

	// All three are dispatched on the spacing alone while the first render
	// is still blocked.
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, time.Millisecond)
	assert.Less(t, time.Since(start), 2*testSpacing+50*time.Millisecond)
	assert.Equal(t, int64(3), q.Stats().Delivered)
	assert.False(t, q.Idle(), "idle before the blocked render finished")

	close(release)
	waitIdle(t, q)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"slow", "second", "third"}, seen)
	assert.Equal(t, 0, q.Stats().Rendering)
}

func TestQueue_SpacingMeasuredFromDispatch(t *testing.T) {
	const spacing = 50 * time.Millisecond
	var mu sync.Mutex
	var renderedAt []time.Time
	sink := SinkFunc(func(context.Context, domain.NotificationEvent) error {
		mu.Lock()
		renderedAt = append(renderedAt, time.Now())
		mu.Unlock()
		time.Sleep(5 * spacing)
		return nil
	})
	q := NewQueue(sink, Config{Spacing: spacing, Logger: quietLogger()})

	q.EnqueueBatch([]domain.NotificationEvent{event(domain.NotifyBaseXP, "a"), event(domain.NotifyBaseXP, "b")})
	start := time.Now()
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, time.Millisecond)
	assert.Less(t, time.Since(start), 3*spacing, "drain waited on the sink")

	waitIdle(t, q)
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, renderedAt, 2)
}

func TestQueue_BatchesStayContiguous(t *testing.T) {
	rec := &Recorder{}
	q := NewQueue(rec, Config{Spacing: time.Millisecond, Logger: quietLogger()})

	const batches, perBatch = 6, 4
	var wg sync.WaitGroup
	for b := 0; b < batches; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			events := make([]domain.NotificationEvent, perBatch)
			for i := range events {
				events[i] = event(domain.NotifyBaseXP, fmt.Sprintf("%d-%d", b, i))
			}
			q.EnqueueBatch(events)
		}(b)
	}
	wg.Wait()
	waitIdle(t, q)
	require.Eventually(t, func() bool { return len(rec.Deliveries()) == batches*perBatch }, time.Second, 5*time.Millisecond)

	got := titles(rec.Deliveries())
	for i := 0; i < len(got); i += perBatch {
		batch, _, _ := strings.Cut(got[i], "-")
		for j := 0; j < perBatch; j++ {
			assert.Equal(t, fmt.Sprintf("%s-%d", batch, j), got[i+j])
		}
	}
}

func TestQueue_SinkFailuresDoNotStopDrain(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	sink := SinkFunc(func(_ context.Context, ev domain.NotificationEvent) error {
		mu.Lock()
		seen = append(seen, ev.Title)
		mu.Unlock()
		switch ev.Title {
		case "panic":
			panic("boom")
		case "error":
			return errors.New("render failed")
		}
		return nil
	})
	q := NewQueue(sink, Config{Spacing: 5 * time.Millisecond, Logger: quietLogger()})

	q.EnqueueBatch([]domain.NotificationEvent{
		event(domain.NotifyBaseXP, "panic"),
		event(domain.NotifyBaseXP, "error"),
		event(domain.NotifyBaseXP, "ok"),
	})
	waitIdle(t, q)

	require.Eventually(t, func() bool { return q.Stats().Failures == 2 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"panic", "error", "ok"}, seen)
}

type failingPlayer struct {
	mu    sync.Mutex
	calls int
}

func (p *failingPlayer) Play(context.Context, []Note) error {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return errors.New("no audio device")
}

func (p *failingPlayer) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestQueue_SoundFailureIsNonFatal(t *testing.T) {
	rec := &Recorder{}
	player := &failingPlayer{}
	q := NewQueue(rec, Config{Spacing: 5 * time.Millisecond, Sound: player, Logger: quietLogger()})

	q.Enqueue(event(domain.NotifyLevelUp, "level"))
	waitIdle(t, q)

	assert.Len(t, rec.Deliveries(), 1)
	require.Eventually(t, func() bool { return player.Calls() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int64(0), q.Stats().Failures)
}

func TestQueue_WaitIdleHonoursContext(t *testing.T) {
	q := NewQueue(&Recorder{}, Config{Spacing: 200 * time.Millisecond, Logger: quietLogger()})
	q.EnqueueBatch([]domain.NotificationEvent{event(domain.NotifyBaseXP, "a"), event(domain.NotifyBaseXP, "b")})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.WaitIdle(ctx), context.DeadlineExceeded)
	waitIdle(t, q)
}

func TestQueue_EmptyBatchIsNoop(t *testing.T) {
	q := NewQueue(&Recorder{}, Config{Logger: quietLogger()})
	q.EnqueueBatch(nil)
	assert.True(t, q.Idle())
}

// ─── Sound ──────────────────────────────────────────────────────────────────

func TestSoundFor(t *testing.T) {
	notes := SoundFor(domain.NotifyLevelUp)
	require.Len(t, notes, 4)
	want := []int{523, 659, 784, 1047}
	for i, n := range notes {
		assert.Equal(t, want[i], n.FrequencyHz)
		assert.Equal(t, time.Duration(i)*NoteGap, n.Offset)
	}

	fallback := SoundFor(domain.NotifyTimeBonus)
	require.Len(t, fallback, 2)
	assert.Equal(t, 523, fallback[0].FrequencyHz)
	assert.Equal(t, 659, fallback[1].FrequencyHz)
}

func TestBellPlayer(t *testing.T) {
	var buf bytes.Buffer
	p := NewBellPlayer(&buf)
	notes := []Note{{FrequencyHz: 440}, {FrequencyHz: 554, Offset: time.Millisecond}}
	require.NoError(t, p.Play(context.Background(), notes))
	assert.Equal(t, "\a\a", buf.String())
}

// ─── Sinks ──────────────────────────────────────────────────────────────────

type memInbox struct {
	mu       sync.Mutex
	events   []domain.NotificationEvent
	notified []string
	err      error
}

func (m *memInbox) InsertNotification(_ context.Context, ev domain.NotificationEvent, _ time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.events = append(m.events, ev)
	return int64(len(m.events)), nil
}

func (m *memInbox) ListPendingNotifications(context.Context, string, int) ([]domain.StoredNotification, error) {
	return nil, nil
}

func (m *memInbox) MarkNotificationShown(context.Context, string, int64) error { return nil }

func (m *memInbox) MarkAchievementNotified(_ context.Context, userID, achievementID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = append(m.notified, userID+"/"+achievementID)
	return nil
}

func TestInboxSink(t *testing.T) {
	inbox := &memInbox{}
	sink := NewInboxSink(inbox)

	anon := event(domain.NotifyBaseXP, "nobody")
	require.NoError(t, sink.Render(context.Background(), anon))
	assert.Empty(t, inbox.events)

	addressed := event(domain.NotifyBaseXP, "alice")
	addressed.UserID = "alice"
	require.NoError(t, sink.Render(context.Background(), addressed))
	require.Len(t, inbox.events, 1)
	assert.Equal(t, "alice", inbox.events[0].UserID)

	assert.Empty(t, inbox.notified, "only achievement events mark unlocks")

	unlock := event(domain.NotifyAchievement, "Achievement Unlocked!")
	unlock.UserID = "alice"
	unlock.AchievementID = "learning_1"
	require.NoError(t, sink.Render(context.Background(), unlock))
	assert.Equal(t, []string{"alice/learning_1"}, inbox.notified)

	inbox.err = errors.New("disk full")
	assert.Error(t, sink.Render(context.Background(), addressed))
}

func TestMultiSink_RendersAllAndJoinsErrors(t *testing.T) {
	rec := &Recorder{}
	bad := SinkFunc(func(context.Context, domain.NotificationEvent) error { return domain.ErrSinkUnavailable })
	m := MultiSink{bad, rec}

	err := m.Render(context.Background(), event(domain.NotifyBaseXP, "x"))
	assert.ErrorIs(t, err, domain.ErrSinkUnavailable)
	assert.Len(t, rec.Deliveries(), 1)
}

func TestLogSink(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	sink := NewLogSink(logrus.NewEntry(logger))

	xp := int64(50)
	ev := event(domain.NotifyBaseXP, "Video Watched")
	ev.Description = "You earned base XP for watching this video."
	ev.XPAmount = &xp
	ev.UserID = "u1"
	require.NoError(t, sink.Render(context.Background(), ev))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, ev.Description, entry.Message)
	assert.Equal(t, int64(50), entry.Data["xp"])
	assert.Equal(t, "u1", entry.Data["user_id"])
}

func TestTerminalSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewTerminalSink(&buf)

	level := 5
	ev := event(domain.NotifyLevelUp, "Level Up!")
	ev.Description = "Congratulations! You've reached Level 5!"
	ev.Level = &level
	ev.RenderHint = domain.RenderHint{Emoji: "🎊", ColorClass: "bg-gradient-to-r from-purple-500 to-pink-600"}
	require.NoError(t, sink.Render(context.Background(), ev))

	out := buf.String()
	assert.Contains(t, out, "Level Up!")
	assert.Contains(t, out, "Level 5")
}

func TestColorFor(t *testing.T) {
	assert.Equal(t, palette["purple"], ColorFor("bg-gradient-to-r from-purple-500 to-pink-600"))
	assert.Equal(t, palette["emerald"], ColorFor("bg-gradient-to-r from-emerald-400 to-green-600"))
	assert.Equal(t, defaultColor, ColorFor(""))
	assert.Equal(t, defaultColor, ColorFor("from-chartreuse-100"))
}
