package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/levelup-learning/levelup/internal/domain"
)

// Sink renders one notification. The queue does not wait for it beyond
// the call; errors are logged and dropped.
type Sink interface {
	Render(ctx context.Context, ev domain.NotificationEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev domain.NotificationEvent) error

// Render calls f.
func (f SinkFunc) Render(ctx context.Context, ev domain.NotificationEvent) error {
	return f(ctx, ev)
}

// named is implemented by sinks that label their failure metrics.
type named interface {
	Name() string
}

func sinkName(s Sink) string {
	if n, ok := s.(named); ok {
		return n.Name()
	}
	return "custom"
}

// ─── Log sink ───────────────────────────────────────────────────────────────

// LogSink writes each notification as a structured log line.
type LogSink struct {
	log *logrus.Entry
}

// NewLogSink creates a log sink.
func NewLogSink(log *logrus.Entry) *LogSink {
	return &LogSink{log: log.WithField("component", "notify.log")}
}

// Name implements named.
func (s *LogSink) Name() string { return "log" }

// Render logs ev.
func (s *LogSink) Render(_ context.Context, ev domain.NotificationEvent) error {
	fields := logrus.Fields{
		"kind":     ev.Kind,
		"title":    ev.Title,
		"duration": ev.DisplayDuration.String(),
	}
	if ev.UserID != "" {
		fields["user_id"] = ev.UserID
	}
	if ev.AchievementID != "" {
		fields["achievement_id"] = ev.AchievementID
	}
	if ev.XPAmount != nil {
		fields["xp"] = *ev.XPAmount
	}
	if ev.Level != nil {
		fields["level"] = *ev.Level
	}
	if ev.StreakDays != nil {
		fields["streak"] = *ev.StreakDays
	}
	s.log.WithFields(fields).Info(ev.Description)
	return nil
}

// ─── Inbox sink ─────────────────────────────────────────────────────────────

// InboxSink stores delivered notifications so clients can poll them.
type InboxSink struct {
	inbox domain.NotificationInbox
	now   func() time.Time
}

// NewInboxSink creates an inbox sink over a store.
func NewInboxSink(inbox domain.NotificationInbox) *InboxSink {
	return &InboxSink{inbox: inbox, now: time.Now}
}

// Name implements named.
func (s *InboxSink) Name() string { return "inbox" }

// Render persists ev. Events without a user id have no inbox and are
// skipped. An achievement_unlocked event also marks its unlock notified.
func (s *InboxSink) Render(ctx context.Context, ev domain.NotificationEvent) error {
	if ev.UserID == "" {
		return nil
	}
	if _, err := s.inbox.InsertNotification(ctx, ev, s.now()); err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	if ev.Kind == domain.NotifyAchievement && ev.AchievementID != "" {
		if err := s.inbox.MarkAchievementNotified(ctx, ev.UserID, ev.AchievementID); err != nil {
			return fmt.Errorf("mark %s notified: %w", ev.AchievementID, err)
		}
	}
	return nil
}

// ─── Fan-out ────────────────────────────────────────────────────────────────

// MultiSink renders to every sink in order. One failing sink does not
// stop the others.
type MultiSink []Sink

// Name implements named.
func (m MultiSink) Name() string { return "multi" }

// Render renders ev on each sink and joins their errors.
func (m MultiSink) Render(ctx context.Context, ev domain.NotificationEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Render(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sinkName(s), err))
		}
	}
	return errors.Join(errs...)
}

// ─── Recorder ───────────────────────────────────────────────────────────────

// Delivery is one recorded render.
type Delivery struct {
	Event domain.NotificationEvent
	At    time.Time
}

// Recorder keeps every rendered event with its timestamp. Used by the
// simulate command and tests.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
}

// Name implements named.
func (r *Recorder) Name() string { return "recorder" }

// Render records ev.
func (r *Recorder) Render(_ context.Context, ev domain.NotificationEvent) error {
	r.mu.Lock()
	r.deliveries = append(r.deliveries, Delivery{Event: ev, At: time.Now()})
	r.mu.Unlock()
	return nil
}

// Deliveries returns a copy of what was recorded so far.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}
