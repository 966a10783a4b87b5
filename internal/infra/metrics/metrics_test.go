package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestProgressionMetrics(t *testing.T) {
	XPAwarded.WithLabelValues("base").Add(50)
	XPAwarded.WithLabelValues("bonus").Add(20)
	ActivitiesCompleted.WithLabelValues("video_watch").Inc()
	ActivitiesRejected.WithLabelValues("duplicate").Inc()
	ActivityLatency.Observe(0.002)
	LevelUps.Inc()
	AchievementsUnlocked.WithLabelValues("learning").Inc()

	names := gatheredNames(t)
	expected := []string{
		"levelup_xp_awarded_total",
		"levelup_activities_completed_total",
		"levelup_activities_rejected_total",
		"levelup_activity_latency_seconds",
		"levelup_level_ups_total",
		"levelup_achievements_unlocked_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestNotificationMetrics(t *testing.T) {
	before := testutil.ToFloat64(NotificationsDelivered.WithLabelValues("level_up"))
	NotificationsDelivered.WithLabelValues("level_up").Inc()
	if got := testutil.ToFloat64(NotificationsDelivered.WithLabelValues("level_up")); got != before+1 {
		t.Errorf("delivered = %v, want %v", got, before+1)
	}

	NotificationQueueDepth.Set(4)
	if got := testutil.ToFloat64(NotificationQueueDepth); got != 4 {
		t.Errorf("depth = %v, want 4", got)
	}

	SinkFailures.WithLabelValues("terminal").Inc()
	if !gatheredNames(t)["levelup_sink_failures_total"] {
		t.Error("levelup_sink_failures_total not found")
	}
}

func TestHealthMetrics(t *testing.T) {
	HealthCheckStatus.WithLabelValues("sqlite").Set(1)
	HTTPRequests.WithLabelValues("/health", "2xx").Inc()

	names := gatheredNames(t)
	for _, name := range []string{"levelup_health_check_status", "levelup_http_requests_total"} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}
