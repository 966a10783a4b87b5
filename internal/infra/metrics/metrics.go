// Package metrics provides Prometheus metrics for LevelUp.
// Counters and gauges for XP, activities, achievements, the notification
// queue and health checks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Progression ────────────────────────────────────────────────────────────

// XPAwarded tracks total XP credited, split into base and bonus.
var XPAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "levelup",
	Name:      "xp_awarded_total",
	Help:      "Total XP credited to learners.",
}, []string{"part"})

// ActivitiesCompleted tracks recorded activities by kind.
var ActivitiesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "levelup",
	Name:      "activities_completed_total",
	Help:      "Total activities recorded.",
}, []string{"kind"})

// ActivitiesRejected tracks activities refused by validation or dedupe.
var ActivitiesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "levelup",
	Name:      "activities_rejected_total",
	Help:      "Total activities rejected.",
}, []string{"reason"})

// ActivityLatency tracks load-compute-persist time for one activity.
var ActivityLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "levelup",
	Name:      "activity_latency_seconds",
	Help:      "Time to record one activity.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
})

// LevelUps tracks level transitions.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "levelup",
	Name:      "level_ups_total",
	Help:      "Total level-up transitions.",
})

// AchievementsUnlocked tracks unlocks by category.
var AchievementsUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "levelup",
	Name:      "achievements_unlocked_total",
	Help:      "Total achievements unlocked.",
}, []string{"category"})

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationsDelivered tracks events handed to the sink.
var NotificationsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "levelup",
	Name:      "notifications_delivered_total",
	Help:      "Total notifications delivered to the sink.",
}, []string{"kind"})

// NotificationQueueDepth tracks events waiting to be delivered.
var NotificationQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "levelup",
	Name:      "notification_queue_depth",
	Help:      "Notifications waiting for delivery.",
})

// SinkFailures tracks sink errors and panics.
var SinkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "levelup",
	Name:      "sink_failures_total",
	Help:      "Total notification sink failures.",
}, []string{"sink"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "levelup",
	Name:      "health_check_status",
	Help:      "Health check status (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HTTPRequests tracks API requests by route and status class.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "levelup",
	Name:      "http_requests_total",
	Help:      "Total HTTP requests served.",
}, []string{"route", "code"})
