// Package metrics defines and registers the custom Prometheus metrics of
// identity-core. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default registry on package init via
// promauto; the /metrics endpoint exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// ── Hydration metrics ─────────────────────────────────────────────────────────

// HydrationDuration measures one repository call from root query to merged
// aggregate.
// Labels:
//   - op: repository operation (e.g. "user.find_by_id")
//   - result: "found", "absent", or "error"
var HydrationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "hydration_duration_seconds",
		Help:      "Duration of aggregate hydration, including fan-out queries.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"op", "result"},
)

// HydrationErrorsTotal counts hydrations that failed and returned no aggregate.
// Label:
//   - code: domain error code (e.g. "STORAGE_FAILURE", "ENTITY_ALREADY_EXISTS")
var HydrationErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hydration_errors_total",
		Help:      "Total number of failed hydrations, by error code.",
	},
	[]string{"op", "code"},
)

// HydrationQueriesTotal counts statements issued by the hydrator.
// Label:
//   - level: "root", "roles", or "permissions"
var HydrationQueriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hydration_queries_total",
		Help:      "Total number of queries issued while hydrating aggregates.",
	},
	[]string{"level"},
)

// ── Event metrics ─────────────────────────────────────────────────────────────

// EventsPublishedTotal counts events delivered to a sink.
// Labels:
//   - type: event type (e.g. "UserLoggedIn")
//   - sink: "mongo", "redis_stream", or "dispatcher"
var EventsPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total number of domain events successfully published.",
	},
	[]string{"type", "sink"},
)

// EventsFailedTotal counts events a sink rejected.
var EventsFailedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_failed_total",
		Help:      "Total number of domain events that failed to publish.",
	},
	[]string{"type", "sink"},
)

// EventsDedupTotal counts deduplication decisions.
// Label:
//   - result: "hit" (duplicate, skipped) or "miss" (new event, published)
var EventsDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dedup_total",
		Help:      "Total number of deduplication checks, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// EventsQueueDepth tracks the current number of events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var EventsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "events_queue_depth",
		Help:      "Current number of events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// ── Auth metrics ──────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials", "inactive", or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)
