// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transactionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventify_transactions_created_total",
			Help: "Purchase attempts by outcome",
		},
		[]string{"outcome"},
	)

	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventify_transaction_transitions_total",
			Help: "Applied transaction state transitions",
		},
		[]string{"event", "from", "to"},
	)

	jobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventify_job_runs_total",
			Help: "Background job invocations by outcome (ran, skipped, failed)",
		},
		[]string{"job", "outcome"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventify_job_duration_seconds",
			Help:    "Duration of background job runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"job"},
	)

	sweepRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventify_sweep_records_total",
			Help: "Records visited by sweeps by result",
		},
		[]string{"job", "result"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventify_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	notificationsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventify_notifications_failed_total",
			Help: "Notifications that could not be delivered",
		},
		[]string{"channel"},
	)
)

func ObserveCreate(outcome string) {
	transactionsCreated.WithLabelValues(outcome).Inc()
}

func ObserveTransition(event, from, to string) {
	transitions.WithLabelValues(event, from, to).Inc()
}

func ObserveJobRun(job, outcome string, took time.Duration) {
	jobRuns.WithLabelValues(job, outcome).Inc()
	if outcome != "skipped" {
		jobDuration.WithLabelValues(job).Observe(took.Seconds())
	}
}

func ObserveSweepRecord(job, result string) {
	sweepRecords.WithLabelValues(job, result).Inc()
}

func ObserveHTTP(method, route, status string, took time.Duration) {
	httpDuration.WithLabelValues(method, route, status).Observe(took.Seconds())
}

func ObserveNotificationFailure(channel string) {
	notificationsDropped.WithLabelValues(channel).Inc()
}
