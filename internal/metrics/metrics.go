// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coursereg"

var (
	// EnrollmentOutcomes counts coordinator results by operation and outcome
	// ("enrolled", "waitlisted", "slot_full", ...).
	EnrollmentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrollment_outcomes_total",
		Help:      "Enrollment coordinator results by operation and outcome.",
	}, []string{"operation", "outcome"})

	Promotions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "waitlist_promotions_total",
		Help:      "Waitlisted users moved into a vacated seat.",
	}, []string{"source"})

	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Promotion notifications that could not be dispatched.",
	})

	QueueTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_tasks_total",
		Help:      "Task queue events by task type and result.",
	}, []string{"type", "result"})

	WorkerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "worker_runs_total",
		Help:      "Background job executions by job and result.",
	}, []string{"job", "result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)
