// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provider Metrics (Apptoto and REDCap HTTP calls)
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Total number of HTTP requests made to external providers",
		},
		[]string{"provider", "operation", "status_code"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "External provider request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 240},
		},
		[]string{"provider", "operation"},
	)

	ProviderRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_retries_total",
			Help: "Total number of retried provider requests",
		},
		[]string{"provider", "operation"},
	)

	ProviderRateLimitWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "provider_rate_limit_wait_seconds",
			Help:    "Time spent waiting on the shared provider rate limiter",
			Buckets: []float64{0.001, 0.01, 0.1, 0.3, 0.6, 1, 2.5, 5, 10},
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Schedule and Event Metrics
	ScheduledEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_events_total",
			Help: "Total number of events computed by the schedule builder",
		},
		[]string{"phase"},
	)

	EventsPostedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provider_events_posted_total",
			Help: "Total number of events accepted by the messaging provider",
		},
	)

	EventsUpdatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provider_events_updated_total",
			Help: "Total number of events rewritten during reconciliation",
		},
	)

	EventsDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provider_events_deleted_total",
			Help: "Total number of events deleted at the messaging provider",
		},
	)

	ReconcileFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_item_failures_total",
			Help: "Total number of per-item failures inside reconciliation sweeps",
		},
		[]string{"operation"},
	)

	ContactWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_contact_writes_total",
			Help: "Total number of contact create or update calls",
		},
		[]string{"operation"}, // "post_contact", "put_contact"
	)

	// Background Job Metrics
	JobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobs_running",
			Help: "Current number of running background jobs",
		},
	)

	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of completed background jobs",
		},
		[]string{"kind", "status"}, // status: "finished", "error", "cancelled"
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Background job duration in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"kind"},
	)

	// Event Index Metrics
	IndexOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_index_operations_total",
			Help: "Total number of event index operations",
		},
		[]string{"operation", "result"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)
)

// RecordProviderRequest records one provider HTTP call. statusCode is 0
// when the request failed before a response arrived.
func RecordProviderRequest(provider, operation string, statusCode int, duration time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	ProviderRequestsTotal.WithLabelValues(provider, operation, status).Inc()
	ProviderRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordProviderRetry records a retried provider call.
func RecordProviderRetry(provider, operation string) {
	ProviderRetries.WithLabelValues(provider, operation).Inc()
}

// RecordRateLimitWait records time blocked on the shared limiter.
func RecordRateLimitWait(d time.Duration) {
	ProviderRateLimitWait.Observe(d.Seconds())
}

// RecordScheduledEvents records events produced for one protocol phase.
func RecordScheduledEvents(phase string, n int) {
	ScheduledEventsTotal.WithLabelValues(phase).Add(float64(n))
}

// RecordReconcileFailure counts one failed item inside a sweep.
func RecordReconcileFailure(operation string) {
	ReconcileFailures.WithLabelValues(operation).Inc()
}

// RecordJob records a finished background job.
func RecordJob(kind, status string, duration time.Duration) {
	JobsCompleted.WithLabelValues(kind, status).Inc()
	JobDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordIndexOperation records an event index read or write.
func RecordIndexOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	IndexOperations.WithLabelValues(operation, result).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
