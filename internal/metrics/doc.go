// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

/*
Package metrics provides Prometheus instrumentation.

Collectors are registered with the default registry through promauto and
exposed by the HTTP server at /metrics.

Metric Families:

  - provider_*: Apptoto and REDCap request counts, latency, retries, limiter waits
  - circuit_breaker_*: state and transitions of the provider circuit breakers
  - scheduled_events_total, provider_events_*: schedule output and provider writes
  - reconcile_item_failures_total: items that failed inside a sweep that kept going
  - jobs_*: background job runner activity
  - event_index_operations_total: badger index reads and writes
  - api_*: HTTP surface requests and rate-limit rejections

Usage:

	start := time.Now()
	resp, err := client.Do(req)
	metrics.RecordProviderRequest("apptoto", "post_events", resp.StatusCode, time.Since(start))
*/
package metrics
