// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

/*
Package apptoto is the client for the Apptoto messaging and calendar API.

Every request passes through three layers, outermost first:

  - Rate limiter: a *rate.Limiter shared by every client on the account
    (one call per RequestInterval, burst 1). It is injected, so several
    clients or workers can share one account-wide budget.
  - Circuit breaker: sony/gobreaker, opening after 60% failures over at
    least 10 requests. Client errors (4xx) do not count as failures.
  - Metrics: provider_requests_total and provider_request_duration_seconds.

Retry policy:

  - GetEvents retries each page up to MaxAttempts times
  - PutEvents retries each batch up to MaxAttempts times
  - PostEvents, DeleteEvent and the contact calls are single-shot

Retries use cenkalti/backoff. Tests inject a zero backoff with WithBackOff.

Non-2xx responses are returned as *ProviderError carrying the operation,
status code and a bounded copy of the body.
*/
package apptoto
