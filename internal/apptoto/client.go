// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package apptoto

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/UOSAN/message-automation/internal/breaker"
	"github.com/UOSAN/message-automation/internal/config"
	"github.com/UOSAN/message-automation/internal/logging"
	"github.com/UOSAN/message-automation/internal/metrics"
)

const providerName = "apptoto"

// NewLimiter returns the account-wide limiter: one request per interval, burst 1.
func NewLimiter(interval time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Client talks to the Apptoto v1 API.
//
// Thread Safety: safe for concurrent use. Concurrent callers share the
// limiter and so are serialized at the configured request interval.
type Client struct {
	baseURL     string
	user        string
	token       string
	calendar    string
	calendarID  int64
	batchSize   int
	pageSize    int
	maxEvents   int
	maxAttempts int

	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *breaker.Breaker
	newBackOff func() backoff.BackOff
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBackOff replaces the retry backoff. The function must return a fresh
// BackOff on every call; the attempt cap is applied on top of it.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = fn }
}

// WithBreaker replaces the circuit breaker.
func WithBreaker(b *breaker.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// NewClient creates a client. The limiter is shared account state and must
// be the same instance for every client using the same credentials.
func NewClient(cfg *config.ApptotoConfig, limiter *rate.Limiter, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		user:        cfg.User,
		token:       cfg.APIToken,
		calendar:    cfg.Calendar,
		calendarID:  cfg.CalendarID,
		batchSize:   cfg.BatchSize,
		pageSize:    cfg.PageSize,
		maxEvents:   cfg.MaxEvents,
		maxAttempts: cfg.MaxAttempts,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     limiter,
		newBackOff:  defaultBackOff,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = breaker.New("apptoto-api", breaker.Settings{Ignore: isClientError})
	}
	return c
}

// Breaker returns the circuit breaker guarding the API.
func (c *Client) Breaker() *breaker.Breaker {
	return c.breaker
}

// Calendar is the calendar name new events are posted to.
func (c *Client) Calendar() string {
	return c.calendar
}

// CalendarID is the calendar used to filter fetched events, 0 for all.
func (c *Client) CalendarID() int64 {
	return c.calendarID
}

func defaultBackOff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}

// retryable reports whether a failed call may succeed when repeated:
// transport errors, 429 and 5xx responses. Other 4xx responses are final.
func retryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Temporary()
	}
	return true
}

func isClientError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.StatusCode >= 400 && pe.StatusCode < 500 &&
		pe.StatusCode != http.StatusTooManyRequests
}

// request describes one API call.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   interface{}
}

// do waits on the shared limiter, executes the request through the circuit
// breaker, and decodes a 2xx JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	var payload []byte
	if r.body != nil {
		var err error
		payload, err = json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", r.op, err)
		}
	}

	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("apptoto %s: rate limiter: %w", r.op, err)
	}
	metrics.RecordRateLimitWait(time.Since(waitStart))

	return c.breaker.Execute(func() error {
		return c.send(ctx, r, payload, out)
	})
}

func (c *Client) send(ctx context.Context, r request, payload []byte, out interface{}) error {
	reqURL := c.baseURL + r.path
	if len(r.query) > 0 {
		reqURL += "?" + r.query.Encode()
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", r.op, err)
	}
	req.SetBasicAuth(c.user, c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordProviderRequest(providerName, r.op, 0, time.Since(start))
		return fmt.Errorf("apptoto %s: %w", r.op, err)
	}
	defer resp.Body.Close()
	metrics.RecordProviderRequest(providerName, r.op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProviderError{Op: r.op, StatusCode: resp.StatusCode, Body: readBodyForError(resp.Body)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", r.op, err)
		}
	}
	return nil
}

// withRetry runs fn up to maxAttempts times. Client errors, breaker
// rejections and context cancellation stop immediately.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	attempts := max(c.maxAttempts, 1)
	bo := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(attempts-1)), ctx)

	return backoff.RetryNotify(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !retryable(err) || breaker.IsOpen(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo, func(err error, wait time.Duration) {
		metrics.RecordProviderRetry(providerName, op)
		logging.Ctx(ctx).Warn().Err(err).Str("operation", op).Dur("wait", wait).Msg("Retrying Apptoto request")
	})
}
