// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package redcap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/UOSAN/message-automation/internal/breaker"
	"github.com/UOSAN/message-automation/internal/config"
	"github.com/UOSAN/message-automation/internal/logging"
	"github.com/UOSAN/message-automation/internal/metrics"
	"github.com/UOSAN/message-automation/internal/models"
)

const (
	providerName = "redcap"

	eventSession0 = "session_0_arm_1"
	eventSession1 = "session_1_arm_1"
	eventSession2 = "session_2_arm_1"

	maxErrorBodySize = 64 * 1024
)

var (
	session0Fields = []string{
		"ash_id", "phone", "email", "value1_s0", "value2_s0", "value7_s0",
		"initials", "quitdate", "date_s0", "waketime", "sleeptime", "timezone",
	}
	session1Fields = []string{"ash_id", "condition", "date_s1"}
	session2Fields = []string{"ash_id", "date_s2"}
)

// Client exports participant records from one REDCap project.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
	breaker    *breaker.Breaker
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBreaker replaces the circuit breaker.
func WithBreaker(b *breaker.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// NewClient creates a REDCap client.
func NewClient(cfg *config.REDCapConfig, opts ...Option) *Client {
	c := &Client{
		url:        cfg.URL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = breaker.New("redcap-api", breaker.Settings{})
	}
	return c
}

// Breaker returns the circuit breaker guarding the API.
func (c *Client) Breaker() *breaker.Breaker {
	return c.breaker
}

// record is one exported REDCap row. REDCap exports every value as a string.
type record map[string]string

// GetParticipant assembles the participant's record from the session events.
func (c *Client) GetParticipant(ctx context.Context, id string) (*models.ParticipantRecord, error) {
	s0, err := c.export(ctx, eventSession0, session0Fields, "Session 0 data", id)
	if err != nil {
		return nil, err
	}
	if s0 == nil {
		return nil, &NotFoundError{Participant: id}
	}

	rec := &models.ParticipantRecord{
		ID:       id,
		Phone:    strings.TrimSpace(s0["phone"]),
		Email:    strings.TrimSpace(s0["email"]),
		Initials: strings.TrimSpace(s0["initials"]),
	}
	p := parser{participant: id}
	rec.TimeZone = p.timeZone("timezone", s0["timezone"])
	rec.WakeTime = p.clock("waketime", s0["waketime"])
	rec.SleepTime = p.clock("sleeptime", s0["sleeptime"])
	rec.QuitDate = p.date("quitdate", s0["quitdate"])
	rec.Session0Date = p.date("date_s0", s0["date_s0"])
	rec.MessageValues = p.values(s0, "value1_s0", "value2_s0")
	rec.TaskValues = p.values(s0, "value1_s0", "value7_s0")

	s1, err := c.export(ctx, eventSession1, session1Fields, "Session 1 data", id)
	if err != nil {
		return nil, err
	}
	if s1 != nil {
		rec.Condition = p.condition("condition", s1["condition"])
		rec.Session1Date = p.date("date_s1", s1["date_s1"])
	}

	s2, err := c.export(ctx, eventSession2, session2Fields, "Session 2 data", id)
	if err != nil {
		return nil, err
	}
	if s2 != nil {
		rec.Session2Date = p.date("date_s2", s2["date_s2"])
	}

	if p.err != nil {
		return nil, p.err
	}
	logging.Ctx(ctx).Debug().Str("participant", id).Bool("session1", s1 != nil).Bool("session2", s2 != nil).
		Msg("Loaded REDCap record")
	return rec, nil
}

// export requests one event's fields and returns the row for id, or nil.
func (c *Client) export(ctx context.Context, event string, fields []string, what, id string) (record, error) {
	form := url.Values{
		"token":     {c.token},
		"content":   {"record"},
		"format":    {"json"},
		"events[0]": {event},
	}
	for i, f := range fields {
		form.Set("fields["+strconv.Itoa(i)+"]", f)
	}

	var rows []record
	err := c.breaker.Execute(func() error {
		return c.post(ctx, form, what, &rows)
	})
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		if r["ash_id"] == id {
			return r, nil
		}
	}
	return nil, nil
}

func (c *Client) post(ctx context.Context, form url.Values, what string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create REDCap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordProviderRequest(providerName, "export_records", 0, time.Since(start))
		return fmt.Errorf("unable to get %s from REDCap: %w", what, err)
	}
	defer resp.Body.Close()
	metrics.RecordProviderRequest(providerName, "export_records", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &StatusError{What: what, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	return nil
}

// IsNotFound reports whether err means the participant has no REDCap record.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
