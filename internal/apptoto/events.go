// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package apptoto

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/UOSAN/message-automation/internal/logging"
	"github.com/UOSAN/message-automation/internal/metrics"
)

type eventsRequest struct {
	Events                  []Event `json:"events"`
	PreventCalendarCreation bool    `json:"prevent_calendar_creation"`
}

type eventsResponse struct {
	Events []Event `json:"events"`
}

// PostEvents creates events in batches and returns the provider ids in
// submission order. Batches are not retried: the first failing batch aborts
// the call, and earlier batches stay posted.
func (c *Client) PostEvents(ctx context.Context, events []Event) ([]int64, error) {
	ids := make([]int64, 0, len(events))
	for i := 0; i < len(events); i += c.batchSize {
		batch := events[i:min(i+c.batchSize, len(events))]
		logging.Ctx(ctx).Info().Int("from", i+1).Int("to", i+len(batch)).Int("total", len(events)).
			Msg("Posting events to Apptoto")

		var resp eventsResponse
		err := c.do(ctx, request{
			op:     "post_events",
			method: http.MethodPost,
			path:   "/events",
			body:   eventsRequest{Events: batch, PreventCalendarCreation: true},
		}, &resp)
		if err != nil {
			return ids, fmt.Errorf("post events %d through %d of %d: %w", i+1, i+len(batch), len(events), err)
		}

		for _, e := range resp.Events {
			ids = append(ids, e.ID)
		}
		metrics.EventsPostedTotal.Add(float64(len(batch)))
	}
	return ids, nil
}

// PutEvents rewrites existing events in batches. Each batch is retried.
func (c *Client) PutEvents(ctx context.Context, events []Event) error {
	for i := 0; i < len(events); i += c.batchSize {
		batch := events[i:min(i+c.batchSize, len(events))]
		err := c.withRetry(ctx, "put_events", func() error {
			return c.do(ctx, request{
				op:     "put_events",
				method: http.MethodPut,
				path:   "/events",
				body:   eventsRequest{Events: batch, PreventCalendarCreation: true},
			}, nil)
		})
		if err != nil {
			return fmt.Errorf("put events %d through %d of %d: %w", i+1, i+len(batch), len(events), err)
		}
		metrics.EventsUpdatedTotal.Add(float64(len(batch)))
	}
	return nil
}

// GetEvents pages through matching events until an empty page. It stops at
// MaxEvents so a bad filter cannot fetch the whole account history.
func (c *Client) GetEvents(ctx context.Context, f EventFilter) ([]Event, error) {
	query := f.values()
	query.Set("page_size", strconv.Itoa(c.pageSize))

	var events []Event
	for page := 1; ; page++ {
		query.Set("page", strconv.Itoa(page))

		var resp eventsResponse
		err := c.withRetry(ctx, "get_events", func() error {
			resp = eventsResponse{}
			return c.do(ctx, request{
				op:     "get_events",
				method: http.MethodGet,
				path:   "/events",
				query:  query,
			}, &resp)
		})
		if err != nil {
			return nil, fmt.Errorf("get events page %d: %w", page, err)
		}
		if len(resp.Events) == 0 {
			break
		}

		events = append(events, resp.Events...)
		logging.Ctx(ctx).Debug().Int("page", page).Int("found", len(events)).Msg("Fetched Apptoto events")

		if len(events) >= c.maxEvents {
			logging.Ctx(ctx).Warn().Int("max_events", c.maxEvents).Msg("Event fetch reached the safety cap")
			events = events[:c.maxEvents]
			break
		}
	}
	return events, nil
}

func (f EventFilter) values() url.Values {
	q := url.Values{}
	if !f.Begin.IsZero() {
		q.Set("begin", f.Begin.Format(time.RFC3339))
	}
	if !f.End.IsZero() {
		q.Set("end", f.End.Format(time.RFC3339))
	}
	if f.PhoneNumber != "" {
		q.Set("phone_number", f.PhoneNumber)
	}
	if f.Email != "" {
		q.Set("email", f.Email)
	}
	if f.CalendarID != 0 {
		q.Set("calendar_id", strconv.FormatInt(f.CalendarID, 10))
	}
	if f.IncludeDeleted {
		q.Set("include_deleted", "true")
	}
	if f.IncludeConversations {
		q.Set("include_conversations", "true")
	}
	return q
}

// GetEventsByContact finds the contact for externalID, fetches events for
// each of its phone numbers and email addresses, and returns the union
// deduplicated by id. A non-zero f.CalendarID also filters the result.
// An unknown contact has no events.
func (c *Client) GetEventsByContact(ctx context.Context, externalID string, f EventFilter) ([]Event, error) {
	contact, err := c.GetContact(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		logging.Ctx(ctx).Info().Str("external_id", externalID).Msg("No Apptoto contact; no events to fetch")
		return nil, nil
	}

	var filters []EventFilter
	for _, p := range contact.PhoneNumbers {
		pf := f
		pf.PhoneNumber, pf.Email = p.Number, ""
		filters = append(filters, pf)
	}
	for _, e := range contact.EmailAddresses {
		ef := f
		ef.PhoneNumber, ef.Email = "", e.Address
		filters = append(filters, ef)
	}

	seen := make(map[int64]bool)
	var events []Event
	for _, filter := range filters {
		found, err := c.GetEvents(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, e := range found {
			if f.CalendarID != 0 && e.CalendarID != f.CalendarID {
				continue
			}
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			events = append(events, e)
		}
	}
	return events, nil
}

// DeleteEvent deletes one event.
func (c *Client) DeleteEvent(ctx context.Context, id int64) error {
	err := c.do(ctx, request{
		op:     "delete_event",
		method: http.MethodDelete,
		path:   "/events",
		query:  url.Values{"id": {strconv.FormatInt(id, 10)}},
	}, nil)
	if err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	metrics.EventsDeletedTotal.Inc()
	return nil
}
