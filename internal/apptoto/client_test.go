// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package apptoto

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/UOSAN/message-automation/internal/breaker"
	"github.com/UOSAN/message-automation/internal/config"
)

func testConfig(url string) *config.ApptotoConfig {
	return &config.ApptotoConfig{
		URL:             url,
		User:            "study-user",
		APIToken:        "secret-token",
		Calendar:        "ASH",
		Timeout:         5 * time.Second,
		RequestInterval: time.Millisecond,
		BatchSize:       2,
		PageSize:        2,
		MaxEvents:       100,
		MaxAttempts:     5,
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, mutate func(*config.ApptotoConfig)) *Client {
	t.Helper()
	cfg := testConfig(srv.URL)
	if mutate != nil {
		mutate(cfg)
	}
	return NewClient(cfg, rate.NewLimiter(rate.Inf, 1),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
		WithBreaker(breaker.New("apptoto-"+t.Name(), breaker.Settings{MinRequests: 1000})),
	)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func makeEvents(n int) []Event {
	events := make([]Event, n)
	for i := range events {
		events[i] = Event{
			Calendar:  "ASH",
			Title:     "ASH SMS",
			StartTime: fmt.Sprintf("2024-06-11T%02d:00:00-07:00", 7+i),
			EndTime:   fmt.Sprintf("2024-06-11T%02d:00:00-07:00", 7+i),
			Content:   fmt.Sprintf("UO: message %d", i),
			Participants: []Participant{
				{Name: "AB", Phone: "5415550100", Email: "p1@example.com"},
			},
		}
	}
	return events
}

func TestPostEvents_Batches(t *testing.T) {
	var (
		mu      sync.Mutex
		batches []eventsRequest
		nextID  int64 = 100
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/events" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "study-user" || pass != "secret-token" {
			t.Errorf("basic auth = %q/%q/%v", user, pass, ok)
		}

		var req eventsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		mu.Lock()
		batches = append(batches, req)
		resp := eventsResponse{}
		for range req.Events {
			nextID++
			resp.Events = append(resp.Events, Event{ID: nextID})
		}
		mu.Unlock()
		writeJSON(t, w, resp)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	ids, err := c.PostEvents(context.Background(), makeEvents(5))
	if err != nil {
		t.Fatalf("PostEvents() error = %v", err)
	}

	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	for i, want := range []int{2, 2, 1} {
		if len(batches[i].Events) != want {
			t.Errorf("batch %d has %d events, want %d", i, len(batches[i].Events), want)
		}
		if !batches[i].PreventCalendarCreation {
			t.Errorf("batch %d missing prevent_calendar_creation", i)
		}
	}
	if len(ids) != 5 || ids[0] != 101 || ids[4] != 105 {
		t.Errorf("ids = %v, want 101..105", ids)
	}
}

func TestPostEvents_FailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 2 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		writeJSON(t, w, eventsResponse{Events: []Event{{ID: 1}, {ID: 2}}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	ids, err := c.PostEvents(context.Background(), makeEvents(6))

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("PostEvents() error = %v, want *ProviderError", err)
	}
	if pe.StatusCode != http.StatusBadGateway || pe.Op != "post_events" {
		t.Errorf("ProviderError = %+v", pe)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (no retry, no later batches)", calls.Load())
	}
	if len(ids) != 2 {
		t.Errorf("ids = %v, want the first batch's ids", ids)
	}
}

func TestPutEvents_Retry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int32
		status    int
		wantCalls int32
		wantErr   bool
	}{
		{"recovers after two server errors", 2, http.StatusInternalServerError, 3, false},
		{"gives up after five attempts", 99, http.StatusServiceUnavailable, 5, true},
		{"client error is not retried", 99, http.StatusBadRequest, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPut {
					t.Errorf("method = %s, want PUT", r.Method)
				}
				if calls.Add(1) <= tt.failures {
					http.Error(w, "nope", tt.status)
					return
				}
				writeJSON(t, w, eventsResponse{})
			}))
			defer srv.Close()

			c := newTestClient(t, srv, nil)
			err := c.PutEvents(context.Background(), makeEvents(1))
			if (err != nil) != tt.wantErr {
				t.Fatalf("PutEvents() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestGetEvents_Pagination(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		pages = append(pages, q.Get("page"))

		if q.Get("page_size") != "2" {
			t.Errorf("page_size = %s", q.Get("page_size"))
		}
		if q.Get("phone_number") != "5415550100" || q.Get("include_conversations") != "true" {
			t.Errorf("query = %v", q)
		}
		if q.Get("begin") != "2024-06-11T00:00:00Z" {
			t.Errorf("begin = %s", q.Get("begin"))
		}

		page, _ := strconv.Atoi(q.Get("page"))
		if page > 2 {
			writeJSON(t, w, eventsResponse{})
			return
		}
		writeJSON(t, w, eventsResponse{Events: []Event{{ID: int64(page*10 + 1)}, {ID: int64(page*10 + 2)}}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	events, err := c.GetEvents(context.Background(), EventFilter{
		Begin:                time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC),
		PhoneNumber:          "5415550100",
		IncludeConversations: true,
	})
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	if len(events) != 4 {
		t.Errorf("events = %d, want 4", len(events))
	}
	if len(pages) != 3 {
		t.Errorf("pages requested = %v, want 1,2,3", pages)
	}
}

func TestGetEvents_SafetyCap(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, eventsResponse{Events: []Event{{ID: 1}, {ID: 2}}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *config.ApptotoConfig) { cfg.MaxEvents = 5 })
	events, err := c.GetEvents(context.Background(), EventFilter{})
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	if len(events) != 5 {
		t.Errorf("events = %d, want 5", len(events))
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestGetEvents_PageRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		switch {
		case n == 1:
			http.Error(w, "busy", http.StatusTooManyRequests)
		case r.URL.Query().Get("page") == "1":
			writeJSON(t, w, eventsResponse{Events: []Event{{ID: 7}}})
		default:
			writeJSON(t, w, eventsResponse{})
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	events, err := c.GetEvents(context.Background(), EventFilter{})
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	if len(events) != 1 || events[0].ID != 7 {
		t.Errorf("events = %+v", events)
	}
}

func TestGetEvents_PageStatusRetry(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{"server error is retried", http.StatusBadGateway, 5},
		{"rate limit is retried", http.StatusTooManyRequests, 5},
		{"not found is final", http.StatusNotFound, 1},
		{"unauthorized is final", http.StatusUnauthorized, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			c := newTestClient(t, srv, nil)
			_, err := c.GetEvents(context.Background(), EventFilter{})

			var pe *ProviderError
			if !errors.As(err, &pe) || pe.StatusCode != tt.status {
				t.Fatalf("GetEvents() error = %v, want status %d", err, tt.status)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestProviderError_Message(t *testing.T) {
	long := make([]byte, 10000)
	for i := range long {
		long[i] = 'x'
	}
	err := &ProviderError{Op: "get_events", StatusCode: http.StatusBadGateway, Body: string(long)}

	if got := len(err.Error()); got > 400 {
		t.Errorf("len(Error()) = %d, want the body truncated", got)
	}
	if len(err.Body) != len(long) {
		t.Error("Body should keep the full response")
	}
	if !err.Temporary() {
		t.Error("502 should be temporary")
	}
	if (&ProviderError{StatusCode: http.StatusConflict}).Temporary() {
		t.Error("409 should not be temporary")
	}
}

func TestGetEventsByContact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/contact":
			if q.Get("external_id") != "ASH001" {
				http.NotFound(w, r)
				return
			}
			writeJSON(t, w, Contact{
				ID:         9,
				ExternalID: "ASH001",
				PhoneNumbers: []PhoneNumber{
					{Number: "5415550100", IsPrimary: false},
					{Number: "5415550199", IsPrimary: true},
				},
				EmailAddresses: []EmailAddress{{Address: "p1@example.com", IsPrimary: true}},
			})
		case "/events":
			if q.Get("page") != "1" {
				writeJSON(t, w, eventsResponse{})
				return
			}
			switch {
			case q.Get("phone_number") == "5415550100":
				writeJSON(t, w, eventsResponse{Events: []Event{{ID: 1, CalendarID: 3}, {ID: 2, CalendarID: 3}}})
			case q.Get("phone_number") == "5415550199":
				writeJSON(t, w, eventsResponse{Events: []Event{{ID: 2, CalendarID: 3}, {ID: 3, CalendarID: 4}}})
			case q.Get("email") == "p1@example.com":
				writeJSON(t, w, eventsResponse{Events: []Event{{ID: 1, CalendarID: 3}, {ID: 4, CalendarID: 3}}})
			default:
				t.Errorf("unexpected events query %v", q)
				writeJSON(t, w, eventsResponse{})
			}
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)

	all, err := c.GetEventsByContact(context.Background(), "ASH001", EventFilter{})
	if err != nil {
		t.Fatalf("GetEventsByContact() error = %v", err)
	}
	if len(all) != 4 {
		t.Errorf("events = %d, want 4 unique", len(all))
	}

	filtered, err := c.GetEventsByContact(context.Background(), "ASH001", EventFilter{CalendarID: 3})
	if err != nil {
		t.Fatalf("GetEventsByContact() error = %v", err)
	}
	if len(filtered) != 3 {
		t.Errorf("calendar-filtered events = %d, want 3", len(filtered))
	}

	none, err := c.GetEventsByContact(context.Background(), "ASH404", EventFilter{})
	if err != nil || none != nil {
		t.Errorf("unknown contact = %v, %v; want nil, nil", none, err)
	}
}

func TestContacts(t *testing.T) {
	var written []contactsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/contact":
			http.NotFound(w, r)
		case r.URL.Path == "/contacts":
			var req contactsRequest
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, &req); err != nil || len(req.Contacts) != 1 {
				t.Errorf("decode: %v", err)
				http.Error(w, "bad json", http.StatusBadRequest)
				return
			}
			written = append(written, req)
			out := req.Contacts[0]
			out.ID = 55
			writeJSON(t, w, contactsResponse{Contacts: []Contact{out}})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	ctx := context.Background()

	got, err := c.GetContact(ctx, "ASH001")
	if err != nil || got != nil {
		t.Fatalf("GetContact() = %v, %v; want nil, nil", got, err)
	}

	created, err := c.PostContact(ctx, Contact{ExternalID: "ASH001", Name: "AB"})
	if err != nil {
		t.Fatalf("PostContact() error = %v", err)
	}
	if created.ID != 55 {
		t.Errorf("created.ID = %d, want 55", created.ID)
	}

	if _, err := c.PutContact(ctx, *created); err != nil {
		t.Fatalf("PutContact() error = %v", err)
	}
	if len(written) != 2 || written[1].Contacts[0].ID != 55 {
		t.Errorf("written = %+v", written)
	}
}

func TestDeleteEvent(t *testing.T) {
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		gotID = r.URL.Query().Get("id")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	if err := c.DeleteEvent(context.Background(), 4242); err != nil {
		t.Fatalf("DeleteEvent() error = %v", err)
	}
	if gotID != "4242" {
		t.Errorf("id = %s, want 4242", gotID)
	}
}

func TestSharedLimiterSpacesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	limiter := NewLimiter(40 * time.Millisecond)
	cfg := testConfig(srv.URL)
	a := NewClient(cfg, limiter, WithBreaker(breaker.New("apptoto-limiter-a", breaker.Settings{})))
	b := NewClient(cfg, limiter, WithBreaker(breaker.New("apptoto-limiter-b", breaker.Settings{})))

	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := a.DeleteEvent(context.Background(), int64(i)); err != nil {
			t.Fatal(err)
		}
		if err := b.DeleteEvent(context.Background(), int64(i)); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 120*time.Millisecond {
		t.Errorf("4 calls took %s, want at least 120ms with a shared 40ms limiter", elapsed)
	}
}
