// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package reconcile

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/UOSAN/message-automation/internal/apptoto"
	"github.com/UOSAN/message-automation/internal/logging"
	"github.com/UOSAN/message-automation/internal/models"
)

// fakeProvider is an in-memory provider that counts writes.
type fakeProvider struct {
	mu sync.Mutex

	contact *apptoto.Contact
	events  []apptoto.Event
	nextID  int64

	contactWrites int
	putCalls      int
	posted        []apptoto.Event
	deleted       []int64

	failDelete map[int64]bool
	failPut    bool
}

func (f *fakeProvider) Calendar() string  { return "ASH" }
func (f *fakeProvider) CalendarID() int64 { return 7 }

func (f *fakeProvider) GetContact(_ context.Context, _ string) (*apptoto.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.contact == nil {
		return nil, nil
	}
	c := *f.contact
	c.PhoneNumbers = append([]apptoto.PhoneNumber(nil), f.contact.PhoneNumbers...)
	c.EmailAddresses = append([]apptoto.EmailAddress(nil), f.contact.EmailAddresses...)
	return &c, nil
}

func (f *fakeProvider) PostContact(_ context.Context, c apptoto.Contact) (*apptoto.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contactWrites++
	c.ID = 99
	f.contact = &c
	return &c, nil
}

func (f *fakeProvider) PutContact(_ context.Context, c apptoto.Contact) (*apptoto.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contactWrites++
	f.contact = &c
	return &c, nil
}

func (f *fakeProvider) GetEventsByContact(_ context.Context, _ string, _ apptoto.EventFilter) ([]apptoto.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apptoto.Event(nil), f.events...), nil
}

func (f *fakeProvider) PostEvents(_ context.Context, events []apptoto.Event) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, len(events))
	for i := range events {
		f.nextID++
		ids[i] = 1000 + f.nextID
	}
	f.posted = append(f.posted, events...)
	return ids, nil
}

func (f *fakeProvider) PutEvents(_ context.Context, events []apptoto.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if f.failPut {
		return errors.New("put failed")
	}
	for _, ev := range events {
		for i := range f.events {
			if f.events[i].ID == ev.ID {
				f.events[i] = ev
			}
		}
	}
	return nil
}

func (f *fakeProvider) DeleteEvent(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete[id] {
		return errors.New("delete failed")
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func testRecord() *models.ParticipantRecord {
	return &models.ParticipantRecord{
		ID:       "ASH001",
		Phone:    "5415550100",
		Email:    "p@example.com",
		Initials: "AB",
		TimeZone: models.TimeZonePacific,
	}
}

func newTestEngine(p *fakeProvider) *Engine {
	return New(p, time.UTC)
}

// ===================================================================================================
// UpdateContact
// ===================================================================================================

func TestUpdateContact_IdempotentAfterCreate(t *testing.T) {
	p := &fakeProvider{}
	e := newTestEngine(p)
	rec := testRecord()

	changed, err := e.UpdateContact(context.Background(), rec)
	if err != nil {
		t.Fatalf("first UpdateContact() error = %v", err)
	}
	if !changed || p.contactWrites != 1 {
		t.Fatalf("first call: changed=%v writes=%d, want true 1", changed, p.contactWrites)
	}

	changed, err = e.UpdateContact(context.Background(), rec)
	if err != nil {
		t.Fatalf("second UpdateContact() error = %v", err)
	}
	if changed || p.contactWrites != 1 {
		t.Errorf("second call: changed=%v writes=%d, want false 1", changed, p.contactWrites)
	}
}

func TestUpdateContact_LogsMaskedContactDetails(t *testing.T) {
	var buf bytes.Buffer
	original := logging.Logger()
	defer logging.SetLogger(original)
	logging.SetLogger(logging.NewTestLogger(&buf))

	if _, err := newTestEngine(&fakeProvider{}).UpdateContact(context.Background(), testRecord()); err != nil {
		t.Fatalf("UpdateContact() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"email":"***@example.com"`) || !strings.Contains(out, `"phone":"***0100"`) {
		t.Errorf("masked contact details missing: %s", out)
	}
	if strings.Contains(out, "p@example.com") || strings.Contains(out, "5415550100") {
		t.Errorf("log carries raw contact details: %s", out)
	}
}

func TestUpdateContact_NewPhoneDemotesPrimary(t *testing.T) {
	p := &fakeProvider{contact: &apptoto.Contact{
		ID:             5,
		ExternalID:     "ASH001",
		PhoneNumbers:   []apptoto.PhoneNumber{{Number: "5415550000", IsPrimary: true}},
		EmailAddresses: []apptoto.EmailAddress{{Address: "p@example.com", IsPrimary: true}},
	}}
	e := newTestEngine(p)

	changed, err := e.UpdateContact(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("UpdateContact() error = %v", err)
	}
	if !changed {
		t.Fatal("expected a contact write")
	}

	phones := p.contact.PhoneNumbers
	if len(phones) != 2 {
		t.Fatalf("phones = %+v, want 2 entries", phones)
	}
	if phones[0].IsPrimary || !phones[1].IsPrimary || phones[1].Number != "5415550100" {
		t.Errorf("phones = %+v, want old demoted and new primary", phones)
	}
	if len(p.contact.EmailAddresses) != 1 {
		t.Errorf("emails = %+v, want unchanged", p.contact.EmailAddresses)
	}
}

func TestUpdateContact_MissingFieldsMakeNoCalls(t *testing.T) {
	p := &fakeProvider{}
	rec := testRecord()
	rec.Phone = ""

	_, err := newTestEngine(p).UpdateContact(context.Background(), rec)
	var pe *models.PreconditionError
	if !errors.As(err, &pe) || !pe.Has("phone") {
		t.Fatalf("error = %v, want precondition naming phone", err)
	}
	if p.contactWrites != 0 {
		t.Errorf("contactWrites = %d, want 0", p.contactWrites)
	}
}

// ===================================================================================================
// UpdateEvents
// ===================================================================================================

func TestUpdateEvents_RewritesParticipant(t *testing.T) {
	p := &fakeProvider{events: []apptoto.Event{
		{ID: 1, StartTime: "2024-07-01T10:00:00-07:00", TimeZone: "America/Los_Angeles",
			Participants: []apptoto.Participant{{ID: 50, Name: "XY", Phone: "5415550000"}}},
		{ID: 2, StartTime: "2024-07-02T10:00:00-07:00", TimeZone: "America/Los_Angeles", IsDeleted: true},
	}}
	e := newTestEngine(p)

	res, err := e.UpdateEvents(context.Background(), testRecord(), time.Now())
	if err != nil {
		t.Fatalf("UpdateEvents() error = %v", err)
	}
	if res.Attempted != 1 || res.Completed != 1 {
		t.Errorf("result = %+v, want 1 of 1", res)
	}
	got := p.events[0].Participants[0]
	if got.ID != 50 || got.Phone != "5415550100" || got.Name != "AB" || got.Email != "p@example.com" {
		t.Errorf("participant = %+v, want current record with provider id kept", got)
	}
	if len(p.posted) != 0 || len(p.deleted) != 0 {
		t.Errorf("unexpected repost: posted=%d deleted=%v", len(p.posted), p.deleted)
	}
}

func TestUpdateEvents_ZoneChangeReposts(t *testing.T) {
	p := &fakeProvider{events: []apptoto.Event{
		{ID: 3, Title: "UO: SMS", Content: "hi", StartTime: "2024-07-01T10:00:00-04:00",
			TimeZone: "America/New_York", Participants: []apptoto.Participant{{Name: "AB"}}},
	}}
	e := newTestEngine(p)

	res, err := e.UpdateEvents(context.Background(), testRecord(), time.Now())
	if err != nil {
		t.Fatalf("UpdateEvents() error = %v", err)
	}
	if p.putCalls != 0 {
		t.Errorf("putCalls = %d, want 0", p.putCalls)
	}
	if len(p.posted) != 1 {
		t.Fatalf("posted %d events, want 1", len(p.posted))
	}
	if p.posted[0].StartTime != "2024-07-01T10:00:00-07:00" {
		t.Errorf("reposted start = %q, want same wall clock in Pacific", p.posted[0].StartTime)
	}
	if p.posted[0].TimeZone != "America/Los_Angeles" || p.posted[0].Calendar != "ASH" {
		t.Errorf("reposted event = %+v", p.posted[0])
	}
	if len(p.deleted) != 1 || p.deleted[0] != 3 {
		t.Errorf("deleted = %v, want [3]", p.deleted)
	}
	if res.Reposted[3] == 0 {
		t.Errorf("Reposted = %v, want mapping for event 3", res.Reposted)
	}
}

func TestUpdateEvents_PutFailureIsPartial(t *testing.T) {
	p := &fakeProvider{
		failPut: true,
		events: []apptoto.Event{
			{ID: 1, StartTime: "2024-07-01T10:00:00-07:00", TimeZone: "America/Los_Angeles"},
		},
	}

	res, err := newTestEngine(p).UpdateEvents(context.Background(), testRecord(), time.Now())
	var pf *PartialFailureError
	if !errors.As(err, &pf) {
		t.Fatalf("error = %v, want PartialFailureError", err)
	}
	if pf.Attempted != 1 || pf.Completed != 0 || res.Completed != 0 {
		t.Errorf("partial failure = %+v", pf)
	}
}

// ===================================================================================================
// DeleteMessages
// ===================================================================================================

func TestDeleteMessages_DeletesEachOnce(t *testing.T) {
	p := &fakeProvider{events: []apptoto.Event{{ID: 1}, {ID: 2}, {ID: 2}, {ID: 3}}}

	res, err := newTestEngine(p).DeleteMessages(context.Background(), testRecord(), time.Now())
	if err != nil {
		t.Fatalf("DeleteMessages() error = %v", err)
	}
	if len(p.deleted) != 3 {
		t.Errorf("delete calls = %d, want 3", len(p.deleted))
	}
	if res.Message != "Deleted 3 messages for ASH001" {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestDeleteMessages_ContinuesPastFailure(t *testing.T) {
	p := &fakeProvider{
		events:     []apptoto.Event{{ID: 1}, {ID: 2}, {ID: 3}},
		failDelete: map[int64]bool{2: true},
	}

	res, err := newTestEngine(p).DeleteMessages(context.Background(), testRecord(), time.Now())
	var pf *PartialFailureError
	if !errors.As(err, &pf) {
		t.Fatalf("error = %v, want PartialFailureError", err)
	}
	if pf.Attempted != 3 || pf.Completed != 2 {
		t.Errorf("Attempted/Completed = %d/%d, want 3/2", pf.Attempted, pf.Completed)
	}
	if len(p.deleted) != 2 || p.deleted[1] != 3 {
		t.Errorf("deleted = %v, want [1 3]", p.deleted)
	}
	if res.Message != "Deleted 2 messages for ASH001" {
		t.Errorf("Message = %q", res.Message)
	}
	if !strings.Contains(err.Error(), "completed 2 of 3") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestTomorrow(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	now := time.Date(2024, 7, 1, 23, 30, 0, 0, loc)
	got := Tomorrow(now, loc)
	want := time.Date(2024, 7, 2, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("Tomorrow() = %v, want %v", got, want)
	}
}
