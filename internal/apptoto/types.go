// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package apptoto

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/UOSAN/message-automation/internal/models"
)

// Event is a provider calendar event. Start and end carry a UTC offset.
type Event struct {
	ID           int64         `json:"id,omitempty"`
	Calendar     string        `json:"calendar,omitempty"`
	CalendarID   int64         `json:"calendar_id,omitempty"`
	Title        string        `json:"title"`
	StartTime    string        `json:"start_time"`
	EndTime      string        `json:"end_time"`
	TimeZone     string        `json:"time_zone,omitempty"`
	Content      string        `json:"content"`
	IsDeleted    bool          `json:"is_deleted,omitempty"`
	Participants []Participant `json:"participants"`
}

// Participant is one recipient of an event.
type Participant struct {
	ID            int64          `json:"id,omitempty"`
	Name          string         `json:"name"`
	Phone         string         `json:"phone"`
	Email         string         `json:"email,omitempty"`
	Conversations []Conversation `json:"conversations,omitempty"`
}

// Conversation is the message exchange between the provider and one event participant.
type Conversation struct {
	ID                 int64                 `json:"id,omitempty"`
	EventParticipantID int64                 `json:"event_participant_id"`
	Messages           []ConversationMessage `json:"messages"`
}

// Conversation message event types.
const (
	MessageSent    = "sent"
	MessageReplied = "replied"
)

// ConversationMessage is one outgoing or incoming message.
type ConversationMessage struct {
	EventType          string `json:"event_type"`
	EventParticipantID int64  `json:"event_participant_id,omitempty"`
	At                 string `json:"at"`
	Content            string `json:"content"`
}

// Contact is a provider address-book entry keyed by the study participant id.
type Contact struct {
	ID             int64          `json:"id,omitempty"`
	ExternalID     string         `json:"external_id"`
	Name           string         `json:"name"`
	PhoneNumbers   []PhoneNumber  `json:"phone_numbers"`
	EmailAddresses []EmailAddress `json:"email_addresses"`
}

// PhoneNumber is a contact phone entry.
type PhoneNumber struct {
	Number    string `json:"number"`
	IsPrimary bool   `json:"is_primary"`
}

// EmailAddress is a contact email entry.
type EmailAddress struct {
	Address   string `json:"address"`
	IsPrimary bool   `json:"is_primary"`
}

// EventFilter selects events for GetEvents.
type EventFilter struct {
	Begin                time.Time
	End                  time.Time
	PhoneNumber          string
	Email                string
	CalendarID           int64
	IncludeDeleted       bool
	IncludeConversations bool
}

// NewEvent binds a scheduled event to the participant's zone.
func NewEvent(calendar string, se models.ScheduledEvent, loc *time.Location, rec *models.ParticipantRecord) Event {
	at := se.In(loc).Format(time.RFC3339)
	return Event{
		Calendar:     calendar,
		Title:        se.Title,
		StartTime:    at,
		EndTime:      at,
		TimeZone:     loc.String(),
		Content:      se.Content,
		Participants: []Participant{ParticipantFor(rec)},
	}
}

// ParticipantFor returns the event participant entry for a study record.
func ParticipantFor(rec *models.ParticipantRecord) Participant {
	return Participant{
		Name:  rec.ContactName(),
		Phone: rec.Phone,
		Email: rec.Email,
	}
}

// Start parses the event start time.
func (e *Event) Start() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, e.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("event %d start time %q: %w", e.ID, e.StartTime, err)
	}
	return t, nil
}

// WallClock returns the event start as local civil time at its own offset.
func (e *Event) WallClock() (civil.DateTime, error) {
	t, err := e.Start()
	if err != nil {
		return civil.DateTime{}, err
	}
	return civil.DateTimeOf(t), nil
}
