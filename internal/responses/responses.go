// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

// Package responses turns provider conversation transcripts into per-message
// response rows and reply-rate summaries.
package responses

import (
	"cmp"
	"slices"
	"time"

	"github.com/UOSAN/message-automation/internal/apptoto"
	"github.com/UOSAN/message-automation/internal/content"
	"github.com/UOSAN/message-automation/internal/schedule"
)

// Class groups messages for reporting.
type Class string

const (
	ClassSMS   Class = "SMS"
	ClassCigs  Class = "CIGS"
	ClassOther Class = "other"
)

// Classes lists the report classes in display order.
var Classes = []Class{ClassSMS, ClassCigs, ClassOther}

// Classify maps an event title to its report class.
func Classify(title string) Class {
	switch title {
	case schedule.TitleSMS:
		return ClassSMS
	case schedule.TitleCigs:
		return ClassCigs
	default:
		return ClassOther
	}
}

// Response is one sent message and the reply joined to it, if any.
type Response struct {
	EventID   int64  `json:"event_id"`
	Class     Class  `json:"class"`
	SentAt    string `json:"sent_at"`
	UOID      string `json:"uo_id,omitempty"`
	Message   string `json:"message"`
	RepliedAt string `json:"replied_at,omitempty"`
	Reply     string `json:"reply,omitempty"`
}

// Replied reports whether a reply was joined to the message.
func (r Response) Replied() bool {
	return r.RepliedAt != "" || r.Reply != ""
}

// Catalog is the message content the sent text is matched against.
type Catalog interface {
	Len() int
	Value(i int, column string) string
}

// Build joins sent and replied conversation messages by event participant.
// Each sent message takes the earliest unclaimed reply for the same event
// participant at or after it; a sent message with no reply keeps empty
// reply columns. Replies with no sent message are dropped. UO_IDs are found
// by exact match of the sent text against prefix+Message in catalog, which
// may be nil. When rows share a message the first row's UO_ID wins.
func Build(events []apptoto.Event, catalog Catalog, prefix string) []Response {
	ids := uoIDs(catalog, prefix)

	var out []Response
	for _, ev := range events {
		class := Classify(ev.Title)
		for _, p := range ev.Participants {
			for _, conv := range p.Conversations {
				out = append(out, join(ev, conv, class, ids)...)
			}
		}
	}

	slices.SortStableFunc(out, func(a, b Response) int {
		return parseTime(a.SentAt).Compare(parseTime(b.SentAt))
	})
	return out
}

func join(ev apptoto.Event, conv apptoto.Conversation, class Class, ids map[string]string) []Response {
	key := func(m apptoto.ConversationMessage) int64 {
		if m.EventParticipantID != 0 {
			return m.EventParticipantID
		}
		return conv.EventParticipantID
	}

	var sent []apptoto.ConversationMessage
	replies := make(map[int64][]apptoto.ConversationMessage)
	for _, m := range conv.Messages {
		switch m.EventType {
		case apptoto.MessageSent:
			sent = append(sent, m)
		case apptoto.MessageReplied:
			replies[key(m)] = append(replies[key(m)], m)
		}
	}
	for k := range replies {
		slices.SortStableFunc(replies[k], func(a, b apptoto.ConversationMessage) int {
			return parseTime(a.At).Compare(parseTime(b.At))
		})
	}
	slices.SortStableFunc(sent, func(a, b apptoto.ConversationMessage) int {
		return parseTime(a.At).Compare(parseTime(b.At))
	})

	rows := make([]Response, 0, len(sent))
	for _, s := range sent {
		text := cmp.Or(s.Content, ev.Content)
		r := Response{
			EventID: ev.ID,
			Class:   class,
			SentAt:  s.At,
			UOID:    ids[text],
			Message: text,
		}

		k := key(s)
		queue := replies[k]
		sentAt := parseTime(s.At)
		for i, reply := range queue {
			if parseTime(reply.At).Before(sentAt) {
				continue
			}
			r.RepliedAt = reply.At
			r.Reply = reply.Content
			replies[k] = slices.Delete(queue, i, i+1)
			break
		}
		rows = append(rows, r)
	}
	return rows
}

func uoIDs(catalog Catalog, prefix string) map[string]string {
	ids := make(map[string]string)
	if catalog == nil {
		return ids
	}
	for i := 0; i < catalog.Len(); i++ {
		id := catalog.Value(i, content.ColumnUOID)
		if id == "" {
			continue
		}
		text := prefix + catalog.Value(i, content.ColumnMessage)
		if _, dup := ids[text]; !dup {
			ids[text] = id
		}
	}
	return ids
}

// parseTime parses a provider timestamp; unparseable values sort first.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
