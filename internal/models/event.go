// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package models

import (
	"cmp"
	"slices"
	"time"

	"cloud.google.com/go/civil"
)

// ScheduledEvent is a message request in participant-local wall-clock time.
type ScheduledEvent struct {
	At      civil.DateTime `json:"at"`
	Title   string         `json:"title"`
	Content string         `json:"content"`
}

// In binds the civil time to a zone.
func (e ScheduledEvent) In(loc *time.Location) time.Time {
	return e.At.In(loc)
}

// SortEvents orders events chronologically, breaking ties by title.
func SortEvents(events []ScheduledEvent) {
	slices.SortStableFunc(events, func(a, b ScheduledEvent) int {
		if a.At.Before(b.At) {
			return -1
		}
		if b.At.Before(a.At) {
			return 1
		}
		return cmp.Compare(a.Title, b.Title)
	})
}

// RoundStatus reports a protocol phase that was skipped without failing.
type RoundStatus struct {
	Name    string `json:"name"`
	Missing bool   `json:"missing"`
	Reason  string `json:"reason,omitempty"`
}
