// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

// Package reconcile brings provider-side contacts and events back in line
// with the participant's current study record.
//
// Sweeps keep going when a single item fails. Every failure is logged and
// counted, and the sweep returns *PartialFailureError so the caller sees how
// far it got. Nothing is rolled back.
package reconcile

import (
	"context"
	"time"

	"github.com/UOSAN/message-automation/internal/apptoto"
)

// Provider is the subset of the Apptoto client the engine needs.
type Provider interface {
	Calendar() string
	CalendarID() int64
	GetContact(ctx context.Context, externalID string) (*apptoto.Contact, error)
	PostContact(ctx context.Context, contact apptoto.Contact) (*apptoto.Contact, error)
	PutContact(ctx context.Context, contact apptoto.Contact) (*apptoto.Contact, error)
	GetEventsByContact(ctx context.Context, externalID string, f apptoto.EventFilter) ([]apptoto.Event, error)
	PostEvents(ctx context.Context, events []apptoto.Event) ([]int64, error)
	PutEvents(ctx context.Context, events []apptoto.Event) error
	DeleteEvent(ctx context.Context, id int64) error
}

// Engine runs reconciliation operations against a provider.
type Engine struct {
	provider    Provider
	defaultZone *time.Location
}

// New creates an engine. defaultZone is used for records with no time zone code.
func New(provider Provider, defaultZone *time.Location) *Engine {
	return &Engine{provider: provider, defaultZone: defaultZone}
}

// Result summarizes a sweep.
type Result struct {
	Participant string `json:"participant"`
	Attempted   int    `json:"attempted"`
	Completed   int    `json:"completed"`

	// Reposted maps old event ids to the ids of their replacements.
	Reposted map[int64]int64 `json:"reposted,omitempty"`

	// Deleted lists the event ids removed at the provider.
	Deleted []int64 `json:"deleted,omitempty"`

	Message string `json:"message"`
}

// Tomorrow returns local midnight of the day after now, the usual cutoff for
// deletion sweeps.
func Tomorrow(now time.Time, loc *time.Location) time.Time {
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day()+1, 0, 0, 0, 0, loc)
}
