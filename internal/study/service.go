// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

// Package study runs the externally triggered participant operations. Each
// method fetches the participant's record, validates it for the phase, and
// only then talks to the messaging provider, so an incomplete record never
// causes a provider call.
package study

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/UOSAN/message-automation/internal/config"
	"github.com/UOSAN/message-automation/internal/eventindex"
	"github.com/UOSAN/message-automation/internal/models"
	"github.com/UOSAN/message-automation/internal/reconcile"
	"github.com/UOSAN/message-automation/internal/schedule"
	"github.com/UOSAN/message-automation/internal/validation"
)

var (
	// ErrInvalidParticipantID is returned for ids not in the ASHnnn form.
	ErrInvalidParticipantID = errors.New("participant id must be ASH followed by three digits")

	// ErrAlreadyPosted is returned when duplicate guarding is on and the
	// phase was already posted for the participant.
	ErrAlreadyPosted = errors.New("messages already posted for this phase")
)

// Records fetches participant records.
type Records interface {
	GetParticipant(ctx context.Context, id string) (*models.ParticipantRecord, error)
}

// Provider is the messaging provider the service posts to and reconciles.
type Provider interface {
	reconcile.Provider
}

// Index remembers posted event ids.
type Index interface {
	Record(ctx context.Context, participant string, phase models.Phase, runID string, ids []int64) error
	Has(ctx context.Context, participant string, phase models.Phase) (bool, error)
	Forget(ctx context.Context, participant string, ids []int64) error
	Replace(ctx context.Context, participant string, replacement map[int64]int64) error
}

var _ Index = (*eventindex.Store)(nil)

// Service runs participant operations.
type Service struct {
	records     Records
	provider    Provider
	engine      *reconcile.Engine
	index       Index
	protocol    schedule.Protocol
	content     config.ContentConfig
	defaultZone *time.Location
	guard       bool

	newRand func() *rand.Rand
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithIndex records posted event ids in idx.
func WithIndex(idx Index) Option {
	return func(s *Service) { s.index = idx }
}

// WithRand sets the random source factory used for each schedule.
func WithRand(fn func() *rand.Rand) Option {
	return func(s *Service) { s.newRand = fn }
}

// WithClock sets the clock used for cutoffs.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service from the protocol and content config.
func NewService(cfg *config.Config, records Records, provider Provider, opts ...Option) (*Service, error) {
	loc, err := cfg.Protocol.Location()
	if err != nil {
		return nil, fmt.Errorf("study time zone %q: %w", cfg.Protocol.TimeZone, err)
	}

	s := &Service{
		records:     records,
		provider:    provider,
		engine:      reconcile.New(provider, loc),
		protocol:    schedule.FromConfig(cfg.Protocol),
		content:     cfg.Content,
		defaultZone: loc,
		guard:       cfg.Protocol.GuardDuplicates,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// record validates id and fetches the participant.
func (s *Service) record(ctx context.Context, id string) (*models.ParticipantRecord, error) {
	if !validation.IsParticipantID(id) {
		return nil, fmt.Errorf("%q: %w", id, ErrInvalidParticipantID)
	}
	return s.records.GetParticipant(ctx, id)
}

func (s *Service) location(rec *models.ParticipantRecord) (*time.Location, error) {
	loc, err := rec.TimeZone.Location(s.defaultZone)
	if err != nil {
		return nil, fmt.Errorf("participant %s: %w", rec.ID, err)
	}
	return loc, nil
}
