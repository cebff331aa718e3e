// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package study

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/UOSAN/message-automation/internal/apptoto"
	"github.com/UOSAN/message-automation/internal/content"
	"github.com/UOSAN/message-automation/internal/logging"
	"github.com/UOSAN/message-automation/internal/metrics"
	"github.com/UOSAN/message-automation/internal/models"
	"github.com/UOSAN/message-automation/internal/schedule"
)

// PostResult describes one posting operation.
type PostResult struct {
	Participant string               `json:"participant"`
	Phase       models.Phase         `json:"phase"`
	Posted      int                  `json:"posted"`
	EventIDs    []int64              `json:"event_ids,omitempty"`
	Statuses    []models.RoundStatus `json:"statuses,omitempty"`
	File        string               `json:"file,omitempty"`
	Message     string               `json:"message"`
}

// DiaryOne posts diary round 1.
func (s *Service) DiaryOne(ctx context.Context, id string) (*PostResult, error) {
	rec, err := s.record(ctx, id)
	if err != nil {
		return nil, err
	}
	plan, err := s.protocol.DiaryRoundOne(rec)
	if err != nil {
		return nil, err
	}
	return s.post(ctx, rec, plan, "")
}

// DiaryThree posts diary round 3, or reports it missing when session 1 has
// no date yet.
func (s *Service) DiaryThree(ctx context.Context, id string) (*PostResult, error) {
	rec, err := s.record(ctx, id)
	if err != nil {
		return nil, err
	}
	plan, err := s.protocol.DiaryRoundThree(rec)
	if err != nil {
		return nil, err
	}
	return s.post(ctx, rec, plan, "")
}

// DiaryFour posts diary round 4, or reports it missing when session 2 has
// no date yet.
func (s *Service) DiaryFour(ctx context.Context, id string) (*PostResult, error) {
	rec, err := s.record(ctx, id)
	if err != nil {
		return nil, err
	}
	plan, err := s.protocol.DiaryRoundFour(rec)
	if err != nil {
		return nil, err
	}
	return s.post(ctx, rec, plan, "")
}

// Generate draws the participant's intervention messages, writes them to
// <download dir>/<id>.csv, and posts the full message schedule.
func (s *Service) Generate(ctx context.Context, id string) (*PostResult, error) {
	rec, err := s.record(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rec.Require(models.PhaseGenerate); err != nil {
		return nil, err
	}

	catalog, err := content.Load(s.content.MessageFile)
	if err != nil {
		return nil, err
	}
	rng := s.newRand()
	pool, err := catalog.FilterByCondition(rng, rec.Condition, rec.MessageValues, s.protocol.RequiredMessages())
	if err != nil {
		return nil, fmt.Errorf("generate messages for %s: %w", rec.ID, err)
	}

	plan, err := s.protocol.Messages(rec, pool, rng)
	if err != nil {
		return nil, fmt.Errorf("generate messages for %s: %w", rec.ID, err)
	}

	file := poolFile(s.content.DownloadDir, rec.ID)
	if err := pool.Write(file, []string{content.ColumnUOID, content.ColumnMessage}, nil); err != nil {
		return nil, err
	}

	return s.post(ctx, rec, plan, file)
}

// poolFile is where Generate writes the participant's drawn messages.
func poolFile(dir, id string) string {
	return filepath.Join(dir, id+".csv")
}

// TaskFiles writes the participant's scanner-task files and returns their paths.
func (s *Service) TaskFiles(ctx context.Context, id string) ([]string, error) {
	rec, err := s.record(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rec.Require(models.PhaseTaskFiles); err != nil {
		return nil, err
	}
	catalog, err := content.Load(s.content.MessageFile)
	if err != nil {
		return nil, err
	}
	paths, err := content.GenerateTaskFiles(s.newRand(), catalog, rec.ID, rec.TaskValues, s.content.DownloadDir)
	if err != nil {
		return paths, fmt.Errorf("task files for %s: %w", rec.ID, err)
	}
	logging.Ctx(ctx).Info().Str("participant", rec.ID).Int("files", len(paths)).Msg("Task files written")
	return paths, nil
}

func (s *Service) post(ctx context.Context, rec *models.ParticipantRecord, plan schedule.Plan, file string) (*PostResult, error) {
	log := logging.Ctx(ctx).With().Str("participant", rec.ID).Str("phase", string(plan.Phase)).Logger()

	res := &PostResult{
		Participant: rec.ID,
		Phase:       plan.Phase,
		Statuses:    plan.Statuses,
		File:        file,
	}

	if len(plan.Events) == 0 {
		var missing []string
		for _, st := range plan.Statuses {
			if st.Missing {
				missing = append(missing, fmt.Sprintf("%s skipped: %s", st.Name, st.Reason))
			}
		}
		res.Message = fmt.Sprintf("No messages posted for %s", rec.ID)
		if len(missing) > 0 {
			res.Message += " (" + strings.Join(missing, "; ") + ")"
		}
		log.Info().Msg(res.Message)
		return res, nil
	}

	if s.guard && s.index != nil {
		posted, err := s.index.Has(ctx, rec.ID, plan.Phase)
		if err != nil {
			return nil, fmt.Errorf("check event index: %w", err)
		}
		if posted {
			return nil, fmt.Errorf("%s for %s: %w", plan.Phase, rec.ID, ErrAlreadyPosted)
		}
	}

	loc, err := s.location(rec)
	if err != nil {
		return nil, err
	}

	events := make([]apptoto.Event, len(plan.Events))
	for i, se := range plan.Events {
		events[i] = apptoto.NewEvent(s.provider.Calendar(), se, loc, rec)
	}
	metrics.RecordScheduledEvents(string(plan.Phase), len(events))

	ids, err := s.provider.PostEvents(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("post %s for %s: %w", plan.Phase, rec.ID, err)
	}
	res.Posted = len(events)
	res.EventIDs = ids
	res.Message = fmt.Sprintf("Posted %d messages for %s", res.Posted, rec.ID)

	if s.index != nil {
		runID := logging.CorrelationIDFromContext(ctx)
		if err := s.index.Record(ctx, rec.ID, plan.Phase, runID, ids); err != nil {
			log.Error().Err(err).Int("events", len(ids)).Msg("Posted events not recorded in event index")
		}
	}

	log.Info().Int("posted", res.Posted).Str("time_zone", loc.String()).Msg(res.Message)
	return res, nil
}
