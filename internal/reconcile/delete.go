// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/UOSAN/message-automation/internal/apptoto"
	"github.com/UOSAN/message-automation/internal/logging"
	"github.com/UOSAN/message-automation/internal/metrics"
	"github.com/UOSAN/message-automation/internal/models"
)

// DeleteMessages deletes every participant event starting at or after cutoff.
// Each delete is attempted even when an earlier one failed.
func (e *Engine) DeleteMessages(ctx context.Context, rec *models.ParticipantRecord, cutoff time.Time) (*Result, error) {
	if err := rec.Require(models.PhaseDelete); err != nil {
		return nil, err
	}

	log := logging.Ctx(ctx).With().Str("participant", rec.ID).Logger()
	log.Info().Time("cutoff", cutoff).Msg("Deletion started")

	events, err := e.provider.GetEventsByContact(ctx, rec.ID, apptoto.EventFilter{
		Begin:      cutoff,
		CalendarID: e.provider.CalendarID(),
	})
	if err != nil {
		return nil, fmt.Errorf("delete messages for %s: %w", rec.ID, err)
	}

	ids := uniqueIDs(events)
	res := &Result{Participant: rec.ID, Attempted: len(ids)}
	var errs []error

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := e.provider.DeleteEvent(ctx, id); err != nil {
			metrics.RecordReconcileFailure("delete_event")
			log.Error().Err(err).Int64("event_id", id).Msg("Failed to delete event")
			errs = append(errs, err)
			continue
		}
		res.Completed++
		res.Deleted = append(res.Deleted, id)
		log.Debug().Int64("event_id", id).Int("deleted", res.Completed).Int("total", len(ids)).Msg("Deleted event")
	}

	res.Message = fmt.Sprintf("Deleted %d messages for %s", res.Completed, rec.ID)
	log.Info().Int("attempted", res.Attempted).Int("completed", res.Completed).Msg(res.Message)

	if len(errs) > 0 {
		return res, &PartialFailureError{
			Participant: rec.ID,
			Operation:   "delete messages",
			Attempted:   res.Attempted,
			Completed:   res.Completed,
			Errs:        errs,
		}
	}
	return res, nil
}

func uniqueIDs(events []apptoto.Event) []int64 {
	seen := make(map[int64]bool, len(events))
	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		if ev.ID == 0 || ev.IsDeleted || seen[ev.ID] {
			continue
		}
		seen[ev.ID] = true
		ids = append(ids, ev.ID)
	}
	return ids
}
