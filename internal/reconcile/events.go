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

// UpdateEvents rewrites the participant on every event starting at or after
// begin. Events already in the participant's zone are updated in place.
// Events in another zone are reposted at the same local wall-clock time in
// the participant's zone and the originals deleted, since the provider does
// not move an event when only its zone changes.
func (e *Engine) UpdateEvents(ctx context.Context, rec *models.ParticipantRecord, begin time.Time) (*Result, error) {
	if err := rec.Require(models.PhaseEvents); err != nil {
		return nil, err
	}
	loc, err := rec.TimeZone.Location(e.defaultZone)
	if err != nil {
		return nil, fmt.Errorf("update events for %s: %w", rec.ID, err)
	}

	log := logging.Ctx(ctx).With().Str("participant", rec.ID).Logger()

	events, err := e.provider.GetEventsByContact(ctx, rec.ID, apptoto.EventFilter{
		Begin:      begin,
		CalendarID: e.provider.CalendarID(),
	})
	if err != nil {
		return nil, fmt.Errorf("update events for %s: %w", rec.ID, err)
	}

	participant := apptoto.ParticipantFor(rec)
	var inPlace, moved []apptoto.Event
	for _, ev := range events {
		if ev.IsDeleted {
			continue
		}
		p := participant
		if len(ev.Participants) > 0 {
			p.ID = ev.Participants[0].ID
		}
		ev.Participants = []apptoto.Participant{p}

		if ev.TimeZone != "" && ev.TimeZone != loc.String() {
			moved = append(moved, ev)
			continue
		}
		inPlace = append(inPlace, ev)
	}

	res := &Result{
		Participant: rec.ID,
		Attempted:   len(inPlace) + len(moved),
		Reposted:    make(map[int64]int64),
	}
	var errs []error

	if len(inPlace) > 0 {
		if err := e.provider.PutEvents(ctx, inPlace); err != nil {
			metrics.RecordReconcileFailure("put_events")
			log.Error().Err(err).Int("events", len(inPlace)).Msg("Failed to update events")
			errs = append(errs, err)
		} else {
			res.Completed += len(inPlace)
		}
	}

	for _, ev := range moved {
		newID, err := e.repost(ctx, ev, loc)
		if err != nil {
			metrics.RecordReconcileFailure("repost_event")
			log.Error().Err(err).Int64("event_id", ev.ID).Str("from_zone", ev.TimeZone).
				Str("to_zone", loc.String()).Msg("Failed to move event to new time zone")
			errs = append(errs, err)
			continue
		}
		res.Completed++
		if newID != 0 {
			res.Reposted[ev.ID] = newID
		}
		res.Deleted = append(res.Deleted, ev.ID)
	}

	res.Message = fmt.Sprintf("Updated %d messages for %s", res.Completed, rec.ID)
	if len(moved) > 0 {
		res.Message += fmt.Sprintf(" (%d moved to %s)", len(res.Reposted), loc)
	}
	log.Info().Int("attempted", res.Attempted).Int("completed", res.Completed).
		Int("moved", len(moved)).Msg(res.Message)

	if len(errs) > 0 {
		return res, &PartialFailureError{
			Participant: rec.ID,
			Operation:   "update events",
			Attempted:   res.Attempted,
			Completed:   res.Completed,
			Errs:        errs,
		}
	}
	return res, nil
}

// repost posts a copy of ev at its wall-clock time in loc, then deletes ev.
// The copy goes first so a failed delete leaves a duplicate rather than a gap.
func (e *Engine) repost(ctx context.Context, ev apptoto.Event, loc *time.Location) (int64, error) {
	wall, err := ev.WallClock()
	if err != nil {
		return 0, err
	}
	at := wall.In(loc).Format(time.RFC3339)

	replacement := apptoto.Event{
		Calendar:     e.provider.Calendar(),
		Title:        ev.Title,
		StartTime:    at,
		EndTime:      at,
		TimeZone:     loc.String(),
		Content:      ev.Content,
		Participants: []apptoto.Participant{{Name: ev.Participants[0].Name, Phone: ev.Participants[0].Phone, Email: ev.Participants[0].Email}},
	}
	ids, err := e.provider.PostEvents(ctx, []apptoto.Event{replacement})
	if err != nil {
		return 0, fmt.Errorf("repost event %d: %w", ev.ID, err)
	}
	if err := e.provider.DeleteEvent(ctx, ev.ID); err != nil {
		return 0, fmt.Errorf("remove event %d after repost: %w", ev.ID, err)
	}

	var newID int64
	if len(ids) > 0 {
		newID = ids[0]
	}
	return newID, nil
}
