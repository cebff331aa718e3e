// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package study

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/UOSAN/message-automation/internal/apptoto"
	"github.com/UOSAN/message-automation/internal/content"
	"github.com/UOSAN/message-automation/internal/logging"
	"github.com/UOSAN/message-automation/internal/reconcile"
	"github.com/UOSAN/message-automation/internal/responses"
)

// UpdateContact syncs the participant's provider contact and, when it
// changed, rewrites their future events.
func (s *Service) UpdateContact(ctx context.Context, id string) (*reconcile.Result, error) {
	rec, err := s.record(ctx, id)
	if err != nil {
		return nil, err
	}
	changed, err := s.engine.UpdateContact(ctx, rec)
	if err != nil {
		return nil, err
	}
	if !changed {
		return &reconcile.Result{
			Participant: rec.ID,
			Message:     fmt.Sprintf("Contact for %s already up to date", rec.ID),
		}, nil
	}

	res, err := s.engine.UpdateEvents(ctx, rec, s.now())
	s.syncIndex(ctx, rec.ID, res)
	return res, err
}

// UpdateEvents rewrites the participant's future events.
func (s *Service) UpdateEvents(ctx context.Context, id string) (*reconcile.Result, error) {
	rec, err := s.record(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.UpdateEvents(ctx, rec, s.now())
	s.syncIndex(ctx, rec.ID, res)
	return res, err
}

// DeleteMessages deletes the participant's events from tomorrow on.
func (s *Service) DeleteMessages(ctx context.Context, id string) (*reconcile.Result, error) {
	rec, err := s.record(ctx, id)
	if err != nil {
		return nil, err
	}
	loc, err := s.location(rec)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.DeleteMessages(ctx, rec, reconcile.Tomorrow(s.now(), loc))
	s.syncIndex(ctx, rec.ID, res)
	return res, err
}

// syncIndex applies a sweep's reposts and deletions to the event index.
func (s *Service) syncIndex(ctx context.Context, id string, res *reconcile.Result) {
	if s.index == nil || res == nil {
		return
	}
	log := logging.Ctx(ctx).With().Str("participant", id).Logger()
	if len(res.Reposted) > 0 {
		if err := s.index.Replace(ctx, id, res.Reposted); err != nil {
			log.Error().Err(err).Msg("Reposted events not updated in event index")
		}
	}

	var gone []int64
	for _, eventID := range res.Deleted {
		if _, ok := res.Reposted[eventID]; !ok {
			gone = append(gone, eventID)
		}
	}
	if len(gone) > 0 {
		if err := s.index.Forget(ctx, id, gone); err != nil {
			log.Error().Err(err).Msg("Deleted events not removed from event index")
		}
	}
}

// ResponseReport is the result of CountResponses.
type ResponseReport struct {
	Summary     responses.Summary `json:"summary"`
	Rows        int               `json:"rows"`
	CSVFile     string            `json:"csv_file"`
	SummaryFile string            `json:"summary_file"`
}

// CountResponses fetches every conversation for the participant, writes the
// response CSV and summary into the download directory, and returns the
// summary.
func (s *Service) CountResponses(ctx context.Context, id string) (*ResponseReport, error) {
	rec, err := s.record(ctx, id)
	if err != nil {
		return nil, err
	}

	events, err := s.provider.GetEventsByContact(ctx, rec.ID, apptoto.EventFilter{
		CalendarID:           s.provider.CalendarID(),
		IncludeConversations: true,
	})
	if err != nil {
		return nil, fmt.Errorf("count responses for %s: %w", rec.ID, err)
	}

	rows := responses.Build(events, s.responseCatalog(ctx, rec.ID), s.protocol.ContentPrefix)
	report := &ResponseReport{
		Summary:     responses.Summarize(rec.ID, rows),
		Rows:        len(rows),
		CSVFile:     filepath.Join(s.content.DownloadDir, rec.ID+"_responses.csv"),
		SummaryFile: filepath.Join(s.content.DownloadDir, rec.ID+"_summary.txt"),
	}

	if err := writeFile(report.CSVFile, func(f *os.File) error { return responses.WriteCSV(f, rows) }); err != nil {
		return nil, err
	}
	if err := writeFile(report.SummaryFile, func(f *os.File) error { return responses.WriteSummary(f, report.Summary) }); err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().Str("participant", rec.ID).Int("rows", len(rows)).
		Int("replied", report.Summary.Total.Replied).Msg("Responses counted")
	return report, nil
}

// responseCatalog returns the messages drawn for the participant when their
// pool file exists, else the full catalog. It returns nil when neither loads.
func (s *Service) responseCatalog(ctx context.Context, id string) responses.Catalog {
	log := logging.Ctx(ctx)

	drawn, err := content.LoadDrawn(poolFile(s.content.DownloadDir, id))
	if err == nil {
		return drawn
	}
	if !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Participant message file unreadable; matching against the catalog")
	}

	catalog, err := content.Load(s.content.MessageFile)
	if err != nil {
		log.Warn().Err(err).Msg("Message catalog unavailable; responses will have no UO_ID")
		return nil
	}
	return catalog
}

// Cleanup removes every CSV file from the download directory and returns
// how many were removed.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.content.DownloadDir, "*.csv"))
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	removed := 0
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("cleanup: %w", err)
		}
		removed++
	}
	logging.Ctx(ctx).Info().Int("removed", removed).Str("dir", s.content.DownloadDir).Msg("Deleted all csv files in download folder")
	return removed, nil
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
