// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/UOSAN/message-automation/internal/breaker"
	"github.com/UOSAN/message-automation/internal/jobs"
	"github.com/UOSAN/message-automation/internal/logging"
	"github.com/UOSAN/message-automation/internal/reconcile"
	"github.com/UOSAN/message-automation/internal/study"
	"github.com/UOSAN/message-automation/internal/validation"
)

// Study is the set of participant operations the API exposes.
type Study interface {
	DiaryOne(ctx context.Context, id string) (*study.PostResult, error)
	DiaryThree(ctx context.Context, id string) (*study.PostResult, error)
	DiaryFour(ctx context.Context, id string) (*study.PostResult, error)
	Generate(ctx context.Context, id string) (*study.PostResult, error)
	TaskFiles(ctx context.Context, id string) ([]string, error)
	UpdateContact(ctx context.Context, id string) (*reconcile.Result, error)
	UpdateEvents(ctx context.Context, id string) (*reconcile.Result, error)
	DeleteMessages(ctx context.Context, id string) (*reconcile.Result, error)
	CountResponses(ctx context.Context, id string) (*study.ResponseReport, error)
	Cleanup(ctx context.Context) (int, error)
}

// Jobs runs operations in the background.
type Jobs interface {
	Submit(key string, fn jobs.Func) (jobs.Job, error)
	Cancel(key string) bool
	Drain() []jobs.Job
}

// Handler contains dependencies for API handlers.
type Handler struct {
	study     Study
	jobs      Jobs
	breakers  []*breaker.Breaker
	startTime time.Time
}

// NewHandler creates a handler. Breakers are reported by the readiness check.
func NewHandler(s Study, j Jobs, breakers ...*breaker.Breaker) *Handler {
	return &Handler{
		study:     s,
		jobs:      j,
		breakers:  breakers,
		startTime: time.Now(),
	}
}

// participantID reads and validates the {id} URL parameter.
func participantID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !validation.IsParticipantID(id) {
		respondError(w, r, http.StatusBadRequest, "INVALID_PARTICIPANT_ID",
			fmt.Sprintf("participant id %q must be ASH followed by three digits", sanitizeLogValue(id)), nil)
		return "", false
	}
	return id, true
}

// submit queues op for the participant under "<verb> <id>".
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, verb string, op func(ctx context.Context, id string) (string, error)) {
	id, ok := participantID(w, r)
	if !ok {
		return
	}

	key := verb + " " + id
	job, err := h.jobs.Submit(key, func(ctx context.Context) (string, error) {
		return op(logging.ContextWithParticipant(ctx, id), id)
	})
	if err != nil {
		respondOperationError(w, r, err)
		return
	}
	respondData(w, r, http.StatusAccepted, job)
}

func postMessage(fn func(context.Context, string) (*study.PostResult, error)) func(context.Context, string) (string, error) {
	return func(ctx context.Context, id string) (string, error) {
		res, err := fn(ctx, id)
		if err != nil {
			return "", err
		}
		return res.Message, nil
	}
}

func sweepMessage(fn func(context.Context, string) (*reconcile.Result, error)) func(context.Context, string) (string, error) {
	return func(ctx context.Context, id string) (string, error) {
		res, err := fn(ctx, id)
		if err != nil {
			return "", err
		}
		return res.Message, nil
	}
}

// DiaryRound queues diary round 1, 3 or 4.
func (h *Handler) DiaryRound(w http.ResponseWriter, r *http.Request) {
	var op func(context.Context, string) (*study.PostResult, error)
	switch round := chi.URLParam(r, "round"); round {
	case "1":
		op = h.study.DiaryOne
	case "3":
		op = h.study.DiaryThree
	case "4":
		op = h.study.DiaryFour
	default:
		respondError(w, r, http.StatusBadRequest, "INVALID_ROUND",
			fmt.Sprintf("diary round %q must be 1, 3 or 4", sanitizeLogValue(round)), nil)
		return
	}
	h.submit(w, r, "diary"+chi.URLParam(r, "round"), postMessage(op))
}

// GenerateMessages queues message generation.
func (h *Handler) GenerateMessages(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "generate", postMessage(h.study.Generate))
}

// TaskFiles queues task-file generation.
func (h *Handler) TaskFiles(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "task", func(ctx context.Context, id string) (string, error) {
		paths, err := h.study.TaskFiles(ctx, id)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Wrote %d task files for %s", len(paths), id), nil
	})
}

// UpdateContact queues a contact sync.
func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "contact", sweepMessage(h.study.UpdateContact))
}

// UpdateEvents queues an event rewrite.
func (h *Handler) UpdateEvents(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "events", sweepMessage(h.study.UpdateEvents))
}

// DeleteMessages queues a deletion sweep.
func (h *Handler) DeleteMessages(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "delete", sweepMessage(h.study.DeleteMessages))
}

// CountResponses returns the participant's response summary.
func (h *Handler) CountResponses(w http.ResponseWriter, r *http.Request) {
	id, ok := participantID(w, r)
	if !ok {
		return
	}
	report, err := h.study.CountResponses(logging.ContextWithParticipant(r.Context(), id), id)
	if err != nil {
		respondOperationError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, report)
}

// progressReport is the body of the progress endpoint.
type progressReport struct {
	Messages []string   `json:"messages"`
	Jobs     []jobs.Job `json:"jobs"`
}

// Progress lists every job and forgets the finished ones.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	all := h.jobs.Drain()
	report := progressReport{Messages: make([]string, 0, len(all)), Jobs: all}
	for _, j := range all {
		report.Messages = append(report.Messages, j.Line())
	}
	respondData(w, r, http.StatusOK, report)
}

// CancelJob cancels the job named by the key query parameter.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		respondError(w, r, http.StatusBadRequest, "MISSING_KEY", "key query parameter is required", nil)
		return
	}
	if !h.jobs.Cancel(key) {
		respondError(w, r, http.StatusNotFound, "JOB_NOT_RUNNING", fmt.Sprintf("no running job %q", sanitizeLogValue(key)), nil)
		return
	}
	respondData(w, r, http.StatusOK, map[string]string{"key": key, "status": string(jobs.StatusCancelled)})
}

// Cleanup removes the generated CSV files.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	n, err := h.study.Cleanup(r.Context())
	if err != nil {
		respondOperationError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, map[string]interface{}{
		"removed": n,
		"message": "Deleted all csv files in download folder",
	})
}
