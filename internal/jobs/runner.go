// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

// Package jobs runs long participant operations in the background.
//
// Jobs are identified by a caller-chosen key such as "generate ASH001". A key
// is unique while its job is in flight; the progress view reports every job
// and forgets finished ones once they have been reported.
//
// Runner implements suture.Service. Workers only run while Serve runs, so
// jobs submitted before the supervisor starts wait in the queue.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/UOSAN/message-automation/internal/logging"
	"github.com/UOSAN/message-automation/internal/metrics"
)

// Status is the state of a job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusFinished  Status = "finished"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

var (
	// ErrJobRunning is returned when a job with the same key is in flight.
	ErrJobRunning = errors.New("job already running")

	// ErrQueueFull is returned when no more jobs can be queued.
	ErrQueueFull = errors.New("job queue full")
)

// Func is the work of a job. The returned message is reported on success.
type Func func(ctx context.Context) (string, error)

// Job is a snapshot of a submitted job.
type Job struct {
	Key       string    `json:"key"`
	Kind      string    `json:"kind"`
	RunID     string    `json:"run_id"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Submitted time.Time `json:"submitted"`
	Started   time.Time `json:"started,omitempty"`
	Finished  time.Time `json:"finished,omitempty"`
}

// Done reports whether the job has stopped.
func (j Job) Done() bool {
	return j.Status != StatusRunning
}

// Line renders the job the way the progress page lists it.
func (j Job) Line() string {
	switch j.Status {
	case StatusError:
		return fmt.Sprintf("%s error: %s", j.Key, j.Error)
	case StatusFinished:
		if j.Message != "" {
			return fmt.Sprintf("%s finished: %s", j.Key, j.Message)
		}
	}
	return fmt.Sprintf("%s %s", j.Key, j.Status)
}

type entry struct {
	job    Job
	fn     Func
	cancel context.CancelFunc
}

// Config configures a Runner.
type Config struct {
	Workers   int
	QueueSize int
}

// Runner executes jobs on a bounded pool of workers.
type Runner struct {
	workers int
	queue   chan *entry

	mu   sync.Mutex
	jobs map[string]*entry
}

// NewRunner creates a runner.
func NewRunner(cfg Config) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &Runner{
		workers: cfg.Workers,
		queue:   make(chan *entry, cfg.QueueSize),
		jobs:    make(map[string]*entry),
	}
}

// Kind returns the first word of a job key.
func Kind(key string) string {
	kind, _, _ := strings.Cut(key, " ")
	return kind
}

// Submit queues fn under key.
func (r *Runner) Submit(key string, fn Func) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.jobs[key]; ok && !e.job.Done() {
		return e.job, fmt.Errorf("%s: %w", key, ErrJobRunning)
	}

	e := &entry{
		job: Job{
			Key:       key,
			Kind:      Kind(key),
			RunID:     uuid.New().String(),
			Status:    StatusRunning,
			Submitted: time.Now(),
		},
		fn: fn,
	}

	select {
	case r.queue <- e:
	default:
		return Job{}, fmt.Errorf("%s: %w", key, ErrQueueFull)
	}

	r.jobs[key] = e
	metrics.JobsRunning.Inc()
	logging.Info().Str("job", key).Str("run_id", e.job.RunID).Msg("Job submitted")
	return e.job, nil
}

// Get returns the job with key.
func (r *Runner) Get(key string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[key]
	if !ok {
		return Job{}, false
	}
	return e.job, true
}

// Cancel stops the job with key. Queued jobs are cancelled before they start.
func (r *Runner) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[key]
	if !ok || e.job.Done() {
		return false
	}
	if e.cancel != nil {
		e.cancel()
		return true
	}
	r.finishLocked(e, "", context.Canceled)
	return true
}

// Drain returns every job, sorted by submission time, and forgets the
// ones that are done.
func (r *Runner) Drain() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Job, 0, len(r.jobs))
	for key, e := range r.jobs {
		out = append(out, e.job)
		if e.job.Done() {
			delete(r.jobs, key)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Submitted.Before(out[j].Submitted)
	})
	return out
}

// Serve runs the workers until ctx is done. It implements suture.Service.
func (r *Runner) Serve(ctx context.Context) error {
	logging.Info().Int("workers", r.workers).Msg("Job runner started")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.workers; i++ {
		g.Go(func() error {
			r.work(gctx)
			return nil
		})
	}
	_ = g.Wait()

	r.cancelQueued()
	logging.Info().Msg("Job runner stopped")
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (r *Runner) String() string {
	return "job-runner"
}

func (r *Runner) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-r.queue:
			r.run(ctx, e)
		}
	}
}

func (r *Runner) run(ctx context.Context, e *entry) {
	r.mu.Lock()
	if e.job.Done() {
		r.mu.Unlock()
		return
	}
	jobCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.job.Started = time.Now()
	key, runID := e.job.Key, e.job.RunID
	r.mu.Unlock()
	defer cancel()

	jobCtx = logging.ContextWithJob(logging.ContextWithNewCorrelationID(jobCtx), key)
	jobCtx = logging.ContextWithLogger(jobCtx, logging.LoggerFromContext(jobCtx).With().Str("run_id", runID).Logger())
	log := logging.Ctx(jobCtx)
	log.Info().Msg("Job started")

	msg, err := r.call(jobCtx, e.fn)

	r.mu.Lock()
	r.finishLocked(e, msg, err)
	job := e.job
	r.mu.Unlock()

	ev := log.Info()
	if job.Status == StatusError {
		ev = log.Error().Str("error", job.Error)
	}
	ev.Str("status", string(job.Status)).Dur("duration", job.Finished.Sub(job.Started)).Msg("Job done")
}

// call runs fn, turning a panic into an error.
func (r *Runner) call(ctx context.Context, fn Func) (msg string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return fn(ctx)
}

func (r *Runner) finishLocked(e *entry, msg string, err error) {
	e.job.Finished = time.Now()
	e.job.Message = msg
	switch {
	case err == nil:
		e.job.Status = StatusFinished
	case errors.Is(err, context.Canceled):
		e.job.Status = StatusCancelled
	default:
		e.job.Status = StatusError
		e.job.Error = err.Error()
	}

	started := e.job.Started
	if started.IsZero() {
		started = e.job.Finished
	}
	metrics.JobsRunning.Dec()
	metrics.RecordJob(e.job.Kind, string(e.job.Status), e.job.Finished.Sub(started))
}

func (r *Runner) cancelQueued() {
	for {
		select {
		case e := <-r.queue:
			r.mu.Lock()
			if !e.job.Done() {
				r.finishLocked(e, "", context.Canceled)
			}
			r.mu.Unlock()
		default:
			return
		}
	}
}
