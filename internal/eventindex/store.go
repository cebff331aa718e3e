// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

// Package eventindex records which provider event ids were posted for each
// participant and phase. It is a local BadgerDB store; every update is a
// read-modify-write inside one transaction and is retried on conflict, so
// concurrent jobs for the same participant cannot lose each other's ids.
package eventindex

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/UOSAN/message-automation/internal/config"
	"github.com/UOSAN/message-automation/internal/logging"
	"github.com/UOSAN/message-automation/internal/metrics"
	"github.com/UOSAN/message-automation/internal/models"
)

const (
	keyPrefix          = "events:"
	maxConflictRetries = 10
	gcInterval         = 10 * time.Minute
	gcDiscardRatio     = 0.5
)

// Entry is the set of event ids posted for one participant phase.
type Entry struct {
	Participant string       `json:"participant"`
	Phase       models.Phase `json:"phase"`
	EventIDs    []int64      `json:"event_ids"`
	RunID       string       `json:"run_id,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Store is a BadgerDB-backed event id index.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the index described by cfg.
func Open(cfg *config.IndexConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open event index: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Bool("in_memory", cfg.InMemory).Msg("Event index opened")
	return &Store{db: db}, nil
}

// OpenInMemory opens a throwaway index.
func OpenInMemory() (*Store, error) {
	return Open(&config.IndexConfig{InMemory: true})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(participant string, phase models.Phase) []byte {
	return []byte(keyPrefix + participant + ":" + string(phase))
}

// update runs fn in a read-write transaction, retrying on conflict.
func (s *Store) update(op string, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			metrics.RecordIndexOperation(op, err)
			return err
		}
	}
	metrics.RecordIndexOperation(op, err)
	return fmt.Errorf("%s: gave up after %d conflicts: %w", op, maxConflictRetries, err)
}

func readEntry(txn *badger.Txn, k []byte) (*Entry, error) {
	item, err := txn.Get(k)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &e)
	}); err != nil {
		return nil, fmt.Errorf("decode %s: %w", k, err)
	}
	return &e, nil
}

func writeEntry(txn *badger.Txn, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return txn.Set(key(e.Participant, e.Phase), data)
}

// Record adds ids to the participant's phase entry.
func (s *Store) Record(ctx context.Context, participant string, phase models.Phase, runID string, ids []int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update("record", func(txn *badger.Txn) error {
		e, err := readEntry(txn, key(participant, phase))
		if err != nil {
			return err
		}
		if e == nil {
			e = &Entry{Participant: participant, Phase: phase}
		}
		for _, id := range ids {
			if !slices.Contains(e.EventIDs, id) {
				e.EventIDs = append(e.EventIDs, id)
			}
		}
		e.RunID = runID
		e.UpdatedAt = time.Now().UTC()
		return writeEntry(txn, e)
	})
}

// Get returns the participant's entry for phase, or nil.
func (s *Store) Get(ctx context.Context, participant string, phase models.Phase) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var e *Entry
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		e, err = readEntry(txn, key(participant, phase))
		return err
	})
	metrics.RecordIndexOperation("get", err)
	return e, err
}

// Has reports whether any events were recorded for the participant's phase.
func (s *Store) Has(ctx context.Context, participant string, phase models.Phase) (bool, error) {
	e, err := s.Get(ctx, participant, phase)
	if err != nil {
		return false, err
	}
	return e != nil && len(e.EventIDs) > 0, nil
}

// Entries returns every phase entry for the participant.
func (s *Store) Entries(ctx context.Context, participant string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix + participant + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	metrics.RecordIndexOperation("entries", err)
	return entries, err
}

// Forget removes ids from every phase entry of the participant. Entries
// left empty are deleted.
func (s *Store) Forget(ctx context.Context, participant string, ids []int64) error {
	entries, err := s.Entries(ctx, participant)
	if err != nil {
		return err
	}
	for _, stale := range entries {
		phase := stale.Phase
		err := s.update("forget", func(txn *badger.Txn) error {
			e, err := readEntry(txn, key(participant, phase))
			if err != nil || e == nil {
				return err
			}
			e.EventIDs = slices.DeleteFunc(e.EventIDs, func(id int64) bool {
				return slices.Contains(ids, id)
			})
			if len(e.EventIDs) == 0 {
				return txn.Delete(key(participant, phase))
			}
			e.UpdatedAt = time.Now().UTC()
			return writeEntry(txn, e)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Replace swaps old ids for new ones in whichever entry holds them, used
// when events are reposted under new ids.
func (s *Store) Replace(ctx context.Context, participant string, replacement map[int64]int64) error {
	entries, err := s.Entries(ctx, participant)
	if err != nil {
		return err
	}
	for _, stale := range entries {
		phase := stale.Phase
		err := s.update("replace", func(txn *badger.Txn) error {
			e, err := readEntry(txn, key(participant, phase))
			if err != nil || e == nil {
				return err
			}
			changed := false
			for i, id := range e.EventIDs {
				if n, ok := replacement[id]; ok {
					e.EventIDs[i] = n
					changed = true
				}
			}
			if !changed {
				return nil
			}
			e.UpdatedAt = time.Now().UTC()
			return writeEntry(txn, e)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Serve runs value-log garbage collection until ctx is done. It implements
// suture.Service. An in-memory index has no value log and only waits.
func (s *Store) Serve(ctx context.Context) error {
	if s.db.Opts().InMemory {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.collectGarbage()
		}
	}
}

// collectGarbage rewrites value-log files until badger reports nothing left
// to reclaim.
func (s *Store) collectGarbage() {
	for {
		err := s.db.RunValueLogGC(gcDiscardRatio)
		if err == nil {
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) &&
			!errors.Is(err, badger.ErrGCInMemoryMode) {
			logging.Warn().Err(err).Msg("Event index value log GC failed")
		}
		return
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Store) String() string {
	return "event-index"
}

