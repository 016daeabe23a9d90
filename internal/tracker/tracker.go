// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tracker persists one PaperRecord per paper key across runs. It is
// the source of truth for deduplication and resume.
//
// A tracker file is owned by one process at a time. There is no file
// locking; two concurrent runs against the same file will lose updates.
package tracker

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pdiddy/paper-intake/pkg/types"
)

// ErrStoreCorruption is wrapped by every CorruptionError.
var ErrStoreCorruption = errors.New("tracker store corrupted")

// CorruptionError reports a tracker file that cannot be trusted. Processing
// must not start against a corrupt store.
type CorruptionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tracker %s is corrupt: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("tracker %s is corrupt: %s", e.Path, e.Reason)
}

func (e *CorruptionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStoreCorruption}
	}
	return []error{ErrStoreCorruption, e.Err}
}

// Store is the tracker contract shared by the file and in-memory stores.
type Store interface {
	// Get returns the record for key.
	Get(key string) (types.PaperRecord, bool)

	// Upsert inserts or replaces the record with the same key. Records are
	// never deleted.
	Upsert(rec types.PaperRecord) error

	// All returns every record, most recent month first, then by
	// discovery position and key.
	All() []types.PaperRecord

	// SetLastRun records the statistics of the latest run.
	SetLastRun(stats types.RunStats)

	// LastRun returns the statistics of the latest run, if any.
	LastRun() (types.RunStats, bool)

	// Persist makes all changes durable.
	Persist() error
}

// records is the in-memory state shared by both stores.
type records struct {
	papers  map[string]types.PaperRecord
	lastRun *types.RunStats
}

func newRecords() records {
	return records{papers: make(map[string]types.PaperRecord)}
}

func (r *records) Get(key string) (types.PaperRecord, bool) {
	rec, ok := r.papers[key]
	return rec, ok
}

func (r *records) Upsert(rec types.PaperRecord) error {
	if rec.Key == "" {
		return errors.New("upsert: record has no key")
	}
	if !rec.Status.Valid() {
		return fmt.Errorf("upsert %s: unknown status %q", rec.Key, rec.Status)
	}
	r.papers[rec.Key] = rec
	return nil
}

func (r *records) All() []types.PaperRecord {
	out := make([]types.PaperRecord, 0, len(r.papers))
	for _, rec := range r.papers {
		out = append(out, rec)
	}
	SortRecords(out)
	return out
}

func (r *records) SetLastRun(stats types.RunStats) {
	s := stats
	r.lastRun = &s
}

func (r *records) LastRun() (types.RunStats, bool) {
	if r.lastRun == nil {
		return types.RunStats{}, false
	}
	return *r.lastRun, true
}

// SortRecords orders records by month descending, then position, then key.
func SortRecords(recs []types.PaperRecord) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Month != b.Month {
			return a.Month > b.Month
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.Key < b.Key
	})
}

// CountByStatus tallies records per status.
func CountByStatus(recs []types.PaperRecord) map[types.Status]int {
	counts := make(map[types.Status]int)
	for _, r := range recs {
		counts[r.Status]++
	}
	return counts
}

// MemoryStore is a Store without a disk. PersistErr, when set, is returned
// by Persist.
type MemoryStore struct {
	records
	PersistCalls int
	PersistErr   error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: newRecords()}
}

// Persist counts the call.
func (m *MemoryStore) Persist() error {
	m.PersistCalls++
	return m.PersistErr
}
