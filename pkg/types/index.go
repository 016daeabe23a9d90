// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// IndexEntry references one completed paper in the index.
type IndexEntry struct {
	Key          string         `json:"key" yaml:"key"`
	Title        string         `json:"title" yaml:"title"`
	ArtifactPath string         `json:"artifact_path" yaml:"artifact_path"`
	Relevance    RelevanceLevel `json:"relevance,omitempty" yaml:"relevance,omitempty"`
	Degraded     bool           `json:"degraded,omitempty" yaml:"degraded,omitempty"`
	Position     int            `json:"position" yaml:"position"`
}

// IndexMonth groups the entries of one month.
type IndexMonth struct {
	Month   string       `json:"month" yaml:"month"`
	Entries []IndexEntry `json:"entries" yaml:"entries"`
}

// Index is derived data: every complete record appears exactly once,
// months most recent first, entries in discovery order.
type Index struct {
	Months []IndexMonth `json:"months" yaml:"months"`

	// UpdatedAt is the latest completion time among the entries.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Len returns the number of entries across all months.
func (ix Index) Len() int {
	n := 0
	for _, m := range ix.Months {
		n += len(m.Entries)
	}
	return n
}

// RunStats are the aggregate counters of a single pipeline run, stored in
// the tracker as last_run.
type RunStats struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Month      string    `json:"month" yaml:"month"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Discovered int       `json:"discovered" yaml:"discovered"`
	Processed  int       `json:"processed" yaml:"processed"`
	Skipped    int       `json:"skipped" yaml:"skipped"`
	Failed     int       `json:"failed" yaml:"failed"`
	Degraded   int       `json:"degraded" yaml:"degraded"`
}
