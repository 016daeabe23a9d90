// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/paper-intake/pkg/types"
)

// Failure describes one paper that failed in this run.
type Failure struct {
	Key     string      `json:"key"`
	Title   string      `json:"title"`
	Stage   types.Stage `json:"stage"`
	Message string      `json:"message"`
}

// Summary is the outcome of a run.
type Summary struct {
	RunID      string
	Month      string
	Discovered int
	Processed  int
	Skipped    int
	Failed     int
	Degraded   int
	Failures   []Failure

	// Indexed is the number of index entries after reconciliation.
	Indexed int

	// DiscoveryError is set when the listing could not be fetched.
	DiscoveryError error

	// Interrupted is set when the context was cancelled between papers.
	Interrupted bool

	// LimitReached is set when the loop stopped at Limit completions.
	LimitReached bool
	Limit        int
}

// Stats converts the summary into the counters stored as last_run.
func (s Summary) Stats(started, finished time.Time) types.RunStats {
	return types.RunStats{
		RunID:      s.RunID,
		Month:      s.Month,
		StartedAt:  started,
		FinishedAt: finished,
		Discovered: s.Discovered,
		Processed:  s.Processed,
		Skipped:    s.Skipped,
		Failed:     s.Failed,
		Degraded:   s.Degraded,
	}
}

// Print writes the end-of-run report.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "\n%s: %d discovered, %d processed, %d skipped, %d failed",
		s.Month, s.Discovered, s.Processed, s.Skipped, s.Failed)
	if s.Degraded > 0 {
		fmt.Fprintf(w, " (%d without extractable text)", s.Degraded)
	}
	fmt.Fprintln(w)

	if s.DiscoveryError != nil {
		fmt.Fprintf(w, "discovery error: %v\n", s.DiscoveryError)
	}
	if s.LimitReached {
		fmt.Fprintf(w, "stopped after reaching the limit of %d papers\n", s.Limit)
	}
	if s.Interrupted {
		fmt.Fprintf(w, "interrupted; rerun the same command to resume\n")
	}
	if len(s.Failures) > 0 {
		fmt.Fprintf(w, "failed papers:\n")
		for _, f := range s.Failures {
			fmt.Fprintf(w, "  - %s [%s]: %s\n", f.Title, f.Stage, f.Message)
		}
	}
}
