// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-intake pipeline.
package types

import (
	"fmt"
	"time"
)

// PaperReference is a discovered paper before any processing. Discovery
// creates it; nothing mutates it afterwards.
type PaperReference struct {
	// Key is the stable identity of the paper (see discover.Key).
	Key string `json:"key" yaml:"key"`

	// Title is the title as it appeared on the listing page.
	Title string `json:"title" yaml:"title"`

	// SourceURL is the paper's page on the aggregation site.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// PDFURL is where the PDF is fetched from.
	PDFURL string `json:"pdf_url" yaml:"pdf_url"`

	// RepoURL is a code repository link, when the listing shows one.
	RepoURL string `json:"repo_url,omitempty" yaml:"repo_url,omitempty"`

	// Month is the listing month in YYYY-MM form.
	Month string `json:"month" yaml:"month"`

	// Position is the zero-based order of the paper in the listing.
	Position int `json:"position" yaml:"position"`
}

// PaperDetails holds best-effort metadata scraped from a paper's own page.
type PaperDetails struct {
	ArxivURL string `json:"arxiv_url,omitempty" yaml:"arxiv_url,omitempty"`
	PDFURL   string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`
	RepoURL  string `json:"repo_url,omitempty" yaml:"repo_url,omitempty"`
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`
}

// Status is the processing state of a PaperRecord.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDownloaded Status = "downloaded"
	StatusExtracted  Status = "extracted"
	StatusAnalyzed   Status = "analyzed"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// statusRank orders the forward progression. Failed sits outside it.
var statusRank = map[Status]int{
	StatusPending:    0,
	StatusDownloaded: 1,
	StatusExtracted:  2,
	StatusAnalyzed:   3,
	StatusComplete:   4,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether s ends a processing attempt.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Stage names the pipeline step a paper failed in.
type Stage string

const (
	StageDetails  Stage = "details"
	StageDownload Stage = "download"
	StageExtract  Stage = "extract"
	StageAnalyze  Stage = "analyze"
	StageWrite    Stage = "write"
)

// PaperRecord is the persisted tracking entry for one paper across runs.
type PaperRecord struct {
	Key       string `json:"key" yaml:"key"`
	Title     string `json:"title" yaml:"title"`
	Month     string `json:"month" yaml:"month"`
	SourceURL string `json:"source_url" yaml:"source_url"`
	PDFURL    string `json:"pdf_url" yaml:"pdf_url"`
	RepoURL   string `json:"repo_url,omitempty" yaml:"repo_url,omitempty"`
	Position  int    `json:"position" yaml:"position"`

	Status      Status `json:"status" yaml:"status"`
	FailedStage Stage  `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`

	// Degraded is set when the PDF had no extractable text.
	Degraded bool `json:"degraded,omitempty" yaml:"degraded,omitempty"`

	// Relevance is the overall level from the last successful analysis.
	// Kept here so the index can be rebuilt from the tracker alone.
	Relevance RelevanceLevel `json:"relevance,omitempty" yaml:"relevance,omitempty"`

	ArtifactPath string `json:"artifact_path,omitempty" yaml:"artifact_path,omitempty"`
	PDFPath      string `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`

	// Attempts counts processing attempts, including the successful one.
	Attempts int `json:"attempts" yaml:"attempts"`

	DiscoveredAt time.Time  `json:"discovered_at" yaml:"discovered_at"`
	DownloadedAt *time.Time `json:"downloaded_at,omitempty" yaml:"downloaded_at,omitempty"`
	ExtractedAt  *time.Time `json:"extracted_at,omitempty" yaml:"extracted_at,omitempty"`
	AnalyzedAt   *time.Time `json:"analyzed_at,omitempty" yaml:"analyzed_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty" yaml:"failed_at,omitempty"`
}

// NewRecord creates a pending record for a freshly discovered reference.
func NewRecord(ref PaperReference, now time.Time) PaperRecord {
	return PaperRecord{
		Key:          ref.Key,
		Title:        ref.Title,
		Month:        ref.Month,
		SourceURL:    ref.SourceURL,
		PDFURL:       ref.PDFURL,
		RepoURL:      ref.RepoURL,
		Position:     ref.Position,
		Status:       StatusPending,
		DiscoveredAt: now,
	}
}

// Advance moves the record forward to next and stamps the matching
// timestamp. Moving backwards, or leaving a terminal state, is an error;
// use Reset to start a new attempt.
func (r *PaperRecord) Advance(next Status, now time.Time) error {
	if r.Status.Terminal() {
		return fmt.Errorf("record %s: cannot move from terminal status %s to %s", r.Key, r.Status, next)
	}
	if next == StatusFailed {
		return fmt.Errorf("record %s: use Fail to mark a failure", r.Key)
	}
	cur, ok := statusRank[r.Status]
	if !ok {
		return fmt.Errorf("record %s: unknown status %q", r.Key, r.Status)
	}
	nr, ok := statusRank[next]
	if !ok {
		return fmt.Errorf("record %s: unknown status %q", r.Key, next)
	}
	if nr <= cur {
		return fmt.Errorf("record %s: status %s does not advance %s", r.Key, next, r.Status)
	}

	t := now
	switch next {
	case StatusDownloaded:
		r.DownloadedAt = &t
	case StatusExtracted:
		r.ExtractedAt = &t
	case StatusAnalyzed:
		r.AnalyzedAt = &t
	case StatusComplete:
		r.CompletedAt = &t
		r.Error = ""
		r.FailedStage = ""
		r.FailedAt = nil
	}
	r.Status = next
	return nil
}

// Fail marks the record failed at stage with msg.
func (r *PaperRecord) Fail(stage Stage, msg string, now time.Time) {
	t := now
	r.Status = StatusFailed
	r.FailedStage = stage
	r.Error = msg
	r.FailedAt = &t
}

// Reset starts a new processing attempt: status returns to pending and
// per-attempt state is cleared. Identity and discovery time are kept.
func (r *PaperRecord) Reset(ref PaperReference) {
	r.Title = ref.Title
	r.SourceURL = ref.SourceURL
	r.PDFURL = ref.PDFURL
	r.RepoURL = ref.RepoURL
	r.Month = ref.Month
	r.Position = ref.Position
	r.Status = StatusPending
	r.FailedStage = ""
	r.Error = ""
	r.Degraded = false
	r.Relevance = ""
	r.DownloadedAt = nil
	r.ExtractedAt = nil
	r.AnalyzedAt = nil
	r.CompletedAt = nil
	r.FailedAt = nil
	r.Attempts++
}

// Extraction is the outcome of converting PDF bytes to text.
type Extraction struct {
	// Text is the extracted text, or the degraded marker.
	Text string `json:"text" yaml:"text"`

	// Degraded is true when the PDF yielded no usable text.
	Degraded bool `json:"degraded" yaml:"degraded"`

	// Note explains a degraded extraction (encrypted, image-only, ...).
	Note string `json:"note,omitempty" yaml:"note,omitempty"`

	// Pages is the page count when known.
	Pages int `json:"pages,omitempty" yaml:"pages,omitempty"`
}

// DegradedMarker returns the text placed where full text is unavailable.
func DegradedMarker(note string) string {
	if note == "" {
		note = "unknown reason"
	}
	return "[No extractable text: " + note + "]"
}

// DegradedExtraction builds a degraded Extraction carrying the marker.
func DegradedExtraction(note string, pages int) Extraction {
	return Extraction{
		Text:     DegradedMarker(note),
		Degraded: true,
		Note:     note,
		Pages:    pages,
	}
}

// Truncate shortens s to at most n runes. The second return reports
// whether anything was cut.
func Truncate(s string, n int) (string, bool) {
	if n <= 0 || len(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}
