// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the intake of one month: discover, then for each
// paper download, extract, analyze, and write the artifact, recording every
// outcome in the tracker. A paper's failure never stops the batch; the
// tracker is persisted after every paper so an interrupted run resumes
// where it stopped.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-intake/internal/analyze"
	"github.com/pdiddy/paper-intake/internal/observability"
	"github.com/pdiddy/paper-intake/internal/tracker"
	"github.com/pdiddy/paper-intake/pkg/types"
)

// Discoverer lists the papers of a month.
type Discoverer interface {
	Discover(ctx context.Context, month string) ([]types.PaperReference, error)
}

// DetailResolver scrapes a paper's own page for extra metadata.
type DetailResolver interface {
	Resolve(ctx context.Context, ref types.PaperReference) (types.PaperDetails, error)
}

// Downloader fetches a PDF.
type Downloader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Extractor converts PDF bytes to text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (types.Extraction, error)
}

// ArtifactWriter stores the per-paper files and returns their paths.
type ArtifactWriter interface {
	WritePDF(month, key string, data []byte) (string, error)
	Write(rec types.PaperRecord, ref types.PaperReference, ext types.Extraction, det types.PaperDetails, an types.Analysis) (string, error)
}

// IndexMaintainer rebuilds the index from the tracker records.
type IndexMaintainer interface {
	Reconcile(ctx context.Context, records []types.PaperRecord, w io.Writer) (types.Index, error)
}

// Options control a single run.
type Options struct {
	// Force reprocesses papers that are already complete.
	Force bool

	// Limit stops the run after this many papers complete. Zero means no limit.
	Limit int

	// RateDelay is the minimum pause between the end of one fetched paper and
	// the start of the next paper's fetch.
	RateDelay time.Duration

	// RetryFailed reprocesses papers whose last attempt failed.
	RetryFailed bool
}

// StageError is a paper failure tagged with the stage it happened in.
type StageError struct {
	Stage types.Stage
	Key   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Key, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Orchestrator wires the stages together. Details and Metrics are
// optional; everything else is required.
type Orchestrator struct {
	Discoverer Discoverer
	Details    DetailResolver
	Downloader Downloader
	Extractor  Extractor
	Analyzer   analyze.Analyzer
	Artifacts  ArtifactWriter
	Index      IndexMaintainer
	Store      tracker.Store
	Categories []types.Category
	Metrics    *observability.Metrics
	Log        zerolog.Logger

	// Out receives operator-facing progress lines and the summary.
	Out io.Writer

	// Now and NewRunID default to time.Now and uuid.NewString.
	Now      func() time.Time
	NewRunID func() string
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) out() io.Writer {
	if o.Out == nil {
		return io.Discard
	}
	return o.Out
}

// Run processes month. The returned error is non-nil only when the tracker
// can no longer be persisted or the index cannot be written; per-paper
// failures and discovery failures are reported in the Summary.
func (o *Orchestrator) Run(ctx context.Context, month string, opts Options) (Summary, error) {
	var runID string
	if o.NewRunID != nil {
		runID = o.NewRunID()
	} else {
		runID = uuid.NewString()
	}
	started := o.now()
	log := observability.WithRun(o.Log, runID, month)
	w := o.out()

	sum := Summary{RunID: runID, Month: month, Limit: opts.Limit}
	fmt.Fprintf(w, "processing papers for %s\n", month)
	log.Info().Bool("force", opts.Force).Int("limit", opts.Limit).Msg("run started")

	refs, err := o.Discoverer.Discover(ctx, month)
	switch {
	case err != nil:
		sum.DiscoveryError = err
		log.Error().Err(err).Msg("discovery failed")
		fmt.Fprintf(w, "discovery failed: %v\n", err)
	case len(refs) == 0:
		fmt.Fprintf(w, "no papers found for %s\n", month)
	}
	sum.Discovered = len(refs)

	// Armed when a paper finishes so the next fetch starts at least
	// RateDelay later. Skipped papers never touch it.
	var limiter *rate.Limiter

	for i, ref := range refs {
		if ctx.Err() != nil {
			sum.Interrupted = true
			break
		}
		if opts.Limit > 0 && sum.Processed >= opts.Limit {
			sum.LimitReached = true
			break
		}

		fmt.Fprintf(w, "[%d/%d] %s\n", i+1, len(refs), ref.Title)
		rec, exists := o.Store.Get(ref.Key)
		if exists {
			if reason, skip := skipReason(rec, opts); skip {
				fmt.Fprintf(w, "  skipped (%s)\n", reason)
				sum.Skipped++
				o.recordPaper(observability.OutcomeSkipped)
				continue
			}
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				sum.Interrupted = true
				break
			}
		}

		if exists {
			rec.Reset(ref)
		} else {
			rec = types.NewRecord(ref, o.now())
			rec.Attempts = 1
		}

		// Stages run to completion once started; interruption is honoured
		// between papers.
		rec, perr := o.process(context.WithoutCancel(ctx), rec, ref, log)
		if opts.RateDelay > 0 {
			limiter = pauseAfter(opts.RateDelay)
		}

		if err := o.Store.Upsert(rec); err != nil {
			return sum, fmt.Errorf("recording %s: %w", ref.Key, err)
		}
		if err := o.Store.Persist(); err != nil {
			return sum, fmt.Errorf("persisting tracker after %s: %w", ref.Key, err)
		}

		if perr != nil {
			var se *StageError
			stage := rec.FailedStage
			if errors.As(perr, &se) {
				stage = se.Stage
			}
			sum.Failed++
			sum.Failures = append(sum.Failures, Failure{Key: ref.Key, Title: ref.Title, Stage: stage, Message: rec.Error})
			o.recordPaper(observability.OutcomeFailed)
			fmt.Fprintf(w, "  failed at %s: %s\n", stage, rec.Error)
			log.Warn().Str("key", ref.Key).Str("stage", string(stage)).Str("error", rec.Error).Msg("paper failed")
			continue
		}

		sum.Processed++
		o.recordPaper(observability.OutcomeProcessed)
		if rec.Degraded {
			sum.Degraded++
			o.recordPaper(observability.OutcomeDegraded)
			fmt.Fprintf(w, "  complete (no extractable text)\n")
		} else {
			fmt.Fprintf(w, "  complete\n")
		}
		log.Info().Str("key", ref.Key).Str("relevance", string(rec.Relevance)).Bool("degraded", rec.Degraded).Msg("paper complete")
	}

	ix, err := o.Index.Reconcile(context.WithoutCancel(ctx), o.Store.All(), w)
	if err != nil {
		return sum, fmt.Errorf("reconciling index: %w", err)
	}
	sum.Indexed = ix.Len()

	o.Store.SetLastRun(sum.Stats(started, o.now()))
	if err := o.Store.Persist(); err != nil {
		return sum, fmt.Errorf("persisting tracker: %w", err)
	}

	sum.Print(w)
	log.Info().Int("processed", sum.Processed).Int("skipped", sum.Skipped).Int("failed", sum.Failed).
		Bool("interrupted", sum.Interrupted).Msg("run finished")
	return sum, nil
}

// skipReason reports whether an existing record is left alone.
func skipReason(rec types.PaperRecord, opts Options) (string, bool) {
	if opts.Force {
		return "", false
	}
	switch rec.Status {
	case types.StatusComplete:
		return "already complete", true
	case types.StatusFailed:
		if !opts.RetryFailed {
			return "previously failed", true
		}
	}
	return "", false
}

// process runs the stages for one paper and returns the updated record.
// On failure the record is marked failed and the error is a *StageError.
func (o *Orchestrator) process(ctx context.Context, rec types.PaperRecord, ref types.PaperReference, log zerolog.Logger) (types.PaperRecord, error) {
	fail := func(stage types.Stage, err error) (types.PaperRecord, error) {
		rec.Fail(stage, err.Error(), o.now())
		return rec, &StageError{Stage: stage, Key: rec.Key, Err: err}
	}

	var det types.PaperDetails
	if o.Details != nil {
		start := time.Now()
		d, err := o.Details.Resolve(ctx, ref)
		o.observe(types.StageDetails, start)
		if err != nil {
			log.Warn().Err(err).Str("key", ref.Key).Msg("details unavailable")
		} else {
			det = d
		}
	}
	if rec.RepoURL == "" {
		rec.RepoURL = det.RepoURL
	}

	pdfURL := ref.PDFURL
	if pdfURL == "" {
		pdfURL = det.PDFURL
	}
	if pdfURL == "" {
		return fail(types.StageDownload, errors.New("no PDF URL for paper"))
	}
	if rec.PDFURL == "" {
		rec.PDFURL = pdfURL
	}

	start := time.Now()
	data, err := o.Downloader.Fetch(ctx, pdfURL)
	o.observe(types.StageDownload, start)
	if err != nil {
		return fail(types.StageDownload, err)
	}
	pdfPath, err := o.Artifacts.WritePDF(rec.Month, rec.Key, data)
	if err != nil {
		return fail(types.StageWrite, err)
	}
	rec.PDFPath = pdfPath
	if err := rec.Advance(types.StatusDownloaded, o.now()); err != nil {
		return fail(types.StageDownload, err)
	}

	start = time.Now()
	ext, err := o.Extractor.Extract(ctx, data)
	o.observe(types.StageExtract, start)
	if err != nil {
		return fail(types.StageExtract, err)
	}
	rec.Degraded = ext.Degraded
	if err := rec.Advance(types.StatusExtracted, o.now()); err != nil {
		return fail(types.StageExtract, err)
	}

	start = time.Now()
	an, err := o.Analyzer.Analyze(ctx, analyze.Input{
		Title:    ref.Title,
		Abstract: det.Abstract,
		Text:     ext.Text,
		Degraded: ext.Degraded,
	}, o.Categories)
	o.observe(types.StageAnalyze, start)
	if err != nil {
		return fail(types.StageAnalyze, err)
	}
	if o.Metrics != nil {
		o.Metrics.RecordAnalysis(an.Source)
	}
	if err := rec.Advance(types.StatusAnalyzed, o.now()); err != nil {
		return fail(types.StageAnalyze, err)
	}

	start = time.Now()
	path, err := o.Artifacts.Write(rec, ref, ext, det, an)
	o.observe(types.StageWrite, start)
	if err != nil {
		return fail(types.StageWrite, err)
	}
	rec.ArtifactPath = path
	rec.Relevance = an.Overall.Level
	if err := rec.Advance(types.StatusComplete, o.now()); err != nil {
		return fail(types.StageWrite, err)
	}
	return rec, nil
}

func (o *Orchestrator) observe(stage types.Stage, start time.Time) {
	if o.Metrics != nil {
		o.Metrics.ObserveStage(stage, start)
	}
}

func (o *Orchestrator) recordPaper(outcome string) {
	if o.Metrics != nil {
		o.Metrics.RecordPaper(outcome)
	}
}

// pauseAfter returns a limiter whose only token was spent now, so its next
// Wait returns no sooner than d from now.
func pauseAfter(d time.Duration) *rate.Limiter {
	l := rate.NewLimiter(rate.Every(d), 1)
	l.Reserve()
	return l
}
