// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-intake/internal/analyze"
	"github.com/pdiddy/paper-intake/internal/artifact"
	"github.com/pdiddy/paper-intake/internal/convert"
	"github.com/pdiddy/paper-intake/internal/download"
	"github.com/pdiddy/paper-intake/internal/index"
	"github.com/pdiddy/paper-intake/internal/observability"
	"github.com/pdiddy/paper-intake/internal/tracker"
	"github.com/pdiddy/paper-intake/pkg/types"
)

const month = "2025-11"

var categories = []types.Category{
	{Name: "sales", Description: "Selling"},
	{Name: "customer_support", Description: "Support"},
}

const serviceReply = `{"summary": "Strong paper.", "relevance": [
 {"category": "sales", "level": "High", "rationale": "Fit."},
 {"category": "customer_support", "level": "Low", "rationale": "Weak."}],
 "opportunities": ["A product"], "overall": {"level": "High", "rationale": "Valuable."}}`

// --- fakes ---

type fakeDiscoverer struct {
	refs []types.PaperReference
	err  error
}

func (f *fakeDiscoverer) Discover(context.Context, string) ([]types.PaperReference, error) {
	return f.refs, f.err
}

type fakeDetails struct {
	abstract string
	err      error
}

func (f *fakeDetails) Resolve(_ context.Context, ref types.PaperReference) (types.PaperDetails, error) {
	if f.err != nil {
		return types.PaperDetails{}, f.err
	}
	return types.PaperDetails{Abstract: f.abstract + " " + ref.Title + "."}, nil
}

// countingFetcher records every URL it is asked for.
type countingFetcher struct {
	inner      Downloader
	urls       []string
	onFetch    func(url string)
	afterFetch func(url string)
}

func (c *countingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	c.urls = append(c.urls, url)
	if c.onFetch != nil {
		c.onFetch(url)
	}
	data, err := c.inner.Fetch(ctx, url)
	if c.afterFetch != nil {
		c.afterFetch(url)
	}
	return data, err
}

// fakeExtractor treats "%PDF-ENC" as an encrypted document and anything
// else after the header as its text.
type fakeExtractor struct{}

func (fakeExtractor) Extract(_ context.Context, data []byte) (types.Extraction, error) {
	if err := convert.CheckPDF(data); err != nil {
		return types.Extraction{}, err
	}
	if bytes.HasPrefix(data, []byte("%PDF-ENC")) {
		return types.DegradedExtraction("encrypted PDF", 0), nil
	}
	return types.Extraction{Text: string(data[len("%PDF-"):]), Pages: 1}, nil
}

// countingWriter counts artifact writes per key.
type countingWriter struct {
	*artifact.Writer
	writes map[string]int
	err    error
}

func (c *countingWriter) Write(rec types.PaperRecord, ref types.PaperReference, ext types.Extraction, det types.PaperDetails, an types.Analysis) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.writes[rec.Key]++
	return c.Writer.Write(rec, ref, ext, det, an)
}

type stubBackend struct {
	reply string
	err   error
	calls int
}

func (s *stubBackend) Source() types.AnalysisSource { return types.SourceClaude }

func (s *stubBackend) Complete(context.Context, string) (string, error) {
	s.calls++
	return s.reply, s.err
}

// persistHook runs fn after every successful Persist.
type persistHook struct {
	*tracker.MemoryStore
	fn func(calls int)
}

func (p *persistHook) Persist() error {
	if err := p.MemoryStore.Persist(); err != nil {
		return err
	}
	if p.fn != nil {
		p.fn(p.PersistCalls)
	}
	return nil
}

// --- harness ---

type harness struct {
	base       string
	pdfServer  *httptest.Server
	deadURL    string
	discoverer *fakeDiscoverer
	fetcher    *countingFetcher
	writer     *countingWriter
	backend    *stubBackend
	store      *tracker.MemoryStore
	metrics    *observability.Metrics
	out        bytes.Buffer
	orch       *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{base: t.TempDir()}

	h.pdfServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pdf/enc":
			w.Write([]byte("%PDF-ENC binary"))
		case "/pdf/html":
			w.Write([]byte("<html>login wall</html>"))
		default:
			fmt.Fprintf(w, "%%PDF-Text of %s", strings.TrimPrefix(r.URL.Path, "/pdf/"))
		}
	}))
	t.Cleanup(h.pdfServer.Close)

	dead := httptest.NewServer(http.NotFoundHandler())
	h.deadURL = dead.URL + "/pdf/c"
	dead.Close()

	h.metrics = observability.NewMetrics()
	fetcher := download.New(
		types.DownloadConfig{MaxAttempts: 2, RetryBaseDelay: time.Millisecond, MaxBytes: 1 << 20},
		types.HTTPConfig{Timeout: 5 * time.Second},
		download.WithAttemptHook(h.metrics.RecordFetchAttempt),
	)
	h.fetcher = &countingFetcher{inner: fetcher}

	storage := types.StorageConfig{BaseDir: h.base, PapersDir: "papers", ArtifactTextChars: 1000}
	h.writer = &countingWriter{Writer: artifact.NewWriter(storage), writes: map[string]int{}}
	h.backend = &stubBackend{reply: serviceReply}
	h.store = tracker.NewMemoryStore()
	h.discoverer = &fakeDiscoverer{}

	clock := time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)
	runs := 0
	h.orch = &Orchestrator{
		Discoverer: h.discoverer,
		Downloader: h.fetcher,
		Extractor:  fakeExtractor{},
		Analyzer: &analyze.ServiceAnalyzer{
			Backend:  h.backend,
			Fallback: &analyze.FallbackAnalyzer{Sentences: 2},
			Log:      zerolog.Nop(),
		},
		Artifacts:  h.writer,
		Index:      &index.Maintainer{Path: filepath.Join(h.base, "papers_index.md"), Log: zerolog.Nop()},
		Store:      h.store,
		Categories: categories,
		Metrics:    h.metrics,
		Log:        zerolog.Nop(),
		Out:        &h.out,
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
		NewRunID: func() string {
			runs++
			return fmt.Sprintf("run-%d", runs)
		},
	}
	return h
}

func (h *harness) ref(key, pdf string, pos int) types.PaperReference {
	url := pdf
	if !strings.HasPrefix(pdf, "http") {
		url = h.pdfServer.URL + "/pdf/" + pdf
	}
	return types.PaperReference{
		Key:       key,
		Title:     "Paper " + strings.ToUpper(key),
		SourceURL: "https://huggingface.co/papers/" + key,
		PDFURL:    url,
		Month:     month,
		Position:  pos,
	}
}

func (h *harness) indexFile(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.base, "papers_index.md"))
	require.NoError(t, err)
	return string(data)
}

// --- tests ---

func TestRunExampleValidEncryptedUnreachable(t *testing.T) {
	h := newHarness(t)
	h.discoverer.refs = []types.PaperReference{
		h.ref("a", "a", 0),
		h.ref("b", "enc", 1),
		h.ref("c", h.deadURL, 2),
	}

	sum, err := h.orch.Run(context.Background(), month, Options{RetryFailed: true})
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Discovered)
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Degraded)
	assert.Equal(t, 0, sum.Skipped)

	a, _ := h.store.Get("a")
	assert.Equal(t, types.StatusComplete, a.Status)
	assert.Equal(t, types.LevelHigh, a.Relevance)
	assert.False(t, a.Degraded)
	assert.Equal(t, 1, a.Attempts)
	assert.Equal(t, "papers/2025-11/a.md", a.ArtifactPath)
	assert.Equal(t, "papers/2025-11/a.pdf", a.PDFPath)

	b, _ := h.store.Get("b")
	assert.Equal(t, types.StatusComplete, b.Status)
	assert.True(t, b.Degraded)
	md, err := os.ReadFile(filepath.Join(h.base, "papers", month, "b.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "No extractable text: encrypted PDF")

	c, _ := h.store.Get("c")
	assert.Equal(t, types.StatusFailed, c.Status)
	assert.Equal(t, types.StageDownload, c.FailedStage)
	assert.Contains(t, c.Error, "fetching")
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, "Paper C", sum.Failures[0].Title)
	assert.Equal(t, types.StageDownload, sum.Failures[0].Stage)

	ix := h.indexFile(t)
	assert.Contains(t, ix, "Paper A")
	assert.Contains(t, ix, "Paper B")
	assert.NotContains(t, ix, "Paper C")
	assert.Equal(t, 2, sum.Indexed)

	assert.Contains(t, h.out.String(), "2 processed, 0 skipped, 1 failed")
	assert.Contains(t, h.out.String(), "- Paper C [download]")

	last, ok := h.store.LastRun()
	require.True(t, ok)
	assert.Equal(t, "run-1", last.RunID)
	assert.Equal(t, 2, last.Processed)
	assert.Equal(t, 1, last.Failed)

	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.PapersTotal.WithLabelValues(observability.OutcomeProcessed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.PapersTotal.WithLabelValues(observability.OutcomeFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.AnalysisTotal.WithLabelValues("claude")))
	assert.Equal(t, 4.0, testutil.ToFloat64(h.metrics.FetchAttempts), "a, b, and two tries for c")
}

func TestRunIdempotent(t *testing.T) {
	h := newHarness(t)
	h.discoverer.refs = []types.PaperReference{h.ref("a", "a", 0), h.ref("b", "b", 1)}

	_, err := h.orch.Run(context.Background(), month, Options{})
	require.NoError(t, err)
	firstRecords := h.store.All()
	firstIndex := h.indexFile(t)

	sum, err := h.orch.Run(context.Background(), month, Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Processed)
	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, firstRecords, h.store.All(), "records unchanged")
	assert.Equal(t, firstIndex, h.indexFile(t), "index byte-identical")
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, h.writer.writes, "artifacts written at most once")
	assert.Len(t, h.fetcher.urls, 2, "no downloads on the second run")

	last, _ := h.store.LastRun()
	assert.Equal(t, "run-2", last.RunID)
	assert.Equal(t, 2, last.Skipped)
}

func TestRunForceReprocesses(t *testing.T) {
	h := newHarness(t)
	h.discoverer.refs = []types.PaperReference{h.ref("a", "a", 0)}

	_, err := h.orch.Run(context.Background(), month, Options{})
	require.NoError(t, err)

	// The listing title drifted; the key did not.
	h.discoverer.refs[0].Title = "Paper A, revised"
	sum, err := h.orch.Run(context.Background(), month, Options{Force: true})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 2, h.writer.writes["a"])
	a, _ := h.store.Get("a")
	assert.Equal(t, "Paper A, revised", a.Title)
	assert.Equal(t, 2, a.Attempts)
	assert.Len(t, h.store.All(), 1)
	assert.Contains(t, h.indexFile(t), "Paper A, revised")
}

func TestRunForcedRerunThatFailsLeavesIndex(t *testing.T) {
	h := newHarness(t)
	h.discoverer.refs = []types.PaperReference{h.ref("a", "a", 0), h.ref("b", "b", 1)}
	_, err := h.orch.Run(context.Background(), month, Options{})
	require.NoError(t, err)
	require.Contains(t, h.indexFile(t), "Paper A")

	h.discoverer.refs[0].PDFURL = h.deadURL
	sum, err := h.orch.Run(context.Background(), month, Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)

	a, _ := h.store.Get("a")
	assert.Equal(t, types.StatusFailed, a.Status)
	assert.NotContains(t, h.indexFile(t), "Paper A")
	assert.Contains(t, h.indexFile(t), "Paper B")
}

func TestRunPartialFailureIsolation(t *testing.T) {
	h := newHarness(t)
	var refs []types.PaperReference
	for i := range 5 {
		key := fmt.Sprintf("p%d", i)
		refs = append(refs, h.ref(key, key, i))
	}
	refs[2].PDFURL = h.deadURL
	h.discoverer.refs = refs

	sum, err := h.orch.Run(context.Background(), month, Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Processed)
	assert.Equal(t, 1, sum.Failed)
	counts := tracker.CountByStatus(h.store.All())
	assert.Equal(t, 4, counts[types.StatusComplete])
	assert.Equal(t, 1, counts[types.StatusFailed])
	assert.Equal(t, 6, h.store.PersistCalls, "once per paper plus last_run")
}

func TestRunFallbackWhenServiceUnreachable(t *testing.T) {
	h := newHarness(t)
	h.backend.err = errors.New("dial tcp: connection refused")
	h.orch.Details = &fakeDetails{abstract: "We study agents. They work."}
	h.discoverer.refs = []types.PaperReference{h.ref("a", "a", 0), h.ref("b", "enc", 1)}

	sum, err := h.orch.Run(context.Background(), month, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 2, h.backend.calls)

	for _, key := range []string{"a", "b"} {
		rec, _ := h.store.Get(key)
		assert.Equal(t, types.StatusComplete, rec.Status, key)
		assert.Equal(t, types.LevelUnscored, rec.Relevance, key)

		md, err := os.ReadFile(filepath.Join(h.base, "papers", month, key+".md"))
		require.NoError(t, err)
		assert.Contains(t, string(md), "We study agents.", key)
		assert.Contains(t, string(md), "local fallback", key)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.AnalysisTotal.WithLabelValues("fallback")))
}

func TestRunResumesAfterInterruption(t *testing.T) {
	h := newHarness(t)
	var refs []types.PaperReference
	for i := range 4 {
		key := fmt.Sprintf("p%d", i)
		refs = append(refs, h.ref(key, key, i))
	}
	h.discoverer.refs = refs

	ctx, cancel := context.WithCancel(context.Background())
	store := &persistHook{MemoryStore: h.store, fn: func(calls int) {
		if calls == 2 {
			cancel()
		}
	}}
	h.orch.Store = store

	sum, err := h.orch.Run(ctx, month, Options{})
	require.NoError(t, err)
	assert.True(t, sum.Interrupted)
	assert.Equal(t, 2, sum.Processed)
	assert.Contains(t, h.out.String(), "rerun the same command to resume")
	assert.Contains(t, h.indexFile(t), "Paper P1", "index reconciled after interruption")

	h.fetcher.urls = nil
	h.orch.Store = h.store
	sum, err = h.orch.Run(context.Background(), month, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, []string{refs[2].PDFURL, refs[3].PDFURL}, h.fetcher.urls)
}

func TestRunLimitCountsCompletions(t *testing.T) {
	h := newHarness(t)
	h.discoverer.refs = []types.PaperReference{
		h.ref("a", "a", 0),
		h.ref("x", h.deadURL, 1),
		h.ref("b", "b", 2),
		h.ref("c", "c", 3),
	}

	sum, err := h.orch.Run(context.Background(), month, Options{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 1, sum.Failed)
	assert.True(t, sum.LimitReached)
	_, ok := h.store.Get("c")
	assert.False(t, ok)
}

func TestRunFailedPapers(t *testing.T) {
	h := newHarness(t)
	h.discoverer.refs = []types.PaperReference{h.ref("x", h.deadURL, 0)}
	_, err := h.orch.Run(context.Background(), month, Options{RetryFailed: true})
	require.NoError(t, err)

	h.fetcher.urls = nil
	sum, err := h.orch.Run(context.Background(), month, Options{RetryFailed: false})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Empty(t, h.fetcher.urls)
	assert.Contains(t, h.out.String(), "skipped (previously failed)")

	h.discoverer.refs[0].PDFURL = h.pdfServer.URL + "/pdf/x"
	sum, err = h.orch.Run(context.Background(), month, Options{RetryFailed: true})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	x, _ := h.store.Get("x")
	assert.Equal(t, types.StatusComplete, x.Status)
	assert.Equal(t, 2, x.Attempts)
	assert.Empty(t, x.Error)
}

func TestRunStageFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness) types.PaperReference
		stage types.Stage
	}{
		{
			name:  "not a PDF",
			setup: func(h *harness) types.PaperReference { return h.ref("h", "html", 0) },
			stage: types.StageExtract,
		},
		{
			name: "artifact write fails",
			setup: func(h *harness) types.PaperReference {
				h.writer.err = errors.New("disk full")
				return h.ref("a", "a", 0)
			},
			stage: types.StageWrite,
		},
		{
			name: "no PDF URL",
			setup: func(h *harness) types.PaperReference {
				r := h.ref("n", "n", 0)
				r.PDFURL = ""
				return r
			},
			stage: types.StageDownload,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ref := tt.setup(h)
			h.discoverer.refs = []types.PaperReference{ref}

			sum, err := h.orch.Run(context.Background(), month, Options{})
			require.NoError(t, err)
			assert.Equal(t, 1, sum.Failed)

			rec, _ := h.store.Get(ref.Key)
			assert.Equal(t, types.StatusFailed, rec.Status)
			assert.Equal(t, tt.stage, rec.FailedStage)
			assert.NotEmpty(t, rec.Error)
		})
	}
}

func TestRunDetailsFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.orch.Details = &fakeDetails{err: errors.New("page gone")}
	h.discoverer.refs = []types.PaperReference{h.ref("a", "a", 0)}

	sum, err := h.orch.Run(context.Background(), month, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
}

func TestRunNoPapers(t *testing.T) {
	h := newHarness(t)
	sum, err := h.orch.Run(context.Background(), month, Options{})
	require.NoError(t, err)
	assert.Zero(t, sum.Discovered)
	assert.Contains(t, h.out.String(), "no papers found for 2025-11")
	assert.Contains(t, h.indexFile(t), "Total papers: 0")
}

func TestRunDiscoveryFailureIsReported(t *testing.T) {
	h := newHarness(t)
	h.discoverer.err = errors.New("listing returned 503")

	sum, err := h.orch.Run(context.Background(), month, Options{})
	require.NoError(t, err)
	require.Error(t, sum.DiscoveryError)
	assert.Contains(t, h.out.String(), "discovery error: listing returned 503")
	_, ok := h.store.LastRun()
	assert.True(t, ok)
}

func TestRunPersistFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.store.PersistErr = errors.New("read-only file system")
	h.discoverer.refs = []types.PaperReference{h.ref("a", "a", 0), h.ref("b", "b", 1)}

	_, err := h.orch.Run(context.Background(), month, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persisting tracker after a")
	assert.Len(t, h.fetcher.urls, 1, "run stops at the first persist failure")
}

func TestRunRateDelaySpacesFetches(t *testing.T) {
	h := newHarness(t)
	h.discoverer.refs = []types.PaperReference{h.ref("a", "a", 0), h.ref("b", "b", 1), h.ref("c", "c", 2)}

	var stamps []time.Time
	h.fetcher.onFetch = func(string) { stamps = append(stamps, time.Now()) }

	_, err := h.orch.Run(context.Background(), month, Options{RateDelay: 30 * time.Millisecond})
	require.NoError(t, err)
	require.Len(t, stamps, 3)
	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), 25*time.Millisecond)
	}
}

func TestRunRateDelayPausesAfterSlowFetch(t *testing.T) {
	h := newHarness(t)
	h.discoverer.refs = []types.PaperReference{h.ref("a", "a", 0), h.ref("b", "b", 1)}

	var starts, ends []time.Time
	h.fetcher.onFetch = func(string) { starts = append(starts, time.Now()) }
	h.fetcher.afterFetch = func(string) {
		time.Sleep(80 * time.Millisecond)
		ends = append(ends, time.Now())
	}

	_, err := h.orch.Run(context.Background(), month, Options{RateDelay: 50 * time.Millisecond})
	require.NoError(t, err)
	require.Len(t, starts, 2)
	require.Len(t, ends, 2)
	assert.GreaterOrEqual(t, starts[1].Sub(ends[0]), 45*time.Millisecond,
		"the pause runs from the end of one fetch to the start of the next")
}

func TestSkippedPapersDoNotWaitForRateLimit(t *testing.T) {
	h := newHarness(t)
	h.discoverer.refs = []types.PaperReference{h.ref("a", "a", 0), h.ref("b", "b", 1)}
	_, err := h.orch.Run(context.Background(), month, Options{})
	require.NoError(t, err)

	start := time.Now()
	_, err = h.orch.Run(context.Background(), month, Options{RateDelay: time.Second})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestStageErrorUnwraps(t *testing.T) {
	cause := &download.NetworkError{URL: "u", StatusCode: 404, Attempts: 1}
	err := error(&StageError{Stage: types.StageDownload, Key: "k", Err: cause})
	assert.ErrorIs(t, err, download.ErrNetwork)
	assert.Equal(t, "download k: fetching u: HTTP 404 after 1 attempt(s)", err.Error())
}
