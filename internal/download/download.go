// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download fetches remote documents into memory with bounded retry.
// It never touches the disk; persisting the bytes is the artifact writer's job.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/paper-intake/internal/httputil"
	"github.com/pdiddy/paper-intake/pkg/types"
)

// ErrNetwork is wrapped by every NetworkError.
var ErrNetwork = errors.New("network failure")

// ErrTooLarge is the cause of a NetworkError whose body exceeded MaxBytes.
var ErrTooLarge = errors.New("response exceeds size limit")

// NetworkError reports a fetch that failed after retries were exhausted or
// that received a non-retryable status.
type NetworkError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Attempts   int
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetching %s: HTTP %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	case e.Err != nil:
		return fmt.Sprintf("fetching %s: %v (after %d attempt(s))", e.URL, e.Err, e.Attempts)
	default:
		return fmt.Sprintf("fetching %s failed", e.URL)
	}
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *NetworkError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNetwork}
	}
	return []error{ErrNetwork, e.Err}
}

// Fetcher downloads documents over HTTP.
type Fetcher struct {
	client    *http.Client
	userAgent string
	accept    string
	maxBytes  int64
	policy    httputil.Policy
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithClient replaces the HTTP client (tests use the httptest client).
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithAccept sets the Accept header; the default asks for PDF.
func WithAccept(accept string) Option {
	return func(f *Fetcher) { f.accept = accept }
}

// WithAttemptHook is called before every HTTP attempt.
func WithAttemptHook(fn func()) Option {
	return func(f *Fetcher) {
		f.policy.OnAttempt = func(int) { fn() }
	}
}

// New creates a Fetcher from the download and HTTP settings.
func New(dl types.DownloadConfig, hc types.HTTPConfig, opts ...Option) *Fetcher {
	timeout := hc.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	maxBytes := dl.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 100 * 1024 * 1024
	}
	f := &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: hc.UserAgent,
		accept:    "application/pdf, */*;q=0.8",
		maxBytes:  maxBytes,
		policy: httputil.Policy{
			MaxAttempts: dl.MaxAttempts,
			Delay:       httputil.Exponential(dl.RetryBaseDelay),
		},
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch GETs url and returns the full body. Transport errors, 429 and 5xx
// are retried per the policy; anything else that is not 2xx fails at once.
// All failures are *NetworkError.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("creating request: %w", err)}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if f.accept != "" {
		req.Header.Set("Accept", f.accept)
	}

	resp, attempts, err := httputil.Do(ctx, f.client, req, f.policy)
	if err != nil {
		return nil, &NetworkError{URL: url, Attempts: attempts, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode, Attempts: attempts}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &NetworkError{URL: url, Attempts: attempts, Err: fmt.Errorf("reading body: %w", err)}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, &NetworkError{URL: url, Attempts: attempts, Err: ErrTooLarge}
	}
	return data, nil
}
