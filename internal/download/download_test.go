// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-intake/pkg/types"
)

const fakePDFContent = "%PDF-1.4 fake"

func testFetcher(ts *httptest.Server, opts ...Option) *Fetcher {
	dl := types.DownloadConfig{
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
		MaxBytes:       1024,
	}
	hc := types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "paper-intake-test/0.1"}
	return New(dl, hc, append([]Option{WithClient(ts.Client())}, opts...)...)
}

func TestFetchSuccess(t *testing.T) {
	var gotUA, gotAccept string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, fakePDFContent)
	}))
	defer ts.Close()

	data, err := testFetcher(ts).Fetch(context.Background(), ts.URL+"/pdf/2511.00001")
	require.NoError(t, err)
	assert.Equal(t, fakePDFContent, string(data))
	assert.Equal(t, "paper-intake-test/0.1", gotUA)
	assert.Contains(t, gotAccept, "application/pdf")
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, fakePDFContent)
	}))
	defer ts.Close()

	var hooks int32
	f := testFetcher(ts, WithAttemptHook(func() { atomic.AddInt32(&hooks, 1) }))
	data, err := f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, fakePDFContent, string(data))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hooks))
}

func TestFetchExhaustedRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := testFetcher(ts).Fetch(context.Background(), ts.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)

	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, http.StatusBadGateway, ne.StatusCode)
	assert.Equal(t, 3, ne.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchNotFoundFailsImmediately(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer ts.Close()

	_, err := testFetcher(ts).Fetch(context.Background(), ts.URL)
	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, http.StatusNotFound, ne.StatusCode)
	assert.Equal(t, 1, ne.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := ts.URL
	ts.Close()

	_, err := testFetcher(ts).Fetch(context.Background(), url)
	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Zero(t, ne.StatusCode)
	assert.Equal(t, 3, ne.Attempts)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestFetchTooLarge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 2048))
	}))
	defer ts.Close()

	_, err := testFetcher(ts).Fetch(context.Background(), ts.URL)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestFetchCustomAccept(t *testing.T) {
	var gotAccept string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		fmt.Fprint(w, "<html></html>")
	}))
	defer ts.Close()

	_, err := testFetcher(ts, WithAccept("text/html")).Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "text/html", gotAccept)
}

func TestNetworkErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *NetworkError
		want string
	}{
		{"status", &NetworkError{URL: "u", StatusCode: 503, Attempts: 3}, "fetching u: HTTP 503 after 3 attempt(s)"},
		{"cause", &NetworkError{URL: "u", Attempts: 2, Err: errors.New("boom")}, "fetching u: boom (after 2 attempt(s))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
