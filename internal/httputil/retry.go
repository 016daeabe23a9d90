// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"io"
	"net/http"
	"time"
)

// RetryBaseDelay is the first backoff used by Exponential(0). Tests
// override this to avoid real sleeps.
var RetryBaseDelay = 1 * time.Second

const defaultMaxAttempts = 3

// DelayFunc returns how long to wait before retry number retry (0-based).
type DelayFunc func(retry int) time.Duration

// Exponential doubles base on each retry: base, 2*base, 4*base, ...
// A zero base reads RetryBaseDelay at call time.
func Exponential(base time.Duration) DelayFunc {
	return func(retry int) time.Duration {
		b := base
		if b == 0 {
			b = RetryBaseDelay
		}
		return b << uint(retry)
	}
}

// Constant waits d between every attempt.
func Constant(d time.Duration) DelayFunc {
	return func(int) time.Duration { return d }
}

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	// Zero means 3.
	MaxAttempts int

	// Delay computes the wait between attempts. Nil means Exponential(0).
	Delay DelayFunc

	// OnAttempt, when set, is called before every attempt with the
	// 1-based attempt number.
	OnAttempt func(attempt int)
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p Policy) delay(retry int) time.Duration {
	if p.Delay == nil {
		return Exponential(0)(retry)
	}
	return p.Delay(retry)
}

// Retryable reports whether a response status is worth another attempt:
// 429 Too Many Requests and every 5xx.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Do executes req until it gets a non-retryable response or the policy is
// exhausted. Transport errors, HTTP 429 and 5xx are retried; any other
// status is returned to the caller as-is.
//
// The returned int is the number of attempts made. After exhausting the
// policy on a retryable status, the last response is returned with a nil
// error so the caller can inspect it; after exhausting it on transport
// errors, the last error is returned. Requests with a body are replayed
// through req.GetBody. If ctx is cancelled while waiting,
// ctx.Err() is returned.
func Do(ctx context.Context, client *http.Client, req *http.Request, p Policy) (*http.Response, int, error) {
	maxAttempts := p.maxAttempts()

	for attempt := 1; ; attempt++ {
		if p.OnAttempt != nil {
			p.OnAttempt(attempt)
		}

		r := req.Clone(ctx)
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, attempt, err
			}
			r.Body = body
		}

		resp, err := client.Do(r)
		if err == nil && !Retryable(resp.StatusCode) {
			return resp, attempt, nil
		}

		if attempt >= maxAttempts {
			return resp, attempt, err
		}

		if resp != nil {
			// Drain and close the body before retrying.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, attempt, ctx.Err()
		case <-time.After(p.delay(attempt - 1)):
		}
	}
}
