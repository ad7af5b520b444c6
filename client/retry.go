package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// RetryPolicy configures retry behavior for report downloads. Crawl
// requests are never retried: each POST starts a new crawl.
type RetryPolicy struct {
	MaxRetries int           // Maximum number of retries (2 = 3 total attempts)
	BaseDelay  time.Duration // Initial backoff delay
	MaxDelay   time.Duration // Maximum backoff cap
}

// DefaultRetryPolicy returns a RetryPolicy with 2 retries (3 attempts),
// 500ms base delay and 10s max delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
	}
}

// withRetry calls attempt until it succeeds, fails permanently, or the
// policy is exhausted. The delay doubles after every failed attempt.
func withRetry[T any](ctx context.Context, policy RetryPolicy, attempt func() (T, error)) (T, error) {
	backoff := policy.BaseDelay
	var (
		value    T
		err      error
		attempts int
	)

	for try := 0; try <= policy.MaxRetries; try++ {
		attempts = try + 1

		if try > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return value, fmt.Errorf("%w: %w (after %d attempts)", ctx.Err(), err, try)
			case <-timer.C:
				backoff = min(backoff*2, policy.MaxDelay)
			}
		}

		value, err = attempt()
		if err == nil || !shouldRetry(err) {
			return value, err
		}
	}

	return value, fmt.Errorf("%w (after %d attempts)", err, attempts)
}

// shouldRetry reports whether err is transient.
// Returns true for:
// - Network errors (timeout, connection refused, DNS failure)
// - HTTP 429 (rate limited)
// - HTTP 5xx (server errors)
// Returns false for cancellation and other 4xx responses.
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
