package result

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/lukemcguire/crawlwatch/client"
	"github.com/lukemcguire/crawlwatch/stream"
)

// ErrorCategory represents the classification of a failed run.
type ErrorCategory string

const (
	CategoryTimeout           ErrorCategory = "timeout"
	CategoryDNSFailure        ErrorCategory = "dns_failure"
	CategoryConnectionRefused ErrorCategory = "connection_refused"
	Category4xx               ErrorCategory = "4xx"
	Category5xx               ErrorCategory = "5xx"
	CategoryStreamAborted     ErrorCategory = "stream_aborted"
	CategoryCanceled          ErrorCategory = "canceled"
	CategoryUnknown           ErrorCategory = "unknown"
)

// ClassifyError determines why a run failed.
func ClassifyError(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}

	if errors.Is(err, context.Canceled) {
		return CategoryCanceled
	}

	// Rejected by the Crawl Service
	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 500 {
			return Category5xx
		}
		if httpErr.StatusCode >= 400 {
			return Category4xx
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CategoryDNSFailure
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" && strings.Contains(opErr.Error(), "connection refused") {
			return CategoryConnectionRefused
		}
		if opErr.Timeout() {
			return CategoryTimeout
		}
	}

	if errors.Is(err, stream.ErrAborted) {
		return CategoryStreamAborted
	}

	return CategoryUnknown
}

// FormatCategory returns a human-readable label for an error category.
func FormatCategory(cat ErrorCategory) string {
	switch cat {
	case CategoryTimeout:
		return "Timeout"
	case CategoryDNSFailure:
		return "DNS Failure"
	case CategoryConnectionRefused:
		return "Connection Refused"
	case Category4xx:
		return "Request Rejected (4xx)"
	case Category5xx:
		return "Server Error (5xx)"
	case CategoryStreamAborted:
		return "Stream Aborted"
	case CategoryCanceled:
		return "Cancelled"
	default:
		return "Other Error"
	}
}
