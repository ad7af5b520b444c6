// Package monitor holds the crawl monitor's view state and the pure reducer
// that folds stream events into it, plus the Watcher that drives one crawl
// run at a time.
package monitor

import (
	"fmt"
	"strings"

	"github.com/lukemcguire/crawlwatch/stream"
)

// ZeroPolicy decides how zero-valued fields in an event are treated.
type ZeroPolicy int

const (
	// ZeroTruthy treats a zero or empty field as absent, so "progress: 0"
	// after a positive value leaves the progress unchanged.
	ZeroTruthy ZeroPolicy = iota
	// ZeroExplicit applies every key present in the payload, zero or not.
	ZeroExplicit
)

// String returns the configuration name of the policy.
func (p ZeroPolicy) String() string {
	switch p {
	case ZeroExplicit:
		return "explicit"
	default:
		return "truthy"
	}
}

// ParseZeroPolicy converts a configuration name into a ZeroPolicy.
func ParseZeroPolicy(name string) (ZeroPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "truthy":
		return ZeroTruthy, nil
	case "explicit":
		return ZeroExplicit, nil
	default:
		return ZeroTruthy, fmt.Errorf("unknown zero policy %q (want truthy or explicit)", name)
	}
}

// Options tunes how events are folded into State.
type Options struct {
	ZeroPolicy  ZeroPolicy
	MaxLogLines int      // 0 keeps every line
	Markers     []string // Substrings that flag a log line; nil means DefaultMarkers
}

// State is everything the monitor view renders for one crawl run.
type State struct {
	URL         string
	Logs        []string
	Progress    float64
	Scanned     int
	DownloadURL string
	Dropped     int // Lines evicted because of MaxLogLines
}

// Reset returns the empty state a new run starts from.
func Reset(url string) State {
	return State{URL: url}
}

// Finished reports whether the report link has arrived.
func (s State) Finished() bool {
	return s.DownloadURL != ""
}

// Apply folds one event into s and returns the result. Values are trusted
// as sent; progress is not clamped and scanned may go backwards.
//
// Apply may reuse the backing array of s.Logs, so only the returned State
// should be kept.
func Apply(s State, evt stream.Event, opts Options) State {
	if evt.IsEmpty() {
		return s
	}
	explicit := opts.ZeroPolicy == ZeroExplicit

	if evt.HasLog && (explicit || evt.Log != "") {
		s = appendLog(s, evt.Log, opts.MaxLogLines)
	}
	if evt.HasProgress && (explicit || evt.Progress != 0) {
		s.Progress = evt.Progress
	}
	if evt.HasScanned && (explicit || evt.Scanned != 0) {
		s.Scanned = evt.Scanned
	}
	if evt.HasDownload && (explicit || evt.Download != "") {
		s.DownloadURL = evt.Download
	}
	return s
}

// ApplyUpdate folds a watcher update into s. A failed run contributes one
// terminal log line describing the failure.
func ApplyUpdate(s State, u Update, opts Options) State {
	if u.Err != nil {
		return appendLog(s, FailureLine(u.Err), opts.MaxLogLines)
	}
	if u.Done {
		return s
	}
	return Apply(s, u.Event, opts)
}

func appendLog(s State, line string, limit int) State {
	s.Logs = append(s.Logs, line)
	if limit > 0 && len(s.Logs) > limit {
		over := len(s.Logs) - limit
		s.Logs = s.Logs[over:]
		s.Dropped += over
	}
	return s
}
