// Package result turns a finished crawl run into a transcript that can be
// summarized, printed, and exported.
package result

import (
	"strings"
	"time"

	"github.com/lukemcguire/crawlwatch/monitor"
)

// Category classifies a log line by the vocabulary the Crawl Service uses.
type Category string

const (
	CategoryBroken   Category = "broken"
	CategoryMailto   Category = "mailto"
	CategoryOutbound Category = "outbound"
	CategoryScanned  Category = "scanned"
	CategoryInfo     Category = "info"
)

// categoryRules are checked in order; the first matching marker wins.
var categoryRules = []struct {
	marker   string
	category Category
}{
	{"❌", CategoryBroken},
	{"Mailto:", CategoryMailto},
	{"🔗 Outbound:", CategoryOutbound},
	{"✅ Scanned:", CategoryScanned},
}

// Categorize returns the category of a single log line.
func Categorize(line string) Category {
	for _, rule := range categoryRules {
		if strings.Contains(line, rule.marker) {
			return rule.category
		}
	}
	return CategoryInfo
}

// Line is one log line of a run.
type Line struct {
	Index    int      `json:"index" csv:"index"`
	Text     string   `json:"text" csv:"text"`
	Category Category `json:"category" csv:"category"`
	Flagged  bool     `json:"flagged" csv:"flagged"`
}

// Stats contains aggregate counts for a run.
type Stats struct {
	Lines    int `json:"lines"`
	Flagged  int `json:"flagged"`
	Broken   int `json:"broken"`
	Mailto   int `json:"mailto"`
	Outbound int `json:"outbound"`
	Dropped  int `json:"dropped,omitempty"` // Lines evicted by a bounded log
}

// Transcript is the complete record of one crawl run.
type Transcript struct {
	URL          string        `json:"url"`
	Progress     float64       `json:"progress"`
	PagesScanned int           `json:"pages_scanned"`
	DownloadURL  string        `json:"download_url,omitempty"`
	Failure      string        `json:"failure,omitempty"`
	FailureType  ErrorCategory `json:"failure_type,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
	Stats        Stats         `json:"stats"`
	Lines        []Line        `json:"lines"`
}

// NewTranscript captures the final state of a run. runErr is the error the
// run ended with, if any; a user cancellation is recorded like any failure.
func NewTranscript(state monitor.State, opts monitor.Options, duration time.Duration, runErr error) *Transcript {
	t := &Transcript{
		URL:          state.URL,
		Progress:     state.Progress,
		PagesScanned: state.Scanned,
		DownloadURL:  state.DownloadURL,
		Duration:     duration,
		Lines:        make([]Line, 0, len(state.Logs)),
	}
	if runErr != nil {
		t.Failure = runErr.Error()
		t.FailureType = ClassifyError(runErr)
	}

	for i, text := range state.Logs {
		line := Line{
			Index:    state.Dropped + i + 1,
			Text:     text,
			Category: Categorize(text),
			Flagged:  monitor.IsFlagged(text, opts.Markers),
		}
		t.Lines = append(t.Lines, line)
	}
	t.Stats = Summarize(t.Lines)
	t.Stats.Dropped = state.Dropped
	return t
}

// Summarize counts lines per category.
func Summarize(lines []Line) Stats {
	var stats Stats
	for _, line := range lines {
		stats.Lines++
		if line.Flagged {
			stats.Flagged++
		}
		switch line.Category {
		case CategoryBroken:
			stats.Broken++
		case CategoryMailto:
			stats.Mailto++
		case CategoryOutbound:
			stats.Outbound++
		}
	}
	return stats
}

// FlaggedLines returns the lines the highlight rule matched, in order.
func (t *Transcript) FlaggedLines() []Line {
	var flagged []Line
	for _, line := range t.Lines {
		if line.Flagged {
			flagged = append(flagged, line)
		}
	}
	return flagged
}

// Failed reports whether the run ended with a transport failure.
func (t *Transcript) Failed() bool {
	return t.Failure != "" && t.FailureType != CategoryCanceled
}
