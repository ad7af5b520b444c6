package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lukemcguire/crawlwatch/monitor"
	"github.com/lukemcguire/crawlwatch/result"
	"github.com/lukemcguire/crawlwatch/tui"
)

var (
	flaggedColor  = color.New(color.FgRed)
	progressColor = color.New(color.FgCyan)
	noticeColor   = color.New(color.FgYellow)
)

// headless runs one crawl without the TUI, printing log lines as they
// arrive and a summary at the end.
type headless struct {
	watcher *monitor.Watcher
	opts    monitor.Options
	reports tui.ReportDownloader // nil when the source has no report server
	out     io.Writer

	jsonPath  string
	csvPath   string
	reportDir string

	// progressEvery throttles progress lines; zero prints every change.
	// Log lines are never throttled.
	progressEvery time.Duration
}

// batch is what one update changed, handed from the consumer to the printer.
type batch struct {
	lines    []string
	moved    bool
	progress float64
	scanned  int
}

// newBatch describes the difference between two states of the same run.
func newBatch(before, after monitor.State) batch {
	added := (after.Dropped + len(after.Logs)) - (before.Dropped + len(before.Logs))
	added = min(added, len(after.Logs))
	b := batch{
		moved:    after.Progress != before.Progress || after.Scanned != before.Scanned,
		progress: after.Progress,
		scanned:  after.Scanned,
	}
	if added > 0 {
		b.lines = after.Logs[len(after.Logs)-added:]
	}
	return b
}

// run crawls target and returns errFindings when the run failed or flagged
// any line.
func (h *headless) run(ctx context.Context, target string) error {
	started := time.Now()
	state := monitor.Reset(target)
	var runErr error

	batches := make(chan batch, 16)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(batches)
		runID, updates := h.watcher.Start(gctx, target)
		log.Printf("run %s: crawling %s", runID, target)
		for u := range updates {
			before := state
			state = monitor.ApplyUpdate(state, u, h.opts)
			if u.Err != nil {
				runErr = u.Err
			}
			select {
			case batches <- newBatch(before, state):
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		log.Printf("run %s: stream ended", runID)
		return nil
	})

	g.Go(func() error {
		return h.print(batches)
	})

	if err := g.Wait(); err != nil {
		if !errors.Is(err, context.Canceled) {
			return err
		}
		if runErr == nil {
			runErr = err
			state = monitor.ApplyUpdate(state, monitor.Update{Err: err, Done: true}, h.opts)
			_, _ = fmt.Fprintln(h.out, monitor.FailureLine(err))
		}
	}

	t := result.NewTranscript(state, h.opts, time.Since(started), runErr)
	h.saveReport(ctx, t)
	if err := h.export(t); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(h.out)
	result.PrintResults(h.out, t)

	if runErr != nil || t.Stats.Flagged > 0 {
		return errFindings
	}
	return nil
}

// print writes every new log line, flagged ones in red, and a throttled
// progress line.
func (h *headless) print(batches <-chan batch) error {
	progress := rate.Sometimes{Every: 1}
	if h.progressEvery > 0 {
		progress = rate.Sometimes{First: 1, Interval: h.progressEvery}
	}
	for b := range batches {
		for _, line := range b.lines {
			var err error
			if monitor.IsFlagged(line, h.opts.Markers) {
				_, err = flaggedColor.Fprintln(h.out, line)
			} else {
				_, err = fmt.Fprintln(h.out, line)
			}
			if err != nil {
				return fmt.Errorf("write output: %w", err)
			}
		}
		if b.moved {
			progress.Do(func() {
				_, _ = progressColor.Fprintf(h.out, "  … %s, %d pages scanned\n",
					result.FormatProgress(b.progress), b.scanned)
			})
		}
	}
	return nil
}

func (h *headless) saveReport(ctx context.Context, t *result.Transcript) {
	if h.reportDir == "" || t.DownloadURL == "" {
		return
	}
	if h.reports == nil {
		_, _ = noticeColor.Fprintln(h.out, "Report link is not downloadable from this source")
		return
	}
	saved, err := h.reports.DownloadReport(ctx, t.DownloadURL, h.reportDir)
	if err != nil {
		_, _ = noticeColor.Fprintf(h.out, "Could not save report: %v\n", err)
		return
	}
	_, _ = fmt.Fprintf(h.out, "Saved report to %s\n", saved)
}

// export writes the requested JSON and CSV files.
func (h *headless) export(t *result.Transcript) error {
	if h.jsonPath != "" {
		if err := writeFile(h.jsonPath, func(w io.Writer) error { return result.WriteJSON(w, t) }); err != nil {
			return err
		}
	}
	if h.csvPath != "" {
		if err := writeFile(h.csvPath, func(w io.Writer) error { return result.WriteCSV(w, t) }); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()
	return write(f)
}
