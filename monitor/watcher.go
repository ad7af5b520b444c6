package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/lukemcguire/crawlwatch/stream"
)

// Source opens the event stream for a crawl of target.
type Source interface {
	Open(ctx context.Context, target string) (io.ReadCloser, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, target string) (io.ReadCloser, error)

// Open calls f.
func (f SourceFunc) Open(ctx context.Context, target string) (io.ReadCloser, error) {
	return f(ctx, target)
}

// Update is one step of a run as seen by a consumer.
type Update struct {
	RunID string
	Event stream.Event
	Err   error // Set on the terminal update of a failed or cancelled run
	Done  bool  // Set on the terminal update
}

// Watcher drives crawl runs one at a time. Starting a run cancels the
// previous one, so two streams never write into the same state.
type Watcher struct {
	source    Source
	chunkSize int

	mu     sync.Mutex
	cancel context.CancelFunc
	runID  string
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithChunkSize sets the size of reads from the stream body.
func WithChunkSize(size int) WatcherOption {
	return func(w *Watcher) {
		w.chunkSize = size
	}
}

// NewWatcher returns a Watcher reading runs from source.
func NewWatcher(source Source, opts ...WatcherOption) *Watcher {
	w := &Watcher{source: source, chunkSize: stream.DefaultChunkSize}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins a run for target and returns its ID and update channel. Any
// run already in flight is cancelled first. The channel delivers events in
// arrival order, then a terminal update with Done set, and is then closed.
// A cancelled run may close its channel without a terminal update.
func (w *Watcher) Start(ctx context.Context, target string) (string, <-chan Update) {
	runCtx, cancel := context.WithCancel(ctx)
	runID := uuid.NewString()

	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.cancel = cancel
	w.runID = runID
	w.mu.Unlock()

	updates := make(chan Update, 64)
	go w.run(runCtx, cancel, runID, target, updates)
	return runID, updates
}

// Cancel aborts the run in flight, if any.
func (w *Watcher) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

// Current returns the ID of the most recently started run.
func (w *Watcher) Current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runID
}

func (w *Watcher) run(ctx context.Context, cancel context.CancelFunc, runID, target string, updates chan<- Update) {
	defer close(updates)
	defer cancel()

	send := func(u Update) bool {
		u.RunID = runID
		select {
		case updates <- u:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		final := Update{RunID: runID, Err: err, Done: true}
		if ctx.Err() == nil {
			send(final)
			return
		}
		// Nobody may be reading a cancelled run; never block on it.
		select {
		case updates <- final:
		default:
		}
	}

	body, err := w.source.Open(ctx, target)
	if err != nil {
		fail(fmt.Errorf("start crawl: %w", err))
		return
	}
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()
	defer func() { _ = body.Close() }()

	reader := stream.NewReaderSize(body, w.chunkSize)
	for {
		evt, readErr := reader.Next()
		if errors.Is(readErr, io.EOF) {
			send(Update{Done: true})
			return
		}
		if readErr != nil {
			fail(readErr)
			return
		}
		if !send(Update{Event: evt}) {
			fail(ctx.Err())
			return
		}
		if evt.Download != "" {
			// The report link is the last thing a run produces.
			send(Update{Done: true})
			return
		}
	}
}

// FailureLine renders the terminal log line for a run that ended with err.
func FailureLine(err error) string {
	if errors.Is(err, context.Canceled) {
		return "⏹ Crawl cancelled"
	}
	return fmt.Sprintf("❌ Crawl failed: %v", err)
}
