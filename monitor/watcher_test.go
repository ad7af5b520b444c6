package monitor

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func stringSource(body string) Source {
	return SourceFunc(func(ctx context.Context, target string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(body)), nil
	})
}

func collect(t *testing.T, updates <-chan Update) []Update {
	t.Helper()
	var got []Update
	timeout := time.After(5 * time.Second)
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return got
			}
			got = append(got, u)
		case <-timeout:
			t.Fatal("timed out waiting for updates")
		}
	}
}

func TestWatcherDeliversEventsInOrder(t *testing.T) {
	body := "{\"log\":\"✅ Scanned: https://a.example/\"}\n{\"progress\":50,\"scanned\":1}\n{\"log\":\"✅ Scanned: https://a.example/b\"}\n{\"progress\":100,\"scanned\":2}\n"
	w := NewWatcher(stringSource(body), WithChunkSize(5))

	runID, updates := w.Start(context.Background(), "https://a.example")
	got := collect(t, updates)

	if len(got) != 5 {
		t.Fatalf("got %d updates, want 4 events and a terminal update", len(got))
	}
	for _, u := range got {
		if u.RunID != runID {
			t.Errorf("update RunID = %q, want %q", u.RunID, runID)
		}
	}
	last := got[len(got)-1]
	if !last.Done || last.Err != nil {
		t.Errorf("terminal update = %+v, want clean Done", last)
	}

	s := Reset("https://a.example")
	for _, u := range got {
		s = ApplyUpdate(s, u, Options{})
	}
	if len(s.Logs) != 2 || s.Logs[1] != "✅ Scanned: https://a.example/b" {
		t.Errorf("Logs = %q", s.Logs)
	}
	if s.Progress != 100 || s.Scanned != 2 {
		t.Errorf("progress=%v scanned=%d, want 100 and 2", s.Progress, s.Scanned)
	}
}

func TestWatcherSplitLineParsedOnce(t *testing.T) {
	pr, pw := io.Pipe()
	source := SourceFunc(func(ctx context.Context, target string) (io.ReadCloser, error) {
		return pr, nil
	})
	w := NewWatcher(source)
	_, updates := w.Start(context.Background(), "x")

	go func() {
		_, _ = pw.Write([]byte(`{"log":"sp`))
		time.Sleep(10 * time.Millisecond)
		_, _ = pw.Write([]byte("lit\"}\n"))
		_ = pw.Close()
	}()

	got := collect(t, updates)
	if len(got) != 2 {
		t.Fatalf("got %d updates, want 2: %+v", len(got), got)
	}
	if got[0].Event.Log != "split" || got[0].Event.Raw {
		t.Errorf("first update = %+v, want decoded log %q", got[0].Event, "split")
	}
}

func TestWatcherStopsAtDownload(t *testing.T) {
	body := "{\"log\":\"✅ Crawl complete\",\"download\":\"/api/download/r.pdf\"}\n{\"log\":\"late\"}\n"
	w := NewWatcher(stringSource(body))
	_, updates := w.Start(context.Background(), "x")

	got := collect(t, updates)
	if len(got) != 2 {
		t.Fatalf("got %d updates, want completion event and terminal update", len(got))
	}
	if got[0].Event.Download != "/api/download/r.pdf" || !got[1].Done {
		t.Errorf("updates = %+v", got)
	}
}

func TestWatcherOpenFailure(t *testing.T) {
	refused := errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
	source := SourceFunc(func(ctx context.Context, target string) (io.ReadCloser, error) {
		return nil, refused
	})
	_, updates := NewWatcher(source).Start(context.Background(), "x")

	got := collect(t, updates)
	if len(got) != 1 {
		t.Fatalf("got %d updates, want a single terminal update", len(got))
	}
	if !got[0].Done || !errors.Is(got[0].Err, refused) {
		t.Errorf("terminal update = %+v, want wrapped %v", got[0], refused)
	}
}

func TestWatcherNewRunCancelsPrevious(t *testing.T) {
	first, firstWriter := io.Pipe()
	defer firstWriter.Close()

	source := SourceFunc(func(ctx context.Context, target string) (io.ReadCloser, error) {
		if target == "first" {
			return first, nil
		}
		return io.NopCloser(strings.NewReader("{\"log\":\"second\"}\n")), nil
	})
	w := NewWatcher(source)

	firstID, firstUpdates := w.Start(context.Background(), "first")
	go func() { _, _ = firstWriter.Write([]byte("{\"log\":\"first\"}\n")) }()
	if u := <-firstUpdates; u.Event.Log != "first" {
		t.Fatalf("first run update = %+v", u)
	}

	secondID, secondUpdates := w.Start(context.Background(), "second")
	if secondID == firstID {
		t.Fatal("runs share an ID")
	}
	if w.Current() != secondID {
		t.Errorf("Current() = %q, want %q", w.Current(), secondID)
	}

	// The cancelled run must still close its channel.
	collect(t, firstUpdates)
	second := collect(t, secondUpdates)
	if len(second) != 2 || second[0].Event.Log != "second" {
		t.Errorf("second run updates = %+v", second)
	}
}

func TestWatcherCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	source := SourceFunc(func(ctx context.Context, target string) (io.ReadCloser, error) {
		return pr, nil
	})
	w := NewWatcher(source)
	_, updates := w.Start(context.Background(), "x")

	w.Cancel()
	got := collect(t, updates)
	for _, u := range got {
		if u.Err != nil && !errors.Is(u.Err, context.Canceled) {
			t.Errorf("unexpected error after cancel: %v", u.Err)
		}
	}
}

func TestFailureLine(t *testing.T) {
	if got := FailureLine(context.Canceled); IsFlagged(got, nil) {
		t.Errorf("cancellation line %q should not be flagged", got)
	}
	if got := FailureLine(errors.New("boom")); !IsFlagged(got, nil) {
		t.Errorf("failure line %q should be flagged", got)
	}
}
