package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lukemcguire/crawlwatch/config"
	"github.com/lukemcguire/crawlwatch/monitor"
	"github.com/lukemcguire/crawlwatch/result"
	"github.com/lukemcguire/crawlwatch/stream"
)

const sampleStream = `{"log":"✅ Scanned: https://shop.example/","progress":50,"scanned":1}
{"log":"❌ 404 External: https://partner.example/gone"}
not json at all
{"progress":100,"download":"/api/download/crawl_results_shop_example.pdf"}
`

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvServer, "")
	t.Setenv(config.EnvDebug, "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func fakeCrawlService(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/crawl":
			var req struct {
				URL string `json:"url"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
				http.Error(w, "missing url", http.StatusUnprocessableEntity)
				return
			}
			w.Header().Set("Content-Type", "application/x-ndjson")
			enc := stream.NewEncoder(w)
			events := stream.NewReader(strings.NewReader(sampleStream))
			for {
				evt, err := events.Next()
				if err != nil {
					return
				}
				_ = enc.Encode(evt)
			}
		case "/api/download/crawl_results_shop_example.pdf":
			_, _ = io.WriteString(w, "%PDF")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWatchCommand(t *testing.T) {
	clearEnv(t)
	srv := fakeCrawlService(t)
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "run.json")
	csvPath := filepath.Join(dir, "run.csv")
	recordPath := filepath.Join(dir, "run.ndjson")
	reportDir := filepath.Join(dir, "reports")

	out, err := execute(t, "watch",
		"--server", srv.URL,
		"--json", jsonPath,
		"--csv", csvPath,
		"--record", recordPath,
		"--save-report", reportDir,
		"https://shop.example")
	if !errors.Is(err, errFindings) {
		t.Fatalf("watch error = %v, want errFindings for a flagged line", err)
	}

	for _, want := range []string{
		"✅ Scanned: https://shop.example/",
		"❌ 404 External: https://partner.example/gone",
		"not json at all",
		"Report ready: /api/download/crawl_results_shop_example.pdf",
		"Saved report to",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Scanned: https") > strings.Index(out, "not json at all") {
		t.Error("log lines printed out of order")
	}

	var tr result.Transcript
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json export: %v", err)
	}
	if err := json.Unmarshal(data, &tr); err != nil {
		t.Fatalf("decode json export: %v", err)
	}
	if tr.URL != "https://shop.example" || len(tr.Lines) != 3 || tr.PagesScanned != 1 || tr.Progress != 100 {
		t.Errorf("transcript = %+v", tr)
	}

	csvData, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("read csv export: %v", err)
	}
	if !strings.HasPrefix(string(csvData), "index,text,category,flagged") {
		t.Errorf("csv header = %q", strings.SplitN(string(csvData), "\n", 2)[0])
	}

	recorded, err := os.ReadFile(recordPath)
	if err != nil {
		t.Fatalf("read recording: %v", err)
	}
	if !strings.Contains(string(recorded), "not json at all\n") {
		t.Errorf("recording = %q", recorded)
	}
	if _, err := os.Stat(filepath.Join(reportDir, "crawl_results_shop_example.pdf")); err != nil {
		t.Errorf("report not saved: %v", err)
	}
}

func TestWatchCommandServiceDown(t *testing.T) {
	clearEnv(t)
	srv := fakeCrawlService(t)
	srv.Close()

	out, err := execute(t, "watch", "--server", srv.URL, "https://shop.example")
	if !errors.Is(err, errFindings) {
		t.Fatalf("watch error = %v, want errFindings", err)
	}
	if !strings.Contains(out, "❌ Crawl failed") {
		t.Errorf("expected a failure line, got:\n%s", out)
	}
}

func TestWatchCommandBadServer(t *testing.T) {
	clearEnv(t)
	_, err := execute(t, "watch", "--server", "ftp://nope.example", "https://shop.example")
	if err == nil || errors.Is(err, errFindings) {
		t.Errorf("expected a configuration error, got %v", err)
	}
}

func TestReplayCommand(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "run.ndjson")
	clean := `{"log":"✅ Scanned: https://shop.example/","progress":40,"scanned":1}
{"log":"✅ Crawl complete","progress":100}
{"download":"/r/report.pdf"}
`
	if err := os.WriteFile(path, []byte(clean), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, size := range []string{"1", "7", "4096"} {
		t.Run("chunk size "+size, func(t *testing.T) {
			out, err := execute(t, "replay", "--chunk-size", size, path)
			if err != nil {
				t.Fatalf("replay error = %v", err)
			}
			if !strings.Contains(out, "✅ Crawl complete") || !strings.Contains(out, "Report ready: /r/report.pdf") {
				t.Errorf("unexpected output:\n%s", out)
			}
		})
	}
}

func TestReplayPrintsEveryProgressChange(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "run.ndjson")
	body := `{"progress":10,"scanned":1}
{"progress":20,"scanned":2}
{"progress":30,"scanned":3}
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "replay", path)
	if err != nil {
		t.Fatalf("replay error = %v", err)
	}
	for _, want := range []string{
		"10%, 1 pages scanned",
		"20%, 2 pages scanned",
		"30%, 3 pages scanned",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestReplayRejectsBadChunkSize(t *testing.T) {
	clearEnv(t)
	if _, err := execute(t, "replay", "--chunk-size", "0", "-"); err == nil {
		t.Error("expected error for --chunk-size 0")
	}
}

func TestNewBatch(t *testing.T) {
	before := monitor.State{Logs: []string{"a"}, Progress: 10}
	after := monitor.State{Logs: []string{"a", "b", "c"}, Progress: 10}
	b := newBatch(before, after)
	if len(b.lines) != 2 || b.lines[0] != "b" || b.moved {
		t.Errorf("newBatch() = %+v, want lines b c and no movement", b)
	}

	// With a bounded log the new lines are still found after eviction.
	before = monitor.State{Logs: []string{"a", "b"}, Dropped: 3}
	after = monitor.State{Logs: []string{"b", "c"}, Dropped: 4, Scanned: 2}
	b = newBatch(before, after)
	if len(b.lines) != 1 || b.lines[0] != "c" || !b.moved {
		t.Errorf("newBatch() = %+v, want line c and movement", b)
	}
}

func TestRecordingSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.ndjson")
	src := recordingSource(monitor.SourceFunc(func(context.Context, string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(sampleStream)), nil
	}), path)

	body, err := src.Open(context.Background(), "https://shop.example")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if err := body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil || string(got) != sampleStream {
		t.Errorf("recording = %q, %v; want the stream verbatim", got, err)
	}
}
