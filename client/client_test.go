package client

import (
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

	"github.com/lukemcguire/crawlwatch/stream"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestOpenPostsTargetAndStreams(t *testing.T) {
	var gotMethod, gotContentType, gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultCrawlPath {
			http.NotFound(w, r)
			return
		}
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		var req struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotURL = req.URL

		w.Header().Set("Content-Type", "text/event-stream")
		enc := stream.NewEncoder(w)
		_ = enc.Encode(stream.Event{Log: "✅ Scanned: https://shop.example/", HasLog: true})
		_ = enc.Encode(stream.Event{Progress: 100, HasProgress: true, Scanned: 1, HasScanned: true})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	body, err := c.Open(context.Background(), "  shop.example ")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer body.Close()

	r := stream.NewReader(body)
	first, err := r.Next()
	if err != nil || first.Log != "✅ Scanned: https://shop.example/" {
		t.Fatalf("first event = %+v, %v", first, err)
	}
	second, err := r.Next()
	if err != nil || second.Progress != 100 || second.Scanned != 1 {
		t.Fatalf("second event = %+v, %v", second, err)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if gotURL != "  shop.example " {
		t.Errorf("target forwarded as %q, want it unmodified", gotURL)
	}
}

func TestOpenRejectedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"url field required"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Open(context.Background(), "")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Open() error = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d", httpErr.StatusCode)
	}
	if !strings.Contains(httpErr.Body, "url field required") {
		t.Errorf("Body = %q, want server detail", httpErr.Body)
	}
}

func TestOpenNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := newTestClient(t, srv)
	srv.Close()

	_, err := c.Open(context.Background(), "https://shop.example")
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Open() error = %v, want *NetworkError", err)
	}
	if netErr.Path != DefaultCrawlPath {
		t.Errorf("Path = %q", netErr.Path)
	}
}

func TestOpenHonoursPathPrefix(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL + "/linkcheck/", CrawlPath: "/v2/crawl"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	body, err := c.Open(context.Background(), "x")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	_ = body.Close()

	if gotPath != "/linkcheck/v2/crawl" {
		t.Errorf("request path = %q, want /linkcheck/v2/crawl", gotPath)
	}
}

func TestNewRejectsBadServer(t *testing.T) {
	for _, base := range []string{"", "localhost:8000", "ftp://host"} {
		if _, err := New(Options{BaseURL: base}); err == nil {
			t.Errorf("New(%q) succeeded, want error", base)
		}
	}
}

func TestResolveDownload(t *testing.T) {
	c, err := New(Options{BaseURL: "http://localhost:8000"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := c.ResolveDownload("/api/download/crawl_results.pdf")
	if err != nil || got != "http://localhost:8000/api/download/crawl_results.pdf" {
		t.Errorf("ResolveDownload() = %q, %v", got, err)
	}
	if _, err := c.ResolveDownload("javascript:alert(1)"); err == nil {
		t.Error("expected non-http link to be rejected")
	}
	if _, err := c.ResolveDownload(""); err == nil {
		t.Error("expected empty link to be rejected")
	}
}

func TestDownloadReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/download/crawl_results_shop_example.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = io.WriteString(w, "%PDF-1.4 fake report")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	dir := t.TempDir()

	saved, err := c.DownloadReport(context.Background(), "/api/download/crawl_results_shop_example.pdf", dir)
	if err != nil {
		t.Fatalf("DownloadReport() error: %v", err)
	}
	if saved != filepath.Join(dir, "crawl_results_shop_example.pdf") {
		t.Errorf("saved to %q", saved)
	}
	data, err := os.ReadFile(saved)
	if err != nil || string(data) != "%PDF-1.4 fake report" {
		t.Errorf("report content = %q, %v", data, err)
	}

	_, err = c.DownloadReport(context.Background(), "/api/download/missing.pdf", dir)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("missing report error = %v, want 404 HTTPError", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the finished report in %s, found %d entries", dir, len(entries))
	}
}

func TestReportName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://h/api/download/crawl_results_a_b.pdf", "crawl_results_a_b.pdf"},
		{"http://h/api/download/with%20space.pdf", "with space.pdf"},
		{"http://h/", "report.pdf"},
		{"http://h", "report.pdf"},
		{"http://h/api/download/..", "report.pdf"},
	}
	for _, tt := range tests {
		if got := ReportName(tt.in); got != tt.want {
			t.Errorf("ReportName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
