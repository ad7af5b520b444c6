// Package client talks to the Crawl Service: it starts a crawl and hands back
// the live event stream, and it fetches the finished report.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lukemcguire/crawlwatch/urlutil"
)

const (
	// DefaultCrawlPath is where the Crawl Service accepts crawl requests.
	DefaultCrawlPath = "/api/crawl"
	// DefaultUserAgent identifies crawlwatch to the Crawl Service.
	DefaultUserAgent = "crawlwatch/1.0 (+https://github.com/lukemcguire/crawlwatch)"

	defaultReportName = "report.pdf"
	errorBodyLimit    = 512
)

// Options configures a Client.
type Options struct {
	BaseURL        string        // Crawl Service root, e.g. http://localhost:8000
	CrawlPath      string        // Crawl endpoint path (default /api/crawl)
	UserAgent      string        // User-Agent header (default DefaultUserAgent)
	ConnectTimeout time.Duration // Dial and response-header timeout; the stream itself has no deadline
	HTTPClient     *http.Client  // Optional; overrides ConnectTimeout
	Retry          *RetryPolicy  // Report download retries; nil means DefaultRetryPolicy
}

// Client is a Crawl Service client.
type Client struct {
	baseURL   string
	crawlPath string
	userAgent string
	http      *http.Client
	retry     RetryPolicy

	downloads singleflight.Group // Joins concurrent saves of the same report
}

type crawlRequest struct {
	URL string `json:"url"`
}

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	base, err := urlutil.NormalizeBase(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if opts.CrawlPath == "" {
		opts.CrawlPath = DefaultCrawlPath
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.ConnectTimeout > 0 {
			transport.DialContext = (&net.Dialer{Timeout: opts.ConnectTimeout}).DialContext
			transport.ResponseHeaderTimeout = opts.ConnectTimeout
		}
		// No Client.Timeout: it would cut long-running streams.
		httpClient = &http.Client{Transport: transport}
	}

	retry := DefaultRetryPolicy()
	if opts.Retry != nil {
		retry = *opts.Retry
	}

	return &Client{
		baseURL:   base,
		crawlPath: opts.CrawlPath,
		userAgent: opts.UserAgent,
		http:      httpClient,
		retry:     retry,
	}, nil
}

// BaseURL returns the normalized Crawl Service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Open starts a crawl of target and returns the streamed response body.
// target is forwarded as given. Closing the body or cancelling ctx aborts
// the request.
func (c *Client) Open(ctx context.Context, target string) (io.ReadCloser, error) {
	endpoint, err := urlutil.JoinPath(c.baseURL, c.crawlPath)
	if err != nil {
		return nil, fmt.Errorf("build crawl URL: %w", err)
	}

	payload, err := json.Marshal(crawlRequest{URL: target})
	if err != nil {
		return nil, fmt.Errorf("encode crawl request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create crawl request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson, text/event-stream")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Path: c.crawlPath, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromResponse(c.crawlPath, resp)
	}
	return resp.Body, nil
}

// ResolveDownload turns a report link from the stream, which may be
// relative, into an absolute URL on the Crawl Service.
func (c *Client) ResolveDownload(href string) (string, error) {
	if href == "" {
		return "", errors.New("empty download link")
	}
	resolved, err := urlutil.ResolveReference(c.baseURL, href)
	if err != nil {
		return "", fmt.Errorf("resolve download link: %w", err)
	}
	if !urlutil.IsHTTPScheme(resolved) {
		return "", fmt.Errorf("download link %q is not an http(s) URL", href)
	}
	return resolved, nil
}

// DownloadReport fetches the report behind href into dir and returns the
// path written. The file appears only once it is complete.
// Transient failures are retried according to the client's RetryPolicy.
// Concurrent calls for the same report and directory share one download.
func (c *Client) DownloadReport(ctx context.Context, href, dir string) (string, error) {
	target, err := c.ResolveDownload(href)
	if err != nil {
		return "", err
	}
	saved, err, _ := c.downloads.Do(target+"\x00"+dir, func() (any, error) {
		return withRetry(ctx, c.retry, func() (string, error) {
			return c.fetchReport(ctx, target, dir)
		})
	})
	if err != nil {
		return "", err
	}
	return saved.(string), nil
}

func (c *Client) fetchReport(ctx context.Context, target, dir string) (saved string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &NetworkError{Path: target, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close report body: %w", closeErr)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return "", errorFromResponse(target, resp)
	}

	if dir == "" {
		dir = "."
	}
	if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
		return "", fmt.Errorf("create report directory: %w", mkErr)
	}

	tmp, err := os.CreateTemp(dir, ".crawlwatch-*.part")
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, copyErr := io.Copy(tmp, resp.Body); copyErr != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write report: %w", copyErr)
	}
	if closeErr := tmp.Close(); closeErr != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close report file: %w", closeErr)
	}

	finalPath := filepath.Join(dir, ReportName(target))
	if renameErr := os.Rename(tmpPath, finalPath); renameErr != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("save report: %w", renameErr)
	}
	return finalPath, nil
}

// ReportName derives a local file name from a report URL.
func ReportName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return defaultReportName
	}
	name := path.Base(parsed.Path)
	if unescaped, unescapeErr := url.PathUnescape(name); unescapeErr == nil {
		name = unescaped
	}
	name = filepath.Base(filepath.Clean(name))
	switch name {
	case "", ".", "/", "..":
		return defaultReportName
	}
	return name
}

func errorFromResponse(where string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	_ = resp.Body.Close()
	return &HTTPError{
		Path:       where,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(snippet)),
	}
}
