package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// NormalizeBase takes a Crawl Service root URL and returns a canonical form.
// Normalization includes:
// - Lowercasing the scheme and host
// - Stripping fragments and query parameters
// - Stripping trailing slashes, including a bare "/" path
//
// Returns an error if the input is empty, cannot be parsed, or is not an
// absolute http(s) URL.
func NormalizeBase(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", errors.New("cannot normalize empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("normalize URL %q: %w", rawURL, err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.New("URL must have both scheme and host")
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.RawQuery = ""
	parsed.ForceQuery = false
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawPath = ""

	return parsed.String(), nil
}
