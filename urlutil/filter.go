// Package urlutil holds the URL helpers crawlwatch needs to address the
// Crawl Service and resolve the report links it streams back.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// IsHTTPScheme returns true if the URL has an http or https scheme.
// Returns false for empty strings, non-HTTP schemes, or unparseable URLs.
func IsHTTPScheme(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(parsed.Scheme)
	return scheme == "http" || scheme == "https"
}

// ResolveReference resolves a possibly-relative ref URL against a base URL.
// If ref is absolute, it is returned as-is. Otherwise it is resolved
// relative to base using net/url.URL.ResolveReference.
func ResolveReference(base string, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", base, err)
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse ref URL %q: %w", ref, err)
	}

	resolved := baseURL.ResolveReference(refURL)
	return resolved.String(), nil
}

// JoinPath appends an endpoint path to base, keeping any path prefix base
// already has (a service mounted under /linkcheck keeps it).
func JoinPath(base string, endpoint string) (string, error) {
	joined, err := url.JoinPath(base, endpoint)
	if err != nil {
		return "", fmt.Errorf("join %q onto %q: %w", endpoint, base, err)
	}
	return joined, nil
}
