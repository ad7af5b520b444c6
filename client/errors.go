package client

import "fmt"

// NetworkError indicates the Crawl Service could not be reached.
type NetworkError struct {
	Path string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %v", e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError indicates the Crawl Service rejected a request.
type HTTPError struct {
	Path       string
	StatusCode int
	Body       string // Leading part of the response body, if any
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Path, e.Body)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Path)
}
