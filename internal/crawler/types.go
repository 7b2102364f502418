package crawler

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrStatus is wrapped by StatusError for non-2xx responses.
	ErrStatus = errors.New("unexpected HTTP status")
	// ErrRobotsDisallowed is returned when robots.txt forbids a download.
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	// ErrCircuitOpen is returned while a host's breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Unwrap lets errors.Is match ErrStatus.
func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// Temporary is true for statuses worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Link is an anchor resolved against its page.
type Link struct {
	Text string
	URL  string
}

// Artifact describes a stored download. It doubles as the JSON manifest
// written next to each file.
type Artifact struct {
	URL         string    `json:"url"`
	Path        string    `json:"path"`
	URI         string    `json:"uri"`
	ContentType string    `json:"content_type"`
	SHA256      string    `json:"sha256"`
	Bytes       int64     `json:"bytes"`
	RunID       string    `json:"run_id,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}
