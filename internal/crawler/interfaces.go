package crawler

import (
	"context"
	"hash"
	"io"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// LinkExtractor lists the anchors matched by a CSS selector on a page.
type LinkExtractor interface {
	Links(ctx context.Context, pageURL string, selector string) ([]Link, error)
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, body io.Reader) (string, error)
}

// Downloader streams a remote file into storage under dst.
type Downloader interface {
	Download(ctx context.Context, url string, dst string) (Artifact, error)
}

// RobotsPolicy reports whether robots.txt allows fetching a URL.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// RetryPolicy decides whether and when to retry a failed attempt.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Hasher computes digests for artifact manifests.
type Hasher interface {
	Hash(data []byte) (string, error)
	New() hash.Hash
}

// Clock returns the current time. clockwork.Clock satisfies it.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
