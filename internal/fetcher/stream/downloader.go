// Package stream downloads large dataset files straight into a BlobStore
// without buffering them in memory.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/crawler"
	sha "github.com/nickelblock/forecast-maps/internal/hash/sha256"
	"github.com/nickelblock/forecast-maps/internal/metrics"
)

// Limiter throttles requests per domain.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config wires the downloader's collaborators. Store is required; the rest
// default to permissive or no-op implementations.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Client    *http.Client

	Store   crawler.BlobStore
	Hasher  crawler.Hasher
	Robots  crawler.RobotsPolicy
	Limiter Limiter
	Retry   crawler.RetryPolicy
	Breaker *crawler.Breaker
	Clock   clockwork.Clock
	Logger  *zap.Logger
}

// Downloader implements crawler.Downloader over net/http.
type Downloader struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

var _ crawler.Downloader = (*Downloader)(nil)

// New validates cfg and builds a Downloader.
func New(cfg Config) (*Downloader, error) {
	if cfg.Store == nil {
		return nil, errors.New("stream downloader requires a blob store")
	}
	if cfg.Hasher == nil {
		cfg.Hasher = sha.NewHasher()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := cfg.Client
	if client == nil {
		// Timeout is applied per transfer through the request context.
		client = &http.Client{}
	}
	return &Downloader{cfg: cfg, client: client, logger: logger}, nil
}

// Download fetches rawURL and stores the body at dst. Robots rules are
// checked once; the transfer itself is retried under the retry policy and
// the host's circuit breaker.
func (d *Downloader) Download(ctx context.Context, rawURL string, dst string) (crawler.Artifact, error) {
	if err := crawler.CheckRobots(ctx, d.cfg.Robots, rawURL); err != nil {
		metrics.ObserveFetch(rawURL, metrics.StatusSkip, 0)
		return crawler.Artifact{}, err
	}

	var artifact crawler.Artifact
	err := crawler.Retry(ctx, d.cfg.Retry, func(ctx context.Context) error {
		if d.cfg.Limiter != nil {
			if err := d.cfg.Limiter.Wait(ctx, rawURL); err != nil {
				return err
			}
		}
		return d.cfg.Breaker.Execute(rawURL, func() error {
			var err error
			artifact, err = d.transfer(ctx, rawURL, dst)
			return err
		})
	})
	metrics.ObserveFetch(rawURL, metrics.StatusOf(err), artifact.Bytes)
	if err != nil {
		return crawler.Artifact{}, fmt.Errorf("download %s: %w", rawURL, err)
	}
	d.logger.Info("downloaded file",
		zap.String("url", rawURL),
		zap.String("uri", artifact.URI),
		zap.Int64("bytes", artifact.Bytes))
	return artifact, nil
}

func (d *Downloader) transfer(ctx context.Context, rawURL, dst string) (crawler.Artifact, error) {
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return crawler.Artifact{}, fmt.Errorf("build request: %w", err)
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return crawler.Artifact{}, fmt.Errorf("get: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			d.logger.Debug("close response body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return crawler.Artifact{}, &crawler.StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	digest := d.cfg.Hasher.New()
	counter := &countingWriter{}
	body := io.TeeReader(resp.Body, io.MultiWriter(digest, counter))

	uri, err := d.cfg.Store.PutObject(ctx, dst, contentType, body)
	if err != nil {
		return crawler.Artifact{}, fmt.Errorf("store %s: %w", dst, err)
	}
	if resp.ContentLength > 0 && counter.n != resp.ContentLength {
		return crawler.Artifact{}, fmt.Errorf("short body for %s: got %d of %d bytes: %w",
			dst, counter.n, resp.ContentLength, io.ErrUnexpectedEOF)
	}

	return crawler.Artifact{
		URL:         rawURL,
		Path:        dst,
		URI:         uri,
		ContentType: contentType,
		SHA256:      sha.Hex(digest),
		Bytes:       counter.n,
		FetchedAt:   d.cfg.Clock.Now().UTC(),
	}, nil
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}
