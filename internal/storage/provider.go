// Package storage selects the blob store products and datasets are written to.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	gcsclient "cloud.google.com/go/storage"

	"github.com/nickelblock/forecast-maps/internal/config"
	"github.com/nickelblock/forecast-maps/internal/crawler"
	"github.com/nickelblock/forecast-maps/internal/storage/gcs"
	"github.com/nickelblock/forecast-maps/internal/storage/local"
	"github.com/nickelblock/forecast-maps/internal/storage/memory"
)

// Store writes artifacts and reads them back, e.g. a GRIB2 file saved by
// the downloader and decoded by a map generator.
type Store interface {
	crawler.BlobStore
	GetObject(ctx context.Context, path string) (io.ReadCloser, error)
}

var (
	_ Store = (*local.BlobStore)(nil)
	_ Store = (*memory.BlobStore)(nil)
	_ Store = (*gcs.BlobStore)(nil)
)

// New builds the Store named by cfg.Storage.Provider. The returned close
// function releases any client and is never nil.
func New(ctx context.Context, cfg config.Config) (Store, func() error, error) {
	noop := func() error { return nil }
	var (
		store   Store
		closeFn = noop
	)
	switch cfg.Storage.Provider {
	case "", "local":
		s, err := local.New(local.Config{BaseDir: cfg.Output.Dir})
		if err != nil {
			return nil, noop, fmt.Errorf("local storage: %w", err)
		}
		store = s
	case "memory":
		store = memory.NewBlobStore()
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("create gcs client: %w", err)
		}
		s, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("gcs storage: %w", err)
		}
		store = s
		closeFn = s.Close
	default:
		return nil, noop, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
	return WithPrefix(store, cfg.Storage.Prefix), closeFn, nil
}

// WithPrefix returns a Store that places every object under prefix.
func WithPrefix(store Store, prefix string) Store {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return store
	}
	return &prefixed{Store: store, prefix: prefix}
}

type prefixed struct {
	Store
	prefix string
}

func (p *prefixed) PutObject(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	return p.Store.PutObject(ctx, path.Join(p.prefix, name), contentType, body)
}

func (p *prefixed) GetObject(ctx context.Context, name string) (io.ReadCloser, error) {
	return p.Store.GetObject(ctx, path.Join(p.prefix, name))
}
