// Package bulletins scrapes the NWS, SPC and NHC text products and writes
// them out as documents.
package bulletins

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/crawler"
	"github.com/nickelblock/forecast-maps/internal/logging"
	"github.com/nickelblock/forecast-maps/internal/metrics"
)

var (
	// ErrSectionNotFound is returned when a page lacks the element holding the product.
	ErrSectionNotFound = errors.New("bulletins: section not found")
	// ErrMarkersNotFound is returned when the discussion markers are missing.
	ErrMarkersNotFound = errors.New("bulletins: start or end marker not found")
	// ErrEmptyFeed is returned for an RSS feed with no items.
	ErrEmptyFeed = errors.New("bulletins: feed has no items")
	// ErrLinkNotFound is returned when the latest discussion link is missing.
	ErrLinkNotFound = errors.New("bulletins: link not found")
)

// Config holds the product endpoints.
type Config struct {
	Zones       []string
	ZoneURL     string
	AFDOffice   string
	AFDURL      string
	SPCRSSURL   string
	SPCMDURL    string
	NHCURL      string
	NHCProducts []string
}

// Service runs the bulletin scrapers.
type Service struct {
	cfg        Config
	fetcher    crawler.Fetcher
	downloader crawler.Downloader
	store      crawler.BlobStore
	logger     *zap.Logger
}

// New wires a Service. The downloader is only used for the latest
// mesoscale discussion.
func New(cfg Config, fetcher crawler.Fetcher, downloader crawler.Downloader, store crawler.BlobStore, logger *zap.Logger) *Service {
	return &Service{
		cfg:        cfg,
		fetcher:    fetcher,
		downloader: downloader,
		store:      store,
		logger:     logging.OrNop(logger),
	}
}

// All runs every scraper in turn and joins their errors.
func (s *Service) All(ctx context.Context) error {
	var errs []error
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"zones", func(ctx context.Context) error { _, err := s.ZoneForecasts(ctx); return err }},
		{"afd", func(ctx context.Context) error { _, err := s.AreaDiscussion(ctx); return err }},
		{"spc-rss", func(ctx context.Context) error { _, err := s.MesoscaleFeed(ctx); return err }},
		{"spc-md", func(ctx context.Context) error { _, err := s.LatestMesoscaleDiscussion(ctx); return err }},
		{"tropical", func(ctx context.Context) error { _, err := s.TropicalOutlooks(ctx); return err }},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("bulletins: %w", err)
		}
		if err := step.run(ctx); err != nil {
			s.logger.Error("bulletin failed", zap.String("bulletin", step.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	resp, err := s.fetcher.Fetch(ctx, crawler.FetchRequest{URL: pageURL})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}

func (s *Service) write(ctx context.Context, kind, name, contentType string, body io.Reader) (string, error) {
	uri, err := s.store.PutObject(ctx, name, contentType, body)
	if err != nil {
		metrics.ObserveProduct(kind, metrics.StatusError)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	metrics.ObserveProduct(kind, metrics.StatusOK)
	s.logger.Info("bulletin written", zap.String("kind", kind), zap.String("uri", uri))
	return uri, nil
}

func (s *Service) writeString(ctx context.Context, kind, name, contentType, body string) (string, error) {
	return s.write(ctx, kind, name, contentType, strings.NewReader(body))
}
