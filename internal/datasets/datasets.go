// Package datasets downloads the GRIB2 files the map generators decode:
// the latest NDFD products from THREDDS and the National Blend of Models
// daily files from NOMADS.
package datasets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/crawler"
	"github.com/nickelblock/forecast-maps/internal/logging"
	"github.com/nickelblock/forecast-maps/internal/metrics"
)

var (
	// ErrUnknownProduct is returned for a product name outside Products.
	ErrUnknownProduct = errors.New("datasets: unknown product")
	// ErrNoRun is returned when the blend listing has no run directories.
	ErrNoRun = errors.New("datasets: no blend run directory")
	// ErrCycleMissing is returned when the chosen run lacks the configured cycle.
	ErrCycleMissing = errors.New("datasets: forecast cycle is missing")
	// ErrIncompleteDays is returned when a forecast day has no matching file.
	ErrIncompleteDays = errors.New("datasets: not all days included in data")
)

// Product is a THREDDS dataset whose newest file is mirrored locally.
type Product struct {
	Name string
	// Path is relative to the catalog base and ends in latest.html.
	Path string
	// File is the object name the download is stored under.
	File string
}

// Products lists the THREDDS-backed downloads by name.
var Products = map[string]Product{
	"spc":  {Name: "spc", Path: "grib/NCEP/NDFD/SPC/latest.html", File: "SPC_data.grb2"},
	"cpc":  {Name: "cpc", Path: "grib/NCEP/NDFD/CPC/latest.html", File: "CPC_data.grb2"},
	"ndfd": {Name: "ndfd", Path: "grib/NCEP/NDFD/NWS/CONUS/NOAAPORT/latest.html", File: "DHLPCoR_data.grb2"},
}

// ProductNames returns the keys of Products in sorted order.
func ProductNames() []string {
	names := make([]string, 0, len(Products))
	for name := range Products {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LatestResolver finds the newest file behind a latest.html page.
type LatestResolver interface {
	LatestFile(ctx context.Context, latestURL string) (string, error)
}

// Config holds the endpoints and blend search parameters.
type Config struct {
	CatalogBase string
	BlendBase   string
	Cycle       string
	Days        int
	Ahead       int
	MaxHour     int
}

// Deps are the collaborators a Service needs.
type Deps struct {
	Latest     LatestResolver
	Links      crawler.LinkExtractor
	Downloader crawler.Downloader
	Store      crawler.BlobStore
	IDs        crawler.IDGenerator
	Clock      clockwork.Clock
	Logger     *zap.Logger
}

// Service runs the dataset downloads.
type Service struct {
	cfg  Config
	deps Deps
}

// New builds a Service, filling zero blend parameters with the defaults of
// the NBM 12z run: 11 days, 4 hours of look-ahead, hour 264 at most.
func New(cfg Config, deps Deps) *Service {
	if cfg.Cycle == "" {
		cfg.Cycle = "12"
	}
	if cfg.Days <= 0 {
		cfg.Days = 11
	}
	if cfg.Ahead <= 0 {
		cfg.Ahead = 4
	}
	if cfg.MaxHour <= 0 {
		cfg.MaxHour = 264
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	deps.Logger = logging.OrNop(deps.Logger)
	return &Service{cfg: cfg, deps: deps}
}

// Latest downloads the newest file of the named product and writes its manifest.
func (s *Service) Latest(ctx context.Context, name string) (crawler.Artifact, error) {
	product, ok := Products[name]
	if !ok {
		return crawler.Artifact{}, fmt.Errorf("%w: %q", ErrUnknownProduct, name)
	}
	start := s.deps.Clock.Now()
	runID, logger := s.run()
	defer func() { metrics.ObservePipeline("download:"+name, s.deps.Clock.Since(start)) }()

	latestURL := strings.TrimRight(s.cfg.CatalogBase, "/") + "/" + product.Path
	fileURL, err := s.deps.Latest.LatestFile(ctx, latestURL)
	if err != nil {
		metrics.ObserveDownload(name, metrics.StatusError)
		return crawler.Artifact{}, fmt.Errorf("resolve latest %s: %w", name, err)
	}
	logger.Info("resolved latest file", zap.String("product", name), zap.String("url", fileURL))

	artifact, err := s.fetch(ctx, name, fileURL, product.File, runID)
	if err != nil {
		return crawler.Artifact{}, err
	}
	return artifact, nil
}

func (s *Service) fetch(ctx context.Context, product, fileURL, dst, runID string) (crawler.Artifact, error) {
	artifact, err := s.deps.Downloader.Download(ctx, fileURL, dst)
	if err != nil {
		metrics.ObserveDownload(product, metrics.StatusError)
		return crawler.Artifact{}, err
	}
	artifact.RunID = runID
	if err := s.writeManifest(ctx, artifact); err != nil {
		metrics.ObserveDownload(product, metrics.StatusError)
		return crawler.Artifact{}, err
	}
	metrics.ObserveDownload(product, metrics.StatusOK)
	return artifact, nil
}

// ManifestName is the sidecar object written next to an artifact.
func ManifestName(path string) string {
	return path + ".json"
}

func (s *Service) writeManifest(ctx context.Context, artifact crawler.Artifact) error {
	body, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if _, err := s.deps.Store.PutObject(ctx, ManifestName(artifact.Path), "application/json", bytes.NewReader(body)); err != nil {
		return fmt.Errorf("write manifest for %s: %w", artifact.Path, err)
	}
	return nil
}

func (s *Service) run() (string, *zap.Logger) {
	runID := ""
	if s.deps.IDs != nil {
		if id, err := s.deps.IDs.NewID(); err == nil {
			runID = id
		} else {
			s.deps.Logger.Warn("run id generation failed", zap.Error(err))
		}
	}
	return runID, logging.ForRun(s.deps.Logger, runID)
}

// yesterday is the UTC calendar day before now.
func yesterday(now time.Time) time.Time {
	return now.UTC().AddDate(0, 0, -1)
}
