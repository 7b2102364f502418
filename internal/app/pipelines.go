package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/crawler"
	"github.com/nickelblock/forecast-maps/internal/maps"
)

var (
	// ErrUnknownPipeline is returned for a pipeline name RunPipeline cannot parse.
	ErrUnknownPipeline = errors.New("app: unknown pipeline")
	// ErrUnknownMapKind is returned for a map kind outside MapKinds.
	ErrUnknownMapKind = errors.New("app: unknown map kind")
	// ErrUnknownBulletin is returned for a bulletin kind outside BulletinKinds.
	ErrUnknownBulletin = errors.New("app: unknown bulletin")
)

// MapKinds lists the map generators by name.
var MapKinds = []string{"temperature", "precipitation", "spc", "cpc", "daily", "blank"}

// BulletinKinds lists the bulletin scrapers by name.
var BulletinKinds = []string{"zones", "afd", "spc-rss", "spc-md", "tropical", "all"}

// downloadFor names the dataset each file-backed map kind decodes.
var downloadFor = map[string]string{
	"spc":   "spc",
	"cpc":   "cpc",
	"daily": "ndfd",
}

// MapRequest selects one map pipeline run.
type MapRequest struct {
	Kind   string
	Region string
	// Hours are forecast offsets for temperature and precipitation.
	Hours  []int
	Hourly bool
	// File is the GRIB2 object decoded by spc, cpc and daily. Empty uses
	// the name the downloader stores it under.
	File string
	// Download fetches the matching dataset before rendering.
	Download bool
}

// Download fetches one dataset: "blend" or a THREDDS product name.
func (a *App) Download(ctx context.Context, product string) ([]crawler.Artifact, error) {
	if product == "blend" {
		return a.datasets.Blend(ctx)
	}
	artifact, err := a.datasets.Latest(ctx, product)
	if err != nil {
		return nil, err
	}
	return []crawler.Artifact{artifact}, nil
}

// Maps renders the requested maps and writes them to the store. It
// returns the URIs written, including those of a partial run.
func (a *App) Maps(ctx context.Context, req MapRequest) ([]string, error) {
	region, err := a.regions.Region(req.Region)
	if err != nil {
		return nil, err
	}
	if req.Download {
		product, ok := downloadFor[req.Kind]
		if !ok {
			return nil, fmt.Errorf("%s maps have no dataset to download", req.Kind)
		}
		artifact, err := a.datasets.Latest(ctx, product)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", product, err)
		}
		if req.File == "" {
			req.File = artifact.Path
		}
	}
	hours := req.Hours
	if len(hours) == 0 {
		hours = []int{0}
	}

	var products []maps.Product
	switch req.Kind {
	case "temperature":
		products, err = a.maps.Temperature(ctx, region, hours)
	case "precipitation":
		products, err = a.maps.Precipitation(ctx, region, hours, req.Hourly)
	case "spc":
		products, err = a.maps.SPCOutlook(ctx, region, req.File)
	case "cpc":
		products, err = a.maps.CPCOutlook(ctx, region, req.File)
	case "daily":
		products, err = a.maps.DailyHighLowPOP(ctx, region, req.File)
	case "blank":
		products, err = a.maps.Blank(ctx, region)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMapKind, req.Kind)
	}

	uris := make([]string, 0, len(products))
	for _, p := range products {
		uri, werr := a.store.PutObject(ctx, p.Name, p.ContentType, bytes.NewReader(p.Body))
		if werr != nil {
			return uris, errors.Join(err, fmt.Errorf("write %s: %w", p.Name, werr))
		}
		a.logger.Info("map written", zap.String("kind", req.Kind), zap.String("region", region.Name), zap.String("uri", uri))
		uris = append(uris, uri)
	}
	return uris, err
}

// Bulletins runs one bulletin scraper and returns the URIs it wrote.
func (a *App) Bulletins(ctx context.Context, kind string) ([]string, error) {
	switch kind {
	case "zones":
		return a.bulletins.ZoneForecasts(ctx)
	case "afd":
		uri, err := a.bulletins.AreaDiscussion(ctx)
		return single(uri, err)
	case "spc-rss":
		uri, err := a.bulletins.MesoscaleFeed(ctx)
		return single(uri, err)
	case "spc-md":
		artifact, err := a.bulletins.LatestMesoscaleDiscussion(ctx)
		return single(artifact.URI, err)
	case "tropical":
		return a.bulletins.TropicalOutlooks(ctx)
	case "all":
		return nil, a.bulletins.All(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBulletin, kind)
	}
}

func single(uri string, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	return []string{uri}, nil
}

// RunPipeline runs a pipeline by name. Names are colon separated:
//
//	download:<spc|cpc|ndfd|blend>
//	maps:<kind>:<region>[:<hours>]   hours as "0,24,48"; kind may be precipitation-hourly
//	bulletins:<kind>
func (a *App) RunPipeline(ctx context.Context, name string) error {
	start := a.clock.Now()
	defer func() {
		a.logger.Info("pipeline finished", zap.String("pipeline", name), zap.Duration("took", a.clock.Since(start)))
	}()

	parts := strings.Split(name, ":")
	switch {
	case parts[0] == "download" && len(parts) == 2:
		_, err := a.Download(ctx, parts[1])
		return err
	case parts[0] == "bulletins" && len(parts) == 2:
		_, err := a.Bulletins(ctx, parts[1])
		return err
	case parts[0] == "maps" && (len(parts) == 3 || len(parts) == 4):
		req, err := parseMapPipeline(parts[1:])
		if err != nil {
			return fmt.Errorf("%w: %q: %w", ErrUnknownPipeline, name, err)
		}
		_, err = a.Maps(ctx, req)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPipeline, name)
	}
}

func parseMapPipeline(parts []string) (MapRequest, error) {
	req := MapRequest{Kind: parts[0], Region: parts[1]}
	if req.Kind == "precipitation-hourly" {
		req.Kind, req.Hourly = "precipitation", true
	}
	if len(parts) == 3 {
		for _, raw := range strings.Split(parts[2], ",") {
			h, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil || h < 0 {
				return MapRequest{}, fmt.Errorf("bad forecast hour %q", raw)
			}
			req.Hours = append(req.Hours, h)
		}
	}
	return req, nil
}
