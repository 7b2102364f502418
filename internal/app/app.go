// Package app builds the long-lived services of a wxmaps process and runs
// the named pipelines on top of them.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/api"
	"github.com/nickelblock/forecast-maps/internal/bulletins"
	"github.com/nickelblock/forecast-maps/internal/config"
	"github.com/nickelblock/forecast-maps/internal/crawler"
	"github.com/nickelblock/forecast-maps/internal/datasets"
	collyfetcher "github.com/nickelblock/forecast-maps/internal/fetcher/colly"
	"github.com/nickelblock/forecast-maps/internal/fetcher/stream"
	"github.com/nickelblock/forecast-maps/internal/geo"
	sha "github.com/nickelblock/forecast-maps/internal/hash/sha256"
	"github.com/nickelblock/forecast-maps/internal/id/uuid"
	"github.com/nickelblock/forecast-maps/internal/logging"
	"github.com/nickelblock/forecast-maps/internal/maps"
	"github.com/nickelblock/forecast-maps/internal/metrics"
	"github.com/nickelblock/forecast-maps/internal/policy/ratelimit"
	"github.com/nickelblock/forecast-maps/internal/render"
	"github.com/nickelblock/forecast-maps/internal/scheduler"
	"github.com/nickelblock/forecast-maps/internal/storage"
	"github.com/nickelblock/forecast-maps/internal/thredds"
)

// Options override collaborators Build would otherwise create.
type Options struct {
	Logger *zap.Logger
	Clock  clockwork.Clock
	Store  storage.Store
	// Fetcher replaces the colly fetcher for pages, links and catalogs.
	Fetcher Fetcher
	// HTTPClient is used by the streaming downloader and robots checks.
	HTTPClient *http.Client
}

// Fetcher fetches pages, runs colly scrapes and extracts links.
// *collyfetcher.Fetcher implements it.
type Fetcher interface {
	thredds.Scraper
	crawler.LinkExtractor
}

var _ Fetcher = (*collyfetcher.Fetcher)(nil)

// App holds the services shared by every command.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	clock  clockwork.Clock

	store      storage.Store
	closeStore func() error

	regions   *geo.Catalogue
	datasets  *datasets.Service
	bulletins *bulletins.Service
	maps      *maps.Generator
}

// Build wires every service from cfg.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Logging.Development)
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
	}
	if cfg.Metrics.Enabled {
		metrics.Init()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	a := &App{cfg: cfg, logger: logger, clock: clock, closeStore: func() error { return nil }}

	a.logger.Info("building application dependencies",
		zap.String("storage", cfg.Storage.Provider),
		zap.String("output", cfg.Output.Dir))

	if err := a.setupStorage(ctx, opts.Store); err != nil {
		return nil, err
	}

	regions, err := geo.Load(cfg.Render.RegionsFile)
	if err != nil {
		return nil, fmt.Errorf("regions init failed: %w", err)
	}
	a.regions = regions

	basemap, err := render.LoadBasemap(render.BasemapPaths{
		States:    cfg.Render.StatesGeoJSON,
		Counties:  cfg.Render.CountiesGeoJSON,
		Countries: cfg.Render.CountriesGeoJSON,
		Logo:      cfg.Render.LogoPNG,
	}, logger.Named("render"))
	if err != nil {
		return nil, fmt.Errorf("basemap init failed: %w", err)
	}

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Crawler.RateLimitPerDomain,
		DefaultBurst: cfg.Crawler.Burst,
	})
	breaker := crawler.NewBreaker(crawler.BreakerSettings{
		MaxFailures: uint32(cfg.Breaker.MaxFailures), // #nosec G115 -- validated positive.
		OpenTimeout: cfg.BreakerOpen(),
	}, logger.Named("breaker"))
	retry := crawler.NewExponentialRetryPolicy(cfg.Crawler.MaxRetries + 1)

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent:     cfg.Crawler.UserAgent,
			RespectRobots: cfg.Crawler.RespectRobots,
			Timeout:       cfg.RequestTimeout(),
			Limiter:       limiter,
			Retry:         retry,
			Breaker:       breaker,
			Logger:        logger.Named("fetcher"),
		})
		a.logger.Info("using colly fetcher", zap.String("user_agent", cfg.Crawler.UserAgent))
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	robotsClient := *client
	robotsClient.Timeout = cfg.RequestTimeout()
	downloader, err := stream.New(stream.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.DownloadTimeout(),
		Client:    client,
		Store:     a.store,
		Hasher:    sha.NewHasher(),
		Robots:    crawler.NewRobotsEnforcer(cfg.Crawler.RespectRobots, cfg.Crawler.UserAgent, &robotsClient, logger.Named("robots")),
		Limiter:   limiter,
		Retry:     retry,
		Breaker:   breaker,
		Clock:     clock,
		Logger:    logger.Named("downloader"),
	})
	if err != nil {
		return nil, fmt.Errorf("downloader init failed: %w", err)
	}

	tds := thredds.NewClient(fetcher, thredds.Config{
		FileHost: cfg.THREDDS.FileHost,
		CacheTTL: cfg.CatalogTTL(),
		Logger:   logger.Named("thredds"),
	})

	a.datasets = datasets.New(datasets.Config{
		CatalogBase: cfg.THREDDS.CatalogBase,
		BlendBase:   cfg.Blend.BaseURL,
		Cycle:       cfg.Blend.Cycle,
		Days:        cfg.Blend.Days,
		Ahead:       cfg.Blend.Ahead,
		MaxHour:     cfg.Blend.MaxHour,
	}, datasets.Deps{
		Latest:     tds,
		Links:      fetcher,
		Downloader: downloader,
		Store:      a.store,
		IDs:        uuid.NewUUIDGenerator(),
		Clock:      clock,
		Logger:     logger.Named("datasets"),
	})

	a.bulletins = bulletins.New(bulletins.Config{
		Zones:       cfg.Bulletins.Zones,
		ZoneURL:     cfg.Bulletins.ZoneURL,
		AFDOffice:   cfg.Bulletins.AFDOffice,
		AFDURL:      cfg.Bulletins.AFDURL,
		SPCRSSURL:   cfg.Bulletins.SPCRSSURL,
		SPCMDURL:    cfg.Bulletins.SPCMDURL,
		NHCURL:      cfg.Bulletins.NHCURL,
		NHCProducts: cfg.Bulletins.NHCProducts,
	}, fetcher, downloader, a.store, logger.Named("bulletins"))

	a.maps = maps.NewGenerator(maps.Config{
		GFSCatalog: cfg.THREDDS.GFSCatalog,
		Basemap:    basemap,
	}, tds, a.store, clock, logger.Named("maps"))

	a.logger.Info("application services initialized", zap.Strings("regions", regions.Names()))
	return a, nil
}

func (a *App) setupStorage(ctx context.Context, override storage.Store) error {
	if override != nil {
		a.store = storage.WithPrefix(override, a.cfg.Storage.Prefix)
		return nil
	}
	store, closeFn, err := storage.New(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("storage init failed: %w", err)
	}
	a.store, a.closeStore = store, closeFn
	a.logger.Debug("storage ready", zap.String("provider", a.cfg.Storage.Provider), zap.String("prefix", a.cfg.Storage.Prefix))
	return nil
}

// Logger returns the process logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Store returns the blob store products are written to.
func (a *App) Store() storage.Store { return a.store }

// Regions returns the region catalogue.
func (a *App) Regions() *geo.Catalogue { return a.regions }

// Schedule starts the configured jobs and the HTTP server, and blocks
// until ctx is canceled.
func (a *App) Schedule(ctx context.Context) error {
	sched, err := scheduler.New(a.cfg.Schedule.Jobs, scheduler.RunnerFunc(a.RunPipeline), a.clock, a.logger.Named("scheduler"))
	if err != nil {
		return fmt.Errorf("scheduler init failed: %w", err)
	}
	if len(a.cfg.Schedule.Jobs) == 0 {
		a.logger.Warn("no schedule jobs configured")
	}
	sched.Start(ctx)
	defer sched.Stop()

	srv := api.NewServer(sched, api.Config{APIKey: a.cfg.Schedule.APIKey}, a.logger.Named("api"))
	return srv.ListenAndServe(ctx, a.cfg.Schedule.Addr)
}

// Close releases the store client and flushes the logger.
func (a *App) Close() {
	if err := a.closeStore(); err != nil {
		a.logger.Warn("storage close failed", zap.Error(err))
	}
	// Sync fails on non-file stderr; there is nothing useful to do about it.
	_ = a.logger.Sync()
}
