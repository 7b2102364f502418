// Package config loads and validates wxmaps configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. WXMAPS_OUTPUT_DIR.
const EnvPrefix = "WXMAPS"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Output    OutputConfig    `mapstructure:"output"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	THREDDS   THREDDSConfig   `mapstructure:"thredds"`
	Blend     BlendConfig     `mapstructure:"blend"`
	Bulletins BulletinsConfig `mapstructure:"bulletins"`
	Render    RenderConfig    `mapstructure:"render"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// OutputConfig names the directory products are written to.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// StorageConfig selects the blob store for products and datasets.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// CrawlerConfig governs HTTP behavior shared by every scraper and downloader.
type CrawlerConfig struct {
	UserAgent          string  `mapstructure:"user_agent"`
	RespectRobots      bool    `mapstructure:"respect_robots"`
	TimeoutSeconds     int     `mapstructure:"timeout_seconds"`
	DownloadTimeoutSec int     `mapstructure:"download_timeout_seconds"`
	RateLimitPerDomain float64 `mapstructure:"rate_limit_per_domain"`
	Burst              int     `mapstructure:"burst"`
	MaxRetries         int     `mapstructure:"max_retries"`
}

// BreakerConfig tunes the per-host circuit breaker.
type BreakerConfig struct {
	MaxFailures int `mapstructure:"max_failures"`
	OpenSeconds int `mapstructure:"open_seconds"`
}

// THREDDSConfig points at the Unidata THREDDS server.
type THREDDSConfig struct {
	CatalogBase     string `mapstructure:"catalog_base"`
	FileHost        string `mapstructure:"file_host"`
	GFSCatalog      string `mapstructure:"gfs_catalog"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

// BlendConfig controls the National Blend of Models spider.
type BlendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Cycle   string `mapstructure:"cycle"`
	Days    int    `mapstructure:"days"`
	Ahead   int    `mapstructure:"ahead"`
	MaxHour int    `mapstructure:"max_hour"`
}

// BulletinsConfig lists the text products to scrape.
type BulletinsConfig struct {
	Zones       []string `mapstructure:"zones"`
	ZoneURL     string   `mapstructure:"zone_url"`
	AFDOffice   string   `mapstructure:"afd_office"`
	AFDURL      string   `mapstructure:"afd_url"`
	SPCRSSURL   string   `mapstructure:"spc_rss_url"`
	SPCMDURL    string   `mapstructure:"spc_md_url"`
	NHCURL      string   `mapstructure:"nhc_url"`
	NHCProducts []string `mapstructure:"nhc_products"`
}

// RenderConfig holds map rendering inputs.
type RenderConfig struct {
	StatesGeoJSON    string `mapstructure:"states_geojson"`
	CountiesGeoJSON  string `mapstructure:"counties_geojson"`
	CountriesGeoJSON string `mapstructure:"countries_geojson"`
	RegionsFile      string `mapstructure:"regions_file"`
	// LogoPNG is stamped on every map when set.
	LogoPNG string `mapstructure:"logo_png"`
}

// ScheduleConfig describes the long-running schedule mode.
type ScheduleConfig struct {
	Addr string `mapstructure:"addr"`
	// APIKey guards the job routes of the schedule server when set.
	APIKey string        `mapstructure:"api_key"`
	Jobs   []ScheduleJob `mapstructure:"jobs"`
}

// ScheduleJob runs a list of pipelines on a cron expression.
type ScheduleJob struct {
	Name      string   `mapstructure:"name"`
	Cron      string   `mapstructure:"cron"`
	Pipelines []string `mapstructure:"pipelines"`
}

// MetricsConfig toggles Prometheus collection.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper unmarshals and validates the settings held by v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("output.dir", "output")
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.prefix", "")

	v.SetDefault("crawler.user_agent", "wxmaps/1.0 (+https://github.com/nickelblock/forecast-maps)")
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.timeout_seconds", 30)
	v.SetDefault("crawler.download_timeout_seconds", 900)
	v.SetDefault("crawler.rate_limit_per_domain", 2)
	v.SetDefault("crawler.burst", 1)
	v.SetDefault("crawler.max_retries", 3)

	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.open_seconds", 120)

	v.SetDefault("thredds.catalog_base", "https://tds.scigw.unidata.ucar.edu/thredds/catalog/")
	v.SetDefault("thredds.file_host", "https://tds.scigw.unidata.ucar.edu")
	v.SetDefault("thredds.gfs_catalog",
		"http://thredds.ucar.edu/thredds/catalog/grib/NCEP/GFS/Global_0p25deg/catalog.xml?dataset=grib/NCEP/GFS/Global_0p25deg/Best")
	v.SetDefault("thredds.cache_ttl_seconds", 600)

	v.SetDefault("blend.base_url", "https://nomads.ncep.noaa.gov/pub/data/nccf/com/blend/prod/")
	v.SetDefault("blend.cycle", "12")
	v.SetDefault("blend.days", 11)
	v.SetDefault("blend.ahead", 4)
	v.SetDefault("blend.max_hour", 264)

	v.SetDefault("bulletins.zones", []string{"MSZ075", "MSZ047", "MSZ050", "ALZ051", "LAZ037", "MSZ077", "MSZ079"})
	v.SetDefault("bulletins.zone_url", "https://forecast.weather.gov/MapClick.php")
	v.SetDefault("bulletins.afd_office", "JAN")
	v.SetDefault("bulletins.afd_url", "https://forecast.weather.gov/product.php")
	v.SetDefault("bulletins.spc_rss_url", "https://www.spc.noaa.gov/products/spcmdrss.xml")
	v.SetDefault("bulletins.spc_md_url", "https://www.spc.noaa.gov/products/md/")
	v.SetDefault("bulletins.nhc_url", "https://www.nhc.noaa.gov/text/")
	v.SetDefault("bulletins.nhc_products", []string{"HFOTWOCP", "MIATWOAT", "MIATWDAT", "MIATWDEP", "MIATWOEP"})

	v.SetDefault("schedule.addr", ":8080")
	v.SetDefault("metrics.enabled", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Output.Dir) == "" && c.Storage.Provider == "local" {
		return fmt.Errorf("output.dir must be set for the local storage provider")
	}
	switch c.Storage.Provider {
	case "local", "memory":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Crawler.MaxRetries < 0 {
		return fmt.Errorf("crawler.max_retries must be >= 0")
	}
	if c.Breaker.MaxFailures <= 0 {
		return fmt.Errorf("breaker.max_failures must be > 0")
	}
	if c.Blend.Days <= 0 || c.Blend.Days > 11 {
		return fmt.Errorf("blend.days must be between 1 and 11")
	}
	if c.Blend.Ahead < 0 {
		return fmt.Errorf("blend.ahead must be >= 0")
	}
	for _, job := range c.Schedule.Jobs {
		if job.Cron == "" || len(job.Pipelines) == 0 {
			return fmt.Errorf("schedule job %q needs a cron expression and pipelines", job.Name)
		}
	}
	return nil
}

// RequestTimeout converts the crawler timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}

// DownloadTimeout bounds a single streaming dataset download.
func (c Config) DownloadTimeout() time.Duration {
	if c.Crawler.DownloadTimeoutSec <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Crawler.DownloadTimeoutSec) * time.Second
}

// BreakerOpen is how long a tripped breaker rejects calls.
func (c Config) BreakerOpen() time.Duration {
	return time.Duration(c.Breaker.OpenSeconds) * time.Second
}

// CatalogTTL is the lifetime of cached THREDDS catalog resolutions.
func (c Config) CatalogTTL() time.Duration {
	return time.Duration(c.THREDDS.CacheTTLSeconds) * time.Second
}
