// Package thredds resolves datasets on a THREDDS Data Server and downloads
// NetCDF Subset Service (NCSS) extracts.
package thredds

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/crawler"
)

var (
	// ErrLinkNotFound is returned when a catalog page lacks the expected link.
	ErrLinkNotFound = errors.New("thredds: link not found")
	// ErrNoDataset is returned when a catalog has no dataset with an NCSS endpoint.
	ErrNoDataset = errors.New("thredds: no NCSS dataset in catalog")
)

// Scraper fetches pages and runs colly callbacks on them.
type Scraper interface {
	crawler.Fetcher
	Scrape(ctx context.Context, request crawler.FetchRequest, setup func(c *colly.Collector)) (crawler.FetchResponse, error)
}

// Dataset is a resolved catalog entry.
type Dataset struct {
	Name    string
	URLPath string
	NCSSURL string
}

// Config configures a Client.
type Config struct {
	// FileHost prefixes fileServer paths found on dataset pages.
	FileHost string
	// CacheTTL bounds how long catalog resolutions are reused.
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// Client talks to a THREDDS server.
type Client struct {
	scraper  Scraper
	fileHost string
	cache    *gocache.Cache
	logger   *zap.Logger
}

// NewClient builds a Client. A zero CacheTTL uses ten minutes.
func NewClient(scraper Scraper, cfg Config) *Client {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		scraper:  scraper,
		fileHost: strings.TrimRight(cfg.FileHost, "/"),
		cache:    gocache.New(ttl, 2*ttl),
		logger:   logger,
	}
}

// ResolveNCSS reads a catalog.xml and returns its first dataset with a
// urlPath, joined to the base of the catalog's NetcdfSubset service.
func (c *Client) ResolveNCSS(ctx context.Context, catalogURL string) (Dataset, error) {
	if cached, ok := c.cache.Get(catalogURL); ok {
		if ds, ok := cached.(Dataset); ok {
			return ds, nil
		}
	}

	var (
		base string
		ds   Dataset
	)
	resp, err := c.scraper.Scrape(ctx, crawler.FetchRequest{URL: catalogURL}, func(col *colly.Collector) {
		base, ds = "", Dataset{}
		col.OnXML("//service[@serviceType='NetcdfSubset']", func(e *colly.XMLElement) {
			if base == "" {
				base = e.Attr("base")
			}
		})
		col.OnXML("//dataset[@urlPath]", func(e *colly.XMLElement) {
			if ds.URLPath == "" {
				ds.Name = e.Attr("name")
				ds.URLPath = e.Attr("urlPath")
			}
		})
	})
	if err != nil {
		return Dataset{}, fmt.Errorf("fetch catalog: %w", err)
	}
	if base == "" || ds.URLPath == "" {
		return Dataset{}, fmt.Errorf("%w: %s", ErrNoDataset, catalogURL)
	}

	catalog, err := url.Parse(resp.URL)
	if err != nil {
		return Dataset{}, fmt.Errorf("parse catalog url: %w", err)
	}
	endpoint, err := catalog.Parse(base + ds.URLPath)
	if err != nil {
		return Dataset{}, fmt.Errorf("join ncss endpoint: %w", err)
	}
	ds.NCSSURL = endpoint.String()

	c.cache.SetDefault(catalogURL, ds)
	c.logger.Debug("resolved ncss endpoint", zap.String("catalog", catalogURL), zap.String("ncss", ds.NCSSURL))
	return ds, nil
}

// Subset downloads an NCSS extract of ds.
func (c *Client) Subset(ctx context.Context, ds Dataset, q NCSSQuery) ([]byte, error) {
	if ds.NCSSURL == "" {
		return nil, ErrNoDataset
	}
	sep := "?"
	if strings.Contains(ds.NCSSURL, "?") {
		sep = "&"
	}
	resp, err := c.scraper.Fetch(ctx, crawler.FetchRequest{URL: ds.NCSSURL + sep + q.Encode()})
	if err != nil {
		return nil, fmt.Errorf("ncss subset: %w", err)
	}
	return resp.Body, nil
}

// LatestFile follows a latest.html catalog page to the newest file's
// fileServer URL. The dataset page is taken at its last fileServer link.
func (c *Client) LatestFile(ctx context.Context, latestURL string) (string, error) {
	links, err := c.hrefs(ctx, latestURL, "tr td a", func(string) bool { return true })
	if err != nil {
		return "", err
	}
	datasetURL := strings.Replace(latestURL, "latest.html", links[0], 1)

	fileHrefs, err := c.hrefs(ctx, datasetURL, "ol li a", func(h string) bool {
		return strings.Contains(h, "fileServer")
	})
	if err != nil {
		return "", err
	}
	fileHref := fileHrefs[len(fileHrefs)-1]
	if strings.HasPrefix(fileHref, "http://") || strings.HasPrefix(fileHref, "https://") {
		return fileHref, nil
	}
	return c.fileHost + fileHref, nil
}

// hrefs returns the raw hrefs of the selector matches accepted by keep, in
// document order. It never returns an empty slice without an error.
func (c *Client) hrefs(ctx context.Context, pageURL, selector string, keep func(string) bool) ([]string, error) {
	var found []string
	_, err := c.scraper.Scrape(ctx, crawler.FetchRequest{URL: pageURL}, func(col *colly.Collector) {
		found = nil
		col.OnHTML(selector, func(e *colly.HTMLElement) {
			if h := e.Attr("href"); h != "" && keep(h) {
				found = append(found, h)
			}
		})
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %q on %s", ErrLinkNotFound, selector, pageURL)
	}
	return found, nil
}
