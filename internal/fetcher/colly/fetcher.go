// Package collyfetcher implements page fetching and link extraction using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/crawler"
	"github.com/nickelblock/forecast-maps/internal/metrics"
)

const defaultMaxBodySize = 64 << 20

// Limiter throttles requests per domain.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	MaxBodySize   int

	Limiter Limiter
	Retry   crawler.RetryPolicy
	Breaker *crawler.Breaker
	Logger  *zap.Logger
}

// Fetcher implements crawler.Fetcher and crawler.LinkExtractor using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
	logger        *zap.Logger
}

var (
	_ crawler.Fetcher       = (*Fetcher)(nil)
	_ crawler.LinkExtractor = (*Fetcher)(nil)
)

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	// Pages like THREDDS latest.html are visited on every run.
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())

	transport := newRobotsTransport(newHTTPTransport(), logger)
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch executes a single HTTP GET using Colly.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	return f.Scrape(ctx, request, nil)
}

// Scrape fetches a page with retries, the rate limiter and the host's circuit
// breaker. setup runs on every attempt's collector and may register OnHTML or
// OnXML callbacks. Callbacks also see error pages, whose results the caller
// discards along with the returned error.
func (f *Fetcher) Scrape(
	ctx context.Context,
	request crawler.FetchRequest,
	setup func(c *colly.Collector),
) (crawler.FetchResponse, error) {
	var result crawler.FetchResponse
	err := crawler.Retry(ctx, f.cfg.Retry, func(ctx context.Context) error {
		if f.cfg.Limiter != nil {
			if err := f.cfg.Limiter.Wait(ctx, request.URL); err != nil {
				return err
			}
		}
		return f.cfg.Breaker.Execute(request.URL, func() error {
			var fetchErr error
			result = crawler.FetchResponse{}
			collector := f.buildCollector(request, time.Now(), &result, &fetchErr)
			collector.Context = ctx
			if setup != nil {
				setup(collector)
			}
			return f.runCollector(ctx, collector, request.URL, &fetchErr)
		})
	})
	metrics.ObserveFetch(request.URL, metrics.StatusOf(err), int64(len(result.Body)))
	if err != nil {
		f.logger.Debug("fetch failed", zap.String("url", request.URL), zap.Error(err))
		return crawler.FetchResponse{}, err
	}
	return result, nil
}

// Links returns every element matched by selector that carries an href,
// resolved against the page URL. Element text is trimmed.
func (f *Fetcher) Links(ctx context.Context, pageURL string, selector string) ([]crawler.Link, error) {
	var links []crawler.Link
	_, err := f.Scrape(ctx, crawler.FetchRequest{URL: pageURL}, func(c *colly.Collector) {
		links = links[:0]
		c.OnHTML(selector, func(e *colly.HTMLElement) {
			href := e.Attr("href")
			if href == "" {
				return
			}
			abs := e.Request.AbsoluteURL(href)
			if abs == "" {
				return
			}
			links = append(links, crawler.Link{Text: strings.TrimSpace(e.Text), URL: abs})
		})
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (f *Fetcher) buildCollector(
	request crawler.FetchRequest,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	collector.MaxBodySize = f.cfg.MaxBodySize
	if collector.MaxBodySize == 0 {
		collector.MaxBodySize = defaultMaxBodySize
	}
	// Error statuses reach OnResponse so they become StatusErrors.
	collector.ParseHTTPErrorResponse = true

	baseTransport := f.transport
	if baseTransport == nil {
		baseTransport = newHTTPTransport()
	}
	collector.WithTransport(baseTransport)

	f.configureCollectorHooks(collector, request, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request crawler.FetchRequest,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
		if r.StatusCode >= http.StatusBadRequest {
			*fetchErr = &crawler.StatusError{URL: result.URL, Code: r.StatusCode}
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if *fetchErr != nil {
			return
		}
		if r != nil && r.StatusCode >= http.StatusBadRequest {
			*fetchErr = &crawler.StatusError{URL: request.URL, Code: r.StatusCode}
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if errors.Is(err, colly.ErrRobotsTxtBlocked) {
			return fmt.Errorf("%w: %s", crawler.ErrRobotsDisallowed, url)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func (f *Fetcher) copyHeaders(request crawler.FetchRequest, r *colly.Request) {
	if request.Headers == nil {
		return
	}
	for key, values := range request.Headers {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
