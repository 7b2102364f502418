package bulletins

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/crawler"
	"github.com/nickelblock/forecast-maps/internal/metrics"
)

const (
	spcFeedFileName = "SPCoutput.html"
	latestMDText    = "Latest Mesoscale Discussion"
)

// MesoscaleFeed writes the first item of the SPC mesoscale discussion RSS
// feed to SPCoutput.html.
func (s *Service) MesoscaleFeed(ctx context.Context) (string, error) {
	resp, err := s.fetcher.Fetch(ctx, crawler.FetchRequest{URL: s.cfg.SPCRSSURL})
	if err != nil {
		metrics.ObserveProduct("spc-rss", metrics.StatusError)
		return "", fmt.Errorf("fetch %s: %w", s.cfg.SPCRSSURL, err)
	}
	feed, err := gofeed.NewParser().ParseString(string(resp.Body))
	if err != nil {
		metrics.ObserveProduct("spc-rss", metrics.StatusError)
		return "", fmt.Errorf("parse feed: %w", err)
	}
	page, err := FeedHTML(feed)
	if err != nil {
		metrics.ObserveProduct("spc-rss", metrics.StatusSkip)
		return "", err
	}
	return s.writeString(ctx, "spc-rss", spcFeedFileName, "text/html; charset=utf-8", page)
}

// FeedHTML renders the first feed item as a heading and a paragraph. Both
// fields are written unescaped; SPC descriptions already carry markup.
func FeedHTML(feed *gofeed.Feed) (string, error) {
	if feed == nil || len(feed.Items) == 0 {
		return "", ErrEmptyFeed
	}
	item := feed.Items[0]
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%s</h1>\n", item.Title)
	fmt.Fprintf(&b, "<p>%s</p>\n", item.Description)
	return b.String(), nil
}

// LatestMesoscaleDiscussion downloads the page linked as "Latest
// Mesoscale Discussion" under its own file name.
func (s *Service) LatestMesoscaleDiscussion(ctx context.Context) (crawler.Artifact, error) {
	doc, err := s.document(ctx, s.cfg.SPCMDURL)
	if err != nil {
		metrics.ObserveProduct("spc-md", metrics.StatusError)
		return crawler.Artifact{}, err
	}
	mdURL, err := LatestMDLink(doc, s.cfg.SPCMDURL)
	if err != nil {
		metrics.ObserveProduct("spc-md", metrics.StatusSkip)
		return crawler.Artifact{}, err
	}
	s.logger.Info("latest mesoscale discussion", zap.String("url", mdURL))

	artifact, err := s.downloader.Download(ctx, mdURL, crawler.URLBasename(mdURL))
	if err != nil {
		metrics.ObserveProduct("spc-md", metrics.StatusError)
		return crawler.Artifact{}, err
	}
	metrics.ObserveProduct("spc-md", metrics.StatusOK)
	return artifact, nil
}

// LatestMDLink finds the absolute URL of the latest discussion link.
func LatestMDLink(doc *goquery.Document, pageURL string) (string, error) {
	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.TrimSpace(a.Text()) != latestMDText {
			return true
		}
		href, _ = a.Attr("href")
		return false
	})
	if href == "" {
		return "", fmt.Errorf("%w: %q", ErrLinkNotFound, latestMDText)
	}
	return resolve(pageURL, href)
}
