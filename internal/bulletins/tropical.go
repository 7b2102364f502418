package bulletins

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/metrics"
)

var (
	tags         = regexp.MustCompile(`<.*?>`)
	unsafeInName = strings.NewReplacer("/", "-", "\\", "-", "\x00", "")
)

// Outlook is a scraped NHC text product.
type Outlook struct {
	Title string
	Text  string
}

// OutlookURL builds the text product URL for an NHC product id.
func OutlookURL(base, product string) string {
	return strings.TrimRight(base, "/") + "/" + product + ".shtml"
}

// TropicalOutlooks writes each configured NHC product to "{title}.txt".
func (s *Service) TropicalOutlooks(ctx context.Context) ([]string, error) {
	var (
		uris []string
		errs []error
	)
	for _, product := range s.cfg.NHCProducts {
		uri, err := s.tropicalOutlook(ctx, product)
		if err != nil {
			s.logger.Warn("tropical outlook skipped", zap.String("product", product), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", product, err))
			continue
		}
		uris = append(uris, uri)
	}
	return uris, errors.Join(errs...)
}

func (s *Service) tropicalOutlook(ctx context.Context, product string) (string, error) {
	doc, err := s.document(ctx, OutlookURL(s.cfg.NHCURL, product))
	if err != nil {
		metrics.ObserveProduct("tropical", metrics.StatusError)
		return "", err
	}
	outlook, err := ParseOutlook(doc)
	if err != nil {
		metrics.ObserveProduct("tropical", metrics.StatusSkip)
		return "", err
	}
	name := unsafeInName.Replace(outlook.Title) + ".txt"
	return s.writeString(ctx, "tropical", name, "text/plain; charset=utf-8", outlook.Title+outlook.Text)
}

// ParseOutlook takes the first h2 as the title and the first pre block,
// serialized and stripped of tags, as the text.
func ParseOutlook(doc *goquery.Document) (Outlook, error) {
	pre := doc.Find("pre").First()
	if pre.Length() == 0 {
		return Outlook{}, fmt.Errorf("%w: pre", ErrSectionNotFound)
	}
	raw, err := goquery.OuterHtml(pre)
	if err != nil {
		return Outlook{}, fmt.Errorf("serialize pre: %w", err)
	}
	title := strings.TrimSpace(doc.Find("h2").First().Text())
	if title == "" {
		title = "None"
	}
	return Outlook{Title: title, Text: tags.ReplaceAllString(raw, "")}, nil
}
