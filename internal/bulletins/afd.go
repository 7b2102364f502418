package bulletins

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nickelblock/forecast-maps/internal/metrics"
)

const afdFileName = "WxOutput.txt"

var threeSentences = regexp.MustCompile(`(.*?\..*?\..*?\.)`)

// AFDURL builds the product.php URL of an office's area forecast discussion.
func AFDURL(base, office string) string {
	q := url.Values{}
	q.Set("site", "NWS")
	q.Set("issuedby", office)
	q.Set("product", "AFD")
	q.Set("format", "CI")
	q.Set("version", "1")
	q.Set("glossary", "0")
	return base + "?" + q.Encode()
}

// AreaDiscussion writes the DISCUSSION section of the configured office's
// AFD to WxOutput.txt as reflowed paragraphs.
func (s *Service) AreaDiscussion(ctx context.Context) (string, error) {
	doc, err := s.document(ctx, AFDURL(s.cfg.AFDURL, s.cfg.AFDOffice))
	if err != nil {
		metrics.ObserveProduct("afd", metrics.StatusError)
		return "", err
	}
	text, err := ExtractDiscussion(doc)
	if err != nil {
		metrics.ObserveProduct("afd", metrics.StatusSkip)
		return "", err
	}
	return s.writeString(ctx, "afd", afdFileName, "text/plain; charset=utf-8", Reflow(text))
}

// ExtractDiscussion returns the trimmed text from the first DISCUSSION
// marker up to the following "&&".
func ExtractDiscussion(doc *goquery.Document) (string, error) {
	pre := doc.Find("pre.glossaryProduct").First()
	if pre.Length() == 0 {
		return "", fmt.Errorf("%w: pre tag not found", ErrSectionNotFound)
	}
	text := pre.Text()
	start := strings.Index(text, "DISCUSSION")
	if start < 0 {
		return "", fmt.Errorf("%w: DISCUSSION", ErrMarkersNotFound)
	}
	end := strings.Index(text[start:], "&&")
	if end < 0 {
		return "", fmt.Errorf("%w: &&", ErrMarkersNotFound)
	}
	return strings.TrimSpace(text[start : start+end]), nil
}

// Reflow joins the lines of text and starts a new paragraph after every
// third period.
func Reflow(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	return threeSentences.ReplaceAllString(text, "${1}\n\n")
}
