package bulletins

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fumiama/go-docx"
	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/metrics"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// ForecastRow is one period of a zone forecast.
type ForecastRow struct {
	Label string
	Text  string
}

// ZoneFileName is forecast.docx for the first zone and forecast_{i}.docx after.
func ZoneFileName(i int) string {
	if i == 0 {
		return "forecast.docx"
	}
	return fmt.Sprintf("forecast_%d.docx", i)
}

// ZoneURL builds the MapClick URL of a zone.
func ZoneURL(base, zone string) string {
	return base + "?zoneid=" + url.QueryEscape(zone)
}

// ZoneForecasts writes one Word document per configured zone. A zone that
// fails is logged and skipped; the returned error joins every failure.
func (s *Service) ZoneForecasts(ctx context.Context) ([]string, error) {
	var (
		uris []string
		errs []error
	)
	for i, zone := range s.cfg.Zones {
		uri, err := s.zoneForecast(ctx, i, zone)
		if err != nil {
			s.logger.Warn("zone forecast skipped", zap.String("zone", zone), zap.Error(err))
			errs = append(errs, fmt.Errorf("zone %s: %w", zone, err))
			continue
		}
		uris = append(uris, uri)
	}
	return uris, errors.Join(errs...)
}

func (s *Service) zoneForecast(ctx context.Context, i int, zone string) (string, error) {
	doc, err := s.document(ctx, ZoneURL(s.cfg.ZoneURL, zone))
	if err != nil {
		metrics.ObserveProduct("zone", metrics.StatusError)
		return "", err
	}
	rows, err := ParseZoneRows(doc)
	if err != nil {
		metrics.ObserveProduct("zone", metrics.StatusSkip)
		return "", err
	}

	var buf bytes.Buffer
	if _, err := ZoneDocument(zone, rows).WriteTo(&buf); err != nil {
		return "", fmt.Errorf("encode docx: %w", err)
	}
	return s.write(ctx, "zone", ZoneFileName(i), docxContentType, &buf)
}

// ParseZoneRows reads the detailed forecast periods of a MapClick page.
func ParseZoneRows(doc *goquery.Document) ([]ForecastRow, error) {
	body := doc.Find("#detailed-forecast-body")
	if body.Length() == 0 {
		return nil, fmt.Errorf("%w: #detailed-forecast-body", ErrSectionNotFound)
	}
	var rows []ForecastRow
	body.Find(".row-forecast").Each(func(_ int, row *goquery.Selection) {
		rows = append(rows, ForecastRow{
			Label: row.Find(".forecast-label").Text(),
			Text:  row.Find(".forecast-text").Text(),
		})
	})
	return rows, nil
}

// ZoneDocument lays out the Ag Zone Forecast: a centered title and
// subtitle, then one paragraph per period with the label in bold.
func ZoneDocument(zone string, rows []ForecastRow) *docx.Docx {
	doc := docx.New().WithDefaultTheme()

	doc.AddParagraph().Style("Title").Justification("center").AddText("Ag Zone Forecast")
	doc.AddParagraph().Style("Heading1").Justification("center").
		AddText("NickelBlock Forecasting, " + strings.TrimSpace(zone))

	for _, row := range rows {
		p := doc.AddParagraph().Justification("start")
		bodyFont(p.AddText(row.Label)).Bold()
		bodyFont(p.AddText(": " + row.Text))
	}
	return doc
}

// bodyFont applies Calibri 11pt; docx sizes are in half-points.
func bodyFont(r *docx.Run) *docx.Run {
	return r.Font("Calibri", "Calibri", "Calibri", "default").Size("22")
}
