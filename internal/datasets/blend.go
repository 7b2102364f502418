package datasets

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/crawler"
	"github.com/nickelblock/forecast-maps/internal/metrics"
)

const blendProduct = "blend"

// BlendFile is one forecast day matched in a blend run.
type BlendFile struct {
	Day  int
	Hour int
	URL  string
}

// BlendName is the object name of a day's blend file.
func BlendName(day int) string {
	return fmt.Sprintf("Day_%d_data.grb2", day)
}

// BlendFiles locates the blend file for every forecast day without
// downloading anything. Day d targets hour 24*(d+1) of the configured cycle
// with the forecast-hour fallback search.
func (s *Service) BlendFiles(ctx context.Context) ([]BlendFile, error) {
	_, logger := s.run()
	return s.blendFiles(ctx, logger)
}

func (s *Service) blendFiles(ctx context.Context, logger *zap.Logger) ([]BlendFile, error) {
	runURL, err := s.blendRun(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("selected blend run", zap.String("url", runURL))

	cycle := strings.Trim(s.cfg.Cycle, "/") + "/"
	entries, err := s.deps.Links.Links(ctx, runURL, "pre a")
	if err != nil {
		return nil, fmt.Errorf("list blend run: %w", err)
	}
	if !hasText(entries, cycle) {
		return nil, fmt.Errorf("%w: %s has no %s", ErrCycleMissing, runURL, cycle)
	}

	gribURL := runURL + cycle + "grib2/"
	files, err := s.deps.Links.Links(ctx, gribURL, "pre a")
	if err != nil {
		return nil, fmt.Errorf("list blend grib2 directory: %w", err)
	}
	texts := make([]string, len(files))
	byText := make(map[string]string, len(files))
	for i, f := range files {
		texts[i] = f.Text
		if _, ok := byText[f.Text]; !ok {
			byText[f.Text] = f.URL
		}
	}

	pattern := func(hour int) string { return fmt.Sprintf("f%03d.co", hour) }
	seen := make(map[string]bool)
	var out []BlendFile
	for day := 0; day < s.cfg.Days; day++ {
		target := 24 * (day + 1)
		text, hour, ok := crawler.MatchForecastHour(texts, target, s.cfg.Ahead, s.cfg.MaxHour, pattern)
		if !ok {
			logger.Warn("no blend file for day", zap.Int("day", day), zap.Int("target_hour", target))
			continue
		}
		fileURL := byText[text]
		if fileURL == "" {
			fileURL = gribURL + text
		}
		if seen[fileURL] {
			continue
		}
		seen[fileURL] = true
		out = append(out, BlendFile{Day: len(out), Hour: hour, URL: fileURL})
	}

	if len(out) != s.cfg.Days {
		logger.Warn("not all days included in data",
			zap.Int("found", len(out)), zap.Int("want", s.cfg.Days))
		return out, fmt.Errorf("%w: found %d of %d", ErrIncompleteDays, len(out), s.cfg.Days)
	}
	return out, nil
}

// Blend downloads one file per forecast day as Day_{i}_data.grb2. Nothing
// is downloaded unless every day matched.
func (s *Service) Blend(ctx context.Context) ([]crawler.Artifact, error) {
	start := s.deps.Clock.Now()
	runID, logger := s.run()
	defer func() { metrics.ObservePipeline("download:"+blendProduct, s.deps.Clock.Since(start)) }()

	files, err := s.blendFiles(ctx, logger)
	if err != nil {
		metrics.ObserveDownload(blendProduct, metrics.StatusSkip)
		return nil, err
	}

	artifacts := make([]crawler.Artifact, 0, len(files))
	for _, f := range files {
		logger.Info("downloading blend file", zap.Int("day", f.Day), zap.Int("hour", f.Hour), zap.String("url", f.URL))
		artifact, err := s.fetch(ctx, blendProduct, f.URL, BlendName(f.Day), runID)
		if err != nil {
			return artifacts, fmt.Errorf("blend day %d: %w", f.Day, err)
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}

// blendRun picks yesterday's run directory, falling back to the
// second-newest run and then the newest.
func (s *Service) blendRun(ctx context.Context) (string, error) {
	base := strings.TrimRight(s.cfg.BlendBase, "/") + "/"
	links, err := s.deps.Links.Links(ctx, base, "pre a")
	if err != nil {
		return "", fmt.Errorf("list blend runs: %w", err)
	}
	var runs []string
	for _, l := range links {
		if strings.HasPrefix(l.Text, "blend.") && strings.HasSuffix(l.Text, "/") {
			runs = append(runs, l.Text)
		}
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoRun, base)
	}
	sort.Strings(runs)

	want := "blend." + yesterday(s.deps.Clock.Now()).Format("20060102") + "/"
	chosen := ""
	for _, r := range runs {
		if r == want {
			chosen = r
		}
	}
	if chosen == "" {
		if len(runs) >= 2 {
			chosen = runs[len(runs)-2]
		} else {
			chosen = runs[0]
		}
	}
	return base + chosen, nil
}

func hasText(links []crawler.Link, text string) bool {
	for _, l := range links {
		if l.Text == text {
			return true
		}
	}
	return false
}
