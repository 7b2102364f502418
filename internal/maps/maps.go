// Package maps turns decoded forecast fields into finished map images.
package maps

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/geo"
	"github.com/nickelblock/forecast-maps/internal/grib2"
	"github.com/nickelblock/forecast-maps/internal/logging"
	"github.com/nickelblock/forecast-maps/internal/metrics"
	"github.com/nickelblock/forecast-maps/internal/render"
	"github.com/nickelblock/forecast-maps/internal/thredds"
)

const pngContentType = "image/png"

// Product is one rendered image.
type Product struct {
	Name        string
	ContentType string
	Body        []byte
}

// NCSS resolves the GFS dataset and downloads subsets of it.
type NCSS interface {
	ResolveNCSS(ctx context.Context, catalogURL string) (thredds.Dataset, error)
	Subset(ctx context.Context, ds thredds.Dataset, q thredds.NCSSQuery) ([]byte, error)
}

// ObjectReader opens previously downloaded files.
type ObjectReader interface {
	GetObject(ctx context.Context, path string) (io.ReadCloser, error)
}

// Config holds the generator inputs.
type Config struct {
	// GFSCatalog is the catalog.xml of the GFS quarter-degree best dataset.
	GFSCatalog string
	Basemap    *render.Basemap
}

// Generator renders every map kind.
type Generator struct {
	cfg     Config
	ncss    NCSS
	objects ObjectReader
	clock   clockwork.Clock
	logger  *zap.Logger
}

// NewGenerator wires a Generator. A nil clock uses the real one.
func NewGenerator(cfg Config, ncss NCSS, objects ObjectReader, clock clockwork.Clock, logger *zap.Logger) *Generator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Generator{cfg: cfg, ncss: ncss, objects: objects, clock: clock, logger: logging.OrNop(logger)}
}

func (g *Generator) encode(kind, name string, m *render.Map) (Product, error) {
	var buf bytes.Buffer
	if err := m.EncodePNG(&buf); err != nil {
		metrics.ObserveProduct(kind, metrics.StatusError)
		return Product{}, fmt.Errorf("%s: %w", name, err)
	}
	metrics.ObserveProduct(kind, metrics.StatusOK)
	g.logger.Debug("map rendered", zap.String("kind", kind), zap.String("name", name), zap.Int("bytes", buf.Len()))
	return Product{Name: name, ContentType: pngContentType, Body: buf.Bytes()}, nil
}

// finish draws the layers every map shares on top of the data: boundaries,
// the logo, the frame, the title and the credit boxes.
func (g *Generator) finish(m *render.Map, title, model string) error {
	m.DrawBoundaries(g.cfg.Basemap)
	m.DrawLogo(g.cfg.Basemap)
	m.DrawFrame()
	if err := m.Title(title); err != nil {
		return err
	}
	return m.Credits(model)
}

func (g *Generator) readGRIB(ctx context.Context, path string) ([]*grib2.Message, error) {
	rc, err := g.objects.GetObject(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer rc.Close()
	msgs, err := grib2.Read(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return msgs, nil
}

func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

func fileTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02_15:04:05")
}

func (g *Generator) timed(kind string) func() {
	start := g.clock.Now()
	return func() { metrics.ObservePipeline("maps:"+kind, g.clock.Since(start)) }
}

// Blank draws the basemap, the cities and the copyright box.
func (g *Generator) Blank(_ context.Context, region geo.Region) ([]Product, error) {
	defer g.timed("blank")()
	m := render.New(region, region.BlankExtent(), render.Options{Width: render.SmallWidth, Height: render.SmallHeight})
	m.DrawBasemap(g.cfg.Basemap)
	m.DrawBoundaries(g.cfg.Basemap)
	if err := m.Cities(region.Cities); err != nil {
		return nil, err
	}
	m.DrawFrame()
	if err := m.Credits(""); err != nil {
		return nil, err
	}
	p, err := g.encode("blank", region.Name+"_Blank_Map.png", m)
	if err != nil {
		return nil, err
	}
	return []Product{p}, nil
}
