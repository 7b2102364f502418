// Package render draws forecast maps: a Mercator plot of a region with
// boundary layers, filled contours, city labels, a colorbar and captions.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"

	"github.com/nickelblock/forecast-maps/internal/geo"
	"github.com/nickelblock/forecast-maps/internal/grid"
)

// Figure sizes in pixels.
const (
	GFSWidth    = 1500
	GFSHeight   = 900
	SmallWidth  = 1000
	SmallHeight = 700
)

// Orientation is where the colorbar goes.
type Orientation int

const (
	NoColorbar Orientation = iota
	Vertical
	Horizontal
)

// Options control the figure layout.
type Options struct {
	Width, Height int
	Colorbar      Orientation
	// Colorbars is the number of horizontal colorbars stacked below the plot.
	Colorbars int
}

// Map is one figure being drawn.
type Map struct {
	dc     *gg.Context
	proj   Projection
	region geo.Region
	opts   Options
	bars   int
}

const (
	marginTop    = 60
	marginSide   = 40
	marginBottom = 30
	vbarSpace    = 130
	hbarSpace    = 70
)

// New starts a figure for region over extent. The plot keeps the Mercator
// aspect of extent and leaves room for the requested colorbars.
func New(region geo.Region, extent geo.Extent, opts Options) *Map {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = SmallWidth, SmallHeight
	}
	avail := Rect{
		X: marginSide,
		Y: marginTop,
		W: float64(opts.Width) - 2*marginSide,
		H: float64(opts.Height) - marginTop - marginBottom,
	}
	switch opts.Colorbar {
	case Vertical:
		avail.W -= vbarSpace
	case Horizontal:
		n := opts.Colorbars
		if n < 1 {
			n = 1
		}
		avail.H -= float64(n) * hbarSpace
	}

	dc := gg.NewContext(opts.Width, opts.Height)
	dc.SetColor(color.White)
	dc.Clear()
	return &Map{dc: dc, proj: FitProjection(extent, avail), region: region, opts: opts}
}

// Projection exposes the pixel mapping of the plot.
func (m *Map) Projection() Projection {
	return m.proj
}

// Image returns the figure drawn so far.
func (m *Map) Image() image.Image {
	return m.dc.Image()
}

// EncodePNG writes the figure as PNG.
func (m *Map) EncodePNG(w io.Writer) error {
	if err := m.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func (m *Map) clipPlot() {
	p := m.proj.Plot
	m.dc.DrawRectangle(p.X, p.Y, p.W, p.H)
	m.dc.Clip()
}

// DrawBasemap fills land and ocean and strokes the region's boundary layers.
// With no layers loaded the plot stays white.
func (m *Map) DrawBasemap(b *Basemap) {
	layers := b.layersFor(m.region)
	if len(layers) == 0 {
		return
	}
	m.clipPlot()
	defer m.dc.ResetClip()

	p := m.proj.Plot
	m.dc.SetColor(oceanColor)
	m.dc.DrawRectangle(p.X, p.Y, p.W, p.H)
	m.dc.Fill()

	if outer := layers[0].layer; outer.Polygons {
		m.dc.SetFillRuleEvenOdd()
		m.tracePath(outer, true)
		m.dc.SetColor(landColor)
		m.dc.Fill()
		m.dc.SetFillRuleWinding()
	}
}

// DrawBoundaries strokes the region's boundary layers in black.
func (m *Map) DrawBoundaries(b *Basemap) {
	layers := b.layersFor(m.region)
	if len(layers) == 0 {
		return
	}
	m.clipPlot()
	defer m.dc.ResetClip()
	m.dc.SetColor(color.Black)
	for _, l := range layers {
		m.dc.SetLineWidth(l.width)
		m.tracePath(l.layer, l.layer.Polygons)
		m.dc.Stroke()
	}
}

func (m *Map) tracePath(l *Layer, closed bool) {
	for _, line := range l.Lines {
		if len(line) < 2 {
			continue
		}
		m.dc.NewSubPath()
		for k, pt := range line {
			x, y := m.proj.Project(pt[1], pt[0])
			if k == 0 {
				m.dc.MoveTo(x, y)
			} else {
				m.dc.LineTo(x, y)
			}
		}
		if closed {
			m.dc.ClosePath()
		}
	}
}

// FillContour colors every plot pixel by the band its sampled value falls
// in. Unclassified and missing values stay transparent.
func (m *Map) FillContour(f *grid.Field, levels Levels, cmap Colormap) {
	colors := cmap.Colors(levels.Slots())
	if len(colors) == 0 {
		return
	}
	w, h := m.dc.Width(), m.dc.Height()
	layer := image.NewRGBA(image.Rect(0, 0, w, h))
	p := m.proj.Plot
	x0, y0 := int(p.X), int(p.Y)
	x1, y1 := int(p.X+p.W), int(p.Y+p.H)
	for py := y0; py < y1 && py < h; py++ {
		for px := x0; px < x1 && px < w; px++ {
			lat, lon := m.proj.Unproject(float64(px)+0.5, float64(py)+0.5)
			slot, ok := levels.Classify(f.Sample(lat, lon))
			if !ok {
				continue
			}
			layer.SetRGBA(px, py, colors[slot])
		}
	}
	m.dc.DrawImage(layer, 0, 0)
}

// DrawFrame strokes the plot border.
func (m *Map) DrawFrame() {
	p := m.proj.Plot
	m.dc.SetColor(color.Black)
	m.dc.SetLineWidth(1)
	m.dc.DrawRectangle(p.X, p.Y, p.W, p.H)
	m.dc.Stroke()
}
