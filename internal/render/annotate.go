package render

import (
	"fmt"
	"image/color"
	"math"

	"github.com/nickelblock/forecast-maps/internal/geo"
)

// Copyright is the attribution drawn in the lower-right box.
const Copyright = "© NickelBlock Forecasting"

// Anchored box locations, numbered as in matplotlib legends.
const (
	LowerLeft  = 3
	LowerRight = 4
)

var cityRed = color.RGBA{R: 220, G: 20, B: 20, A: 255}

func (m *Map) setFont(size float64, bold bool) error {
	f, err := face(size, bold)
	if err != nil {
		return err
	}
	m.dc.SetFontFace(f)
	return nil
}

// Title writes a left-aligned title above the plot.
func (m *Map) Title(text string) error {
	if err := m.setFont(18, false); err != nil {
		return err
	}
	m.dc.SetColor(color.Black)
	m.dc.DrawStringAnchored(text, m.proj.Plot.X, m.proj.Plot.Y-14, 0, 0)
	return nil
}

// AnchoredText draws a framed text box in a corner of the plot.
func (m *Map) AnchoredText(loc int, text string) error {
	if err := m.setFont(12, false); err != nil {
		return err
	}
	const pad = 6.0
	tw, th := m.dc.MeasureString(text)
	bw, bh := tw+2*pad, th+2*pad
	p := m.proj.Plot
	y := p.Y + p.H - bh - pad
	var x float64
	switch loc {
	case LowerLeft:
		x = p.X + pad
	case LowerRight:
		x = p.X + p.W - bw - pad
	default:
		return fmt.Errorf("unsupported text location %d", loc)
	}
	m.dc.SetColor(color.White)
	m.dc.DrawRectangle(x, y, bw, bh)
	m.dc.FillPreserve()
	m.dc.SetColor(color.Black)
	m.dc.SetLineWidth(1)
	m.dc.Stroke()
	m.dc.DrawStringAnchored(text, x+pad, y+pad, 0, 0.8)
	return nil
}

// Credits draws the model box in the lower left and the copyright box in
// the lower right.
func (m *Map) Credits(model string) error {
	if model != "" {
		if err := m.AnchoredText(LowerLeft, model); err != nil {
			return err
		}
	}
	return m.AnchoredText(LowerRight, Copyright)
}

// DrawLogo stamps the basemap's logo in the lower right of the plot, above
// the copyright box.
func (m *Map) DrawLogo(b *Basemap) {
	if b == nil || b.Logo == nil {
		return
	}
	p := m.proj.Plot
	m.dc.DrawImageAnchored(b.Logo, int(p.X+p.W-logoInset), int(p.Y+p.H-logoLift), 1, 1)
}

const (
	logoInset = 6
	logoLift  = 40
)

// Marker draws a red city dot.
func (m *Map) Marker(lat, lon float64) {
	x, y := m.proj.Project(lat, lon)
	m.dc.SetColor(cityRed)
	m.dc.DrawCircle(x, y, 4)
	m.dc.Fill()
}

// Label writes text with its left baseline at the coordinate shifted by off.
func (m *Map) Label(lat, lon float64, off geo.Offset, text string, bold bool) error {
	if err := m.setFont(12, bold); err != nil {
		return err
	}
	x, y := m.proj.Project(lat+off.Lat, lon+off.Lon)
	m.dc.SetColor(color.Black)
	m.dc.DrawString(text, x, y)
	return nil
}

// City draws a marker and the bold name at the region's name offset.
func (m *Map) City(c geo.City) error {
	m.Marker(c.Lat, c.Lon)
	return m.Label(c.Lat, c.Lon, m.region.NameOffset, c.Name, true)
}

// Cities draws each city, with the rounded temperature at the value offset
// when the city carries one.
func (m *Map) Cities(cities []geo.City) error {
	for _, c := range cities {
		if err := m.City(c); err != nil {
			return err
		}
		if c.Temp != nil {
			text := fmt.Sprintf("%d", int(math.RoundToEven(*c.Temp)))
			if err := m.Label(c.Lat, c.Lon, m.region.ValueOffset, text, false); err != nil {
				return err
			}
		}
	}
	return nil
}
