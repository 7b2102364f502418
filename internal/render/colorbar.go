package render

import (
	"image/color"
	"math"
)

// Colorbar describes the legend for a filled contour.
type Colorbar struct {
	Levels Levels
	Cmap   Colormap
	Label  string
}

const maxTicks = 11

// DrawColorbar draws the legend in the space reserved by Options. Each
// horizontal call stacks below the previous one.
func (m *Map) DrawColorbar(cb Colorbar) error {
	slots := cb.Levels.Slots()
	if slots == 0 {
		return nil
	}
	colors := cb.Cmap.Colors(slots)
	if err := m.setFont(11, false); err != nil {
		return err
	}
	if m.opts.Colorbar == Horizontal {
		m.horizontalBar(cb, colors)
	} else {
		m.verticalBar(cb, colors)
	}
	return nil
}

func tickEvery(n int) int {
	return int(math.Ceil(float64(n) / maxTicks))
}

func (m *Map) verticalBar(cb Colorbar, colors []color.RGBA) {
	p := m.proj.Plot
	x, w := p.X+p.W+25, 22.0
	y, h := p.Y, p.H
	step := h / float64(len(colors))
	for i, c := range colors {
		m.dc.SetColor(c)
		m.dc.DrawRectangle(x, y+h-float64(i+1)*step, w, step)
		m.dc.Fill()
	}
	m.dc.SetColor(color.Black)
	m.dc.SetLineWidth(1)
	m.dc.DrawRectangle(x, y, w, h)
	m.dc.Stroke()

	off := 0
	if cb.Levels.ExtendMin {
		off = 1
	}
	every := tickEvery(len(cb.Levels.Edges))
	for k, v := range cb.Levels.Edges {
		if k%every != 0 {
			continue
		}
		ty := y + h - float64(k+off)*step
		m.dc.DrawLine(x+w, ty, x+w+4, ty)
		m.dc.Stroke()
		m.dc.DrawStringAnchored(FormatLevel(v), x+w+7, ty, 0, 0.35)
	}
	if cb.Label != "" {
		m.dc.Push()
		m.dc.RotateAbout(-math.Pi/2, x+w+70, y+h/2)
		m.dc.DrawStringAnchored(cb.Label, x+w+70, y+h/2, 0.5, 0.5)
		m.dc.Pop()
	}
}

func (m *Map) horizontalBar(cb Colorbar, colors []color.RGBA) {
	p := m.proj.Plot
	x, w := p.X+p.W*0.1, p.W*0.8
	y, h := p.Y+p.H+20+float64(m.bars)*hbarSpace, 16.0
	m.bars++
	step := w / float64(len(colors))
	for i, c := range colors {
		m.dc.SetColor(c)
		m.dc.DrawRectangle(x+float64(i)*step, y, step, h)
		m.dc.Fill()
	}
	m.dc.SetColor(color.Black)
	m.dc.SetLineWidth(1)
	m.dc.DrawRectangle(x, y, w, h)
	m.dc.Stroke()

	off := 0
	if cb.Levels.ExtendMin {
		off = 1
	}
	every := tickEvery(len(cb.Levels.Edges))
	for k, v := range cb.Levels.Edges {
		if k%every != 0 {
			continue
		}
		tx := x + float64(k+off)*step
		m.dc.DrawLine(tx, y+h, tx, y+h+4)
		m.dc.Stroke()
		m.dc.DrawStringAnchored(FormatLevel(v), tx, y+h+6, 0.5, 1)
	}
	if cb.Label != "" {
		m.dc.DrawStringAnchored(cb.Label, x+w/2, y+h+34, 0.5, 0.5)
	}
}
