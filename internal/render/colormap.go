package render

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Colormap turns a position in [0, 1] into a color.
type Colormap struct {
	Name    string
	anchors []color.RGBA
	// listed maps pick discrete entries instead of interpolating.
	listed bool
}

func rgb(r, g, b uint8) color.RGBA { return color.RGBA{R: r, G: g, B: b, A: 255} }

// Built-in colormaps. The sequential ones follow the matplotlib tables of
// the same name.
var (
	Coolwarm = Colormap{Name: "coolwarm", anchors: []color.RGBA{
		rgb(59, 76, 192), rgb(141, 176, 254), rgb(221, 221, 221), rgb(244, 154, 123), rgb(180, 4, 38),
	}}
	Greens = Colormap{Name: "Greens", anchors: []color.RGBA{
		rgb(247, 252, 245), rgb(199, 233, 192), rgb(116, 196, 118), rgb(35, 139, 69), rgb(0, 68, 27),
	}}
	Blues = Colormap{Name: "Blues", anchors: []color.RGBA{
		rgb(247, 251, 255), rgb(198, 219, 239), rgb(107, 174, 214), rgb(33, 113, 181), rgb(8, 48, 107),
	}}
	Reds = Colormap{Name: "Reds", anchors: []color.RGBA{
		rgb(255, 245, 240), rgb(252, 187, 161), rgb(251, 106, 74), rgb(203, 24, 29), rgb(103, 0, 13),
	}}
	Precip = MustListed("precip",
		"#ffffff",
		"#7dcf65", "#6fba59", "#63a351", "#5c914d", "#508641",
		"#48793b", "#396a2d", "#315d27", "#245817", "#1c4711",
		"#ffea5d", "#dddf32", "#dfcc4b", "#DBC634",
		"#ffa500",
	)
)

// PrecipLevels are the precipitation rate contour levels in inches.
var PrecipLevels = []float64{0.001, 0.01, 0.025, 0.045, 0.065, 0.085, 0.105, 0.125, 0.150, 0.175, 0.200, 0.250, 0.5, 1.0}

// ColormapByName looks up a built-in colormap.
func ColormapByName(name string) (Colormap, error) {
	for _, c := range []Colormap{Coolwarm, Greens, Blues, Reds, Precip} {
		if c.Name == name {
			return c, nil
		}
	}
	return Colormap{}, fmt.Errorf("unknown colormap %q", name)
}

// MustListed builds a listed colormap from hex colors and panics on a bad one.
func MustListed(name string, hexes ...string) Colormap {
	c := Colormap{Name: name, listed: true}
	for _, h := range hexes {
		col, err := ParseHex(h)
		if err != nil {
			panic(err)
		}
		c.anchors = append(c.anchors, col)
	}
	return c
}

// ParseHex parses "#rrggbb".
func ParseHex(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("bad hex color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("bad hex color %q: %w", s, err)
	}
	return rgb(uint8(v>>16), uint8(v>>8), uint8(v)), nil
}

// At returns the color at t, clamped to [0, 1].
func (c Colormap) At(t float64) color.RGBA {
	n := len(c.anchors)
	if n == 0 {
		return color.RGBA{}
	}
	t = math.Max(0, math.Min(1, t))
	if c.listed || n == 1 {
		return c.anchors[int(math.Round(t*float64(n-1)))]
	}
	pos := t * float64(n-1)
	i := int(math.Floor(pos))
	if i >= n-1 {
		return c.anchors[n-1]
	}
	frac := pos - float64(i)
	a, b := c.anchors[i], c.anchors[i+1]
	lerp := func(x, y uint8) uint8 { return uint8(math.Round(float64(x) + (float64(y)-float64(x))*frac)) }
	return rgb(lerp(a.R, b.R), lerp(a.G, b.G), lerp(a.B, b.B))
}

// Colors samples n evenly spaced colors across the map.
func (c Colormap) Colors(n int) []color.RGBA {
	out := make([]color.RGBA, n)
	for i := range out {
		if n == 1 {
			out[i] = c.At(0.5)
			continue
		}
		out[i] = c.At(float64(i) / float64(n-1))
	}
	return out
}
