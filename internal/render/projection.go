package render

import (
	"math"

	"github.com/nickelblock/forecast-maps/internal/geo"
)

// Rect is a pixel rectangle.
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether the pixel lies inside the rectangle.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

// Projection maps an extent onto a plot rectangle with spherical Mercator.
type Projection struct {
	Extent geo.Extent
	Plot   Rect

	yNorth, ySouth float64
}

func mercY(lat float64) float64 {
	phi := lat * math.Pi / 180
	return math.Log(math.Tan(math.Pi/4 + phi/2))
}

func invMercY(y float64) float64 {
	return (2*math.Atan(math.Exp(y)) - math.Pi/2) * 180 / math.Pi
}

// FitProjection places the largest rectangle with the extent's Mercator
// aspect ratio inside avail, centered.
func FitProjection(extent geo.Extent, avail Rect) Projection {
	p := Projection{Extent: extent, yNorth: mercY(extent.North), ySouth: mercY(extent.South)}
	aspect := ((extent.East - extent.West) * math.Pi / 180) / (p.yNorth - p.ySouth)
	w, h := avail.W, avail.H
	if w/h > aspect {
		w = h * aspect
	} else {
		h = w / aspect
	}
	p.Plot = Rect{X: avail.X + (avail.W-w)/2, Y: avail.Y + (avail.H-h)/2, W: w, H: h}
	return p
}

// Project returns the pixel position of a coordinate.
func (p Projection) Project(lat, lon float64) (x, y float64) {
	x = p.Plot.X + (lon-p.Extent.West)/(p.Extent.East-p.Extent.West)*p.Plot.W
	y = p.Plot.Y + (p.yNorth-mercY(lat))/(p.yNorth-p.ySouth)*p.Plot.H
	return x, y
}

// Unproject returns the coordinate under a pixel.
func (p Projection) Unproject(x, y float64) (lat, lon float64) {
	lon = p.Extent.West + (x-p.Plot.X)/p.Plot.W*(p.Extent.East-p.Extent.West)
	lat = invMercY(p.yNorth - (y-p.Plot.Y)/p.Plot.H*(p.yNorth-p.ySouth))
	return lat, lon
}
