package grid

import "math"

// LatLonGrid is a regular latitude/longitude geometry built from 1-D axes.
// Axes may ascend or descend; spacing is assumed uniform.
type LatLonGrid struct {
	Lats []float64
	Lons []float64
}

// NewLatLonGrid builds a regular grid from a first point, increments and counts.
func NewLatLonGrid(lat0, lon0, dlat, dlon float64, nx, ny int) *LatLonGrid {
	g := &LatLonGrid{Lats: make([]float64, ny), Lons: make([]float64, nx)}
	for j := range g.Lats {
		g.Lats[j] = lat0 + float64(j)*dlat
	}
	for i := range g.Lons {
		g.Lons[i] = lon0 + float64(i)*dlon
	}
	return g
}

// Dims implements Geometry.
func (g *LatLonGrid) Dims() (int, int) {
	return len(g.Lons), len(g.Lats)
}

// LatLon implements Geometry. Longitudes are reported as stored on the axis.
func (g *LatLonGrid) LatLon(i, j int) (float64, float64) {
	return g.Lats[j], g.Lons[i]
}

// Locate implements Geometry.
func (g *LatLonGrid) Locate(lat, lon float64) (float64, float64, bool) {
	if len(g.Lats) == 0 || len(g.Lons) == 0 {
		return 0, 0, false
	}
	fj, ok := axisIndex(g.Lats, lat)
	if !ok {
		return 0, 0, false
	}
	fi, ok := axisIndex(g.Lons, wrapTo(g.Lons, lon))
	if !ok {
		return 0, 0, false
	}
	return fi, fj, true
}

// axisIndex returns the fractional position of v on a uniform axis.
func axisIndex(axis []float64, v float64) (float64, bool) {
	n := len(axis)
	if n == 1 {
		return 0, math.Abs(axis[0]-v) < coordEpsilon
	}
	step := (axis[n-1] - axis[0]) / float64(n-1)
	if step == 0 {
		return 0, false
	}
	f := (v - axis[0]) / step
	if f < -0.5 || f > float64(n-1)+0.5 {
		return 0, false
	}
	return math.Max(0, math.Min(f, float64(n-1))), true
}

// wrapTo shifts lon by a multiple of 360 to sit closest to the axis midpoint.
func wrapTo(axis []float64, lon float64) float64 {
	mid := (axis[0] + axis[len(axis)-1]) / 2
	return lon + 360*math.Round((mid-lon)/360)
}
