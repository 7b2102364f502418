// Package grid models decoded forecast fields and the lookups done on them.
package grid

import (
	"errors"
	"math"
	"time"
)

// ErrShape is returned when values do not match the geometry dimensions.
var ErrShape = errors.New("grid: values do not match geometry")

// Geometry maps grid indices to coordinates and back.
// i runs along a row (x), j across rows (y).
type Geometry interface {
	Dims() (nx, ny int)
	LatLon(i, j int) (lat, lon float64)
	Locate(lat, lon float64) (fi, fj float64, ok bool)
}

// Field is one decoded 2-D parameter. Missing points are NaN.
type Field struct {
	Name          string
	ShortName     string
	Units         string
	ReferenceTime time.Time
	ValidTime     time.Time
	NX, NY        int
	Values        []float64
	Geometry      Geometry
}

// NewField validates the value count against geom and returns a field.
func NewField(geom Geometry, values []float64) (*Field, error) {
	nx, ny := geom.Dims()
	if nx*ny != len(values) {
		return nil, ErrShape
	}
	return &Field{NX: nx, NY: ny, Values: values, Geometry: geom}, nil
}

// At returns the value at column i, row j.
func (f *Field) At(i, j int) float64 {
	if i < 0 || j < 0 || i >= f.NX || j >= f.NY {
		return math.NaN()
	}
	return f.Values[j*f.NX+i]
}

// Apply rewrites every non-missing value with fn.
func (f *Field) Apply(fn func(float64) float64) {
	for k, v := range f.Values {
		if !math.IsNaN(v) {
			f.Values[k] = fn(v)
		}
	}
}

// MinMax returns the extremes of the non-missing values.
// ok is false when every point is missing.
func (f *Field) MinMax() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range f.Values {
		if math.IsNaN(v) {
			continue
		}
		ok = true
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, ok
}

// Nearest returns the value of the grid cell closest to the coordinate.
func (f *Field) Nearest(lat, lon float64) (float64, bool) {
	fi, fj, ok := f.Geometry.Locate(lat, lon)
	if !ok {
		return math.NaN(), false
	}
	v := f.At(int(math.Round(fi)), int(math.Round(fj)))
	return v, !math.IsNaN(v)
}

// Sample bilinearly interpolates the field at the coordinate. When a corner
// is missing it falls back to the nearest cell; outside the grid it is NaN.
func (f *Field) Sample(lat, lon float64) float64 {
	fi, fj, ok := f.Geometry.Locate(lat, lon)
	if !ok {
		return math.NaN()
	}
	i0, j0 := int(math.Floor(fi)), int(math.Floor(fj))
	i1, j1 := i0+1, j0+1
	if i1 >= f.NX {
		i1 = i0
	}
	if j1 >= f.NY {
		j1 = j0
	}
	v00, v10 := f.At(i0, j0), f.At(i1, j0)
	v01, v11 := f.At(i0, j1), f.At(i1, j1)
	if math.IsNaN(v00) || math.IsNaN(v10) || math.IsNaN(v01) || math.IsNaN(v11) {
		return f.At(int(math.Round(fi)), int(math.Round(fj)))
	}
	di, dj := fi-float64(i0), fj-float64(j0)
	top := v00*(1-di) + v10*di
	bottom := v01*(1-di) + v11*di
	return top*(1-dj) + bottom*dj
}

// RoundQuarter snaps x to the nearest 0.25 degree.
func RoundQuarter(x float64) float64 {
	return math.Round(x*4) / 4
}

// RoundTenth snaps x to one decimal place.
func RoundTenth(x float64) float64 {
	return math.Round(x*10) / 10
}

const coordEpsilon = 1e-6

// MatchQuarterDegree finds the grid point sitting exactly on the city's
// quarter-degree rounded coordinate. Longitudes above 180 are shifted by
// -360 before comparing, so 0..360 axes match western-hemisphere cities.
func (f *Field) MatchQuarterDegree(lat, lon float64) (float64, bool) {
	wantLat, wantLon := RoundQuarter(lat), RoundQuarter(lon)
	for j := 0; j < f.NY; j++ {
		for i := 0; i < f.NX; i++ {
			plat, plon := f.Geometry.LatLon(i, j)
			if math.Abs(plat-wantLat) < coordEpsilon && math.Abs(NormalizeLon(plon)-wantLon) < coordEpsilon {
				return f.At(i, j), true
			}
		}
	}
	return math.NaN(), false
}

// MatchTenth returns the first grid point whose coordinates round to the
// same tenth of a degree as the city.
func (f *Field) MatchTenth(lat, lon float64) (float64, bool) {
	i, j, ok := f.MatchTenthIndex(lat, lon)
	if !ok {
		return math.NaN(), false
	}
	return f.At(i, j), true
}

// MatchTenthIndex is MatchTenth returning the grid index, so fields sharing
// a geometry can be read at the same point.
func (f *Field) MatchTenthIndex(lat, lon float64) (int, int, bool) {
	wantLat, wantLon := RoundTenth(lat), RoundTenth(lon)
	for j := 0; j < f.NY; j++ {
		for i := 0; i < f.NX; i++ {
			plat, plon := f.Geometry.LatLon(i, j)
			if RoundTenth(plat) == wantLat && RoundTenth(NormalizeLon(plon)) == wantLon {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// NormalizeLon maps a longitude into [-180, 180).
func NormalizeLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
