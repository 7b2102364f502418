package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gfsPatch mimics an NCSS subset of the 0.25 degree GFS grid: latitudes
// descend from the north edge and longitudes run on a 0..360 axis.
func gfsPatch(t *testing.T) *Field {
	t.Helper()
	geom := NewLatLonGrid(32, 270, -0.25, 0.25, 5, 5) // 32..31, 270..271 (-90..-89)
	values := make([]float64, 25)
	for k := range values {
		values[k] = float64(k)
	}
	f, err := NewField(geom, values)
	require.NoError(t, err)
	return f
}

func TestNewFieldShape(t *testing.T) {
	t.Parallel()

	_, err := NewField(NewLatLonGrid(0, 0, 1, 1, 2, 2), []float64{1, 2, 3})
	require.ErrorIs(t, err, ErrShape)
}

func TestRoundQuarter(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 31.25, RoundQuarter(31.3271), 1e-12)
	assert.InDelta(t, -89.25, RoundQuarter(-89.2903), 1e-12)
	assert.InDelta(t, 32.25, RoundQuarter(32.2988), 1e-12)
	assert.InDelta(t, 30.7, RoundTenth(30.6954), 1e-12)
}

// TestMatchQuarterDegree finds Hattiesburg on a 0..360 longitude axis.
func TestMatchQuarterDegree(t *testing.T) {
	t.Parallel()

	f := gfsPatch(t)
	// Hattiesburg rounds to 31.25 / -89.25 -> row 3, column 3 (270.75).
	v, ok := f.MatchQuarterDegree(31.3271, -89.2903)
	require.True(t, ok)
	assert.InDelta(t, 18, v, 1e-12)

	_, ok = f.MatchQuarterDegree(35.1495, -90.0490)
	assert.False(t, ok)
}

func TestMatchTenthReturnsFirstMatch(t *testing.T) {
	t.Parallel()

	geom := NewLatLonGrid(30.66, -88.06, 0.02, 0.02, 3, 3)
	f, err := NewField(geom, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9})
	require.NoError(t, err)

	// Mobile (30.6954, -88.0399) rounds to 30.7 / -88.0. Every row rounds to
	// 30.7 and columns 1 and 2 round to -88.0, so row 0 column 1 wins.
	v, ok := f.MatchTenth(30.6954, -88.0399)
	require.True(t, ok)
	assert.InDelta(t, 2, v, 1e-12)

	i, j, ok := f.MatchTenthIndex(30.6954, -88.0399)
	require.True(t, ok)
	assert.Equal(t, [2]int{1, 0}, [2]int{i, j})

	_, _, ok = f.MatchTenthIndex(45, -100)
	assert.False(t, ok)
}

func TestNearestAndSample(t *testing.T) {
	t.Parallel()

	f := gfsPatch(t)
	v, ok := f.Nearest(31.76, -89.74)
	require.True(t, ok)
	assert.InDelta(t, 6, v, 1e-12) // row 1 (31.75), column 1 (270.25)

	// Halfway between columns 1 and 2 on row 1.
	assert.InDelta(t, 6.5, f.Sample(31.75, -89.625), 1e-9)
	// Halfway between rows 1 and 2 on column 1.
	assert.InDelta(t, 8.5, f.Sample(31.625, -89.75), 1e-9)

	assert.True(t, math.IsNaN(f.Sample(40, -89.5)))
	_, ok = f.Nearest(40, -89.5)
	assert.False(t, ok)
}

func TestSampleFallsBackOnMissingCorner(t *testing.T) {
	t.Parallel()

	f := gfsPatch(t)
	f.Values[7] = math.NaN() // row 1, column 2
	got := f.Sample(31.75, -89.70)
	assert.InDelta(t, 6, got, 1e-9)
}

func TestApplyAndMinMax(t *testing.T) {
	t.Parallel()

	f, err := NewField(NewLatLonGrid(0, 0, 1, 1, 3, 1), []float64{273.15, math.NaN(), 373.15})
	require.NoError(t, err)
	f.Apply(KelvinToFahrenheit)
	assert.InDelta(t, 32, f.Values[0], 1e-9)
	assert.True(t, math.IsNaN(f.Values[1]))
	lo, hi, ok := f.MinMax()
	require.True(t, ok)
	assert.InDelta(t, 32, lo, 1e-9)
	assert.InDelta(t, 212, hi, 1e-9)

	empty, err := NewField(NewLatLonGrid(0, 0, 1, 1, 1, 1), []float64{math.NaN()})
	require.NoError(t, err)
	_, _, ok = empty.MinMax()
	assert.False(t, ok)
}

func TestUnits(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 32, KelvinToFahrenheit(273.15), 1e-9)
	assert.InDelta(t, 3401.57, RateToInches(1), 0.01)
	assert.InDelta(t, 141.73, RateToHourlyInches(1), 0.01)
}

func TestNormalizeLon(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, -90, NormalizeLon(270), 1e-12)
	assert.InDelta(t, -180, NormalizeLon(180), 1e-12)
	assert.InDelta(t, 10, NormalizeLon(370), 1e-12)
	assert.InDelta(t, -89.25, NormalizeLon(-89.25), 1e-12)
}

// TestLambertRoundTrip uses an NDFD-like CONUS 2.5 km grid.
func TestLambertRoundTrip(t *testing.T) {
	t.Parallel()

	g := &LambertConformal{
		NX: 2145, NY: 1377,
		Lat1: 20.191999, Lon1: 238.445999,
		LoV: 265, Latin1: 25, Latin2: 25,
		Dx: 2539.703, Dy: 2539.703,
		Radius:    6371200,
		JPositive: true,
	}

	lat, lon := g.LatLon(0, 0)
	assert.InDelta(t, 20.191999, lat, 1e-6)
	assert.InDelta(t, NormalizeLon(238.445999), lon, 1e-6)

	fi, fj, ok := g.Locate(31.3271, -89.2903)
	require.True(t, ok)
	lat, lon = g.LatLon(int(math.Round(fi)), int(math.Round(fj)))
	assert.InDelta(t, 31.3271, lat, 0.03)
	assert.InDelta(t, -89.2903, lon, 0.03)

	_, _, ok = g.Locate(-40, 20)
	assert.False(t, ok)
}
