package geo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogue(t *testing.T) {
	t.Parallel()

	cat, err := Default()
	require.NoError(t, err)
	assert.Equal(t, []string{"country", "local", "regional", "tropical", "verywide"}, cat.Names())

	tests := []struct {
		region string
		cities int
		extent Extent
	}{
		{"verywide", 24, Extent{North: 37, South: 28, East: -81, West: -97}},
		{"regional", 13, Extent{North: 35.5, South: 28.5, East: -84.5, West: -93.5}},
		{"local", 9, Extent{North: 33.5, South: 29.5, East: -86.5, West: -91.5}},
		{"tropical", 0, Extent{North: 40.5, South: 8.5, East: -15.5, West: -97.5}},
	}
	for _, tc := range tests {
		t.Run(tc.region, func(t *testing.T) {
			r, err := cat.Region(tc.region)
			require.NoError(t, err)
			assert.Len(t, r.Cities, tc.cities)
			assert.Equal(t, tc.extent, r.Extent)
		})
	}
}

func TestRegionDetails(t *testing.T) {
	t.Parallel()

	cat, err := Default()
	require.NoError(t, err)

	local, err := cat.Region("local")
	require.NoError(t, err)
	first := local.Cities[0]
	assert.Equal(t, "Hattiesburg", first.Name)
	assert.InDelta(t, 31.3271, first.Lat, 1e-9)
	assert.InDelta(t, -89.2903, first.Lon, 1e-9)
	assert.Nil(t, first.Temp)
	assert.Equal(t, Offset{Lat: 0.09, Lon: -0.5}, local.NameOffset)
	assert.True(t, local.HasBoundary(BoundaryCounties))
	assert.Equal(t, local.Extent, local.QueryExtent())

	tropical, err := cat.Region("tropical")
	require.NoError(t, err)
	assert.InDelta(t, 50.5, tropical.QueryExtent().North, 1e-9)
	assert.InDelta(t, 30.5, tropical.BlankExtent().North, 1e-9)
	assert.False(t, tropical.HasBoundary(BoundaryCounties))
}

func TestUnknownRegion(t *testing.T) {
	t.Parallel()

	cat, err := Default()
	require.NoError(t, err)
	_, err = cat.Region("antarctica")
	require.ErrorIs(t, err, ErrUnknownRegion)
}

func TestCityWithTemp(t *testing.T) {
	t.Parallel()

	c := City{Name: "Mobile", Lat: 30.6954, Lon: -88.0399}
	warm := c.WithTemp(81)
	require.NotNil(t, warm.Temp)
	assert.InDelta(t, 81, *warm.Temp, 1e-9)
	assert.Nil(t, c.Temp)
	assert.True(t, Extent{North: 31, South: 30, East: -88, West: -89}.Contains(c.Lat, c.Lon))
}

func TestLoadOverride(t *testing.T) {
	t.Parallel()

	doc := `
cities:
  a: {name: Alpha, lat: 1, lon: 2}
regions:
  tiny:
    extent: {north: 2, south: 0, east: 3, west: 1}
    cities: [a]
    name_offset: {lat: 0.2, lon: -0.1}
`
	path := filepath.Join(t.TempDir(), "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cat, err := Load(path)
	require.NoError(t, err)
	r, err := cat.Region("tiny")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", r.Cities[0].Name)
	assert.Equal(t, Offset{Lat: 0.2, Lon: -0.1}, r.NameOffset)
	assert.Equal(t, defaultValueOffset, r.ValueOffset)
}

func TestParseRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("regions: {}"))
	assert.Error(t, err)

	_, err = Parse([]byte(`
regions:
  bad:
    extent: {north: 1, south: 2, east: 3, west: 1}
`))
	assert.Error(t, err)

	_, err = Parse([]byte(`
regions:
  r:
    extent: {north: 2, south: 1, east: 3, west: 1}
    cities: [ghost]
`))
	assert.Error(t, err)
}
