// Package geo holds the map regions and the cities annotated on them.
package geo

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrUnknownRegion is returned when a region name is not in the catalogue.
var ErrUnknownRegion = errors.New("unknown region")

//go:embed regions.yaml
var defaultCatalogue []byte

// City is an annotation point drawn on a map.
type City struct {
	Name string   `yaml:"name"`
	Lat  float64  `yaml:"lat"`
	Lon  float64  `yaml:"lon"`
	Temp *float64 `yaml:"temp,omitempty"`
}

// WithTemp returns a copy of c carrying temperature t.
func (c City) WithTemp(t float64) City {
	c.Temp = &t
	return c
}

// Extent is a lat/lon bounding box in degrees.
type Extent struct {
	North float64 `yaml:"north"`
	South float64 `yaml:"south"`
	East  float64 `yaml:"east"`
	West  float64 `yaml:"west"`
}

// Contains reports whether the point lies inside the box, edges included.
func (e Extent) Contains(lat, lon float64) bool {
	return lat <= e.North && lat >= e.South && lon <= e.East && lon >= e.West
}

// Offset shifts a label relative to its city, in degrees.
type Offset struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

// Boundary layer names understood by the renderer.
const (
	BoundaryStates    = "states"
	BoundaryCounties  = "counties"
	BoundaryCountries = "countries"
)

// Region is a named map type: an extent plus the cities drawn on it.
type Region struct {
	Name          string
	Extent        Extent
	Cities        []City
	Boundaries    []string
	NameOffset    Offset
	ValueOffset   Offset
	QueryPadNorth float64
	BlankNorth    float64
}

// Contains reports whether the point lies inside the region extent.
func (r Region) Contains(lat, lon float64) bool {
	return r.Extent.Contains(lat, lon)
}

// QueryExtent is the box requested from a subset service.
func (r Region) QueryExtent() Extent {
	e := r.Extent
	e.North += r.QueryPadNorth
	return e
}

// BlankExtent is the extent used for blank basemaps.
func (r Region) BlankExtent() Extent {
	e := r.Extent
	if r.BlankNorth != 0 {
		e.North = r.BlankNorth
	}
	return e
}

// HasBoundary reports whether the region draws the named layer.
func (r Region) HasBoundary(layer string) bool {
	for _, b := range r.Boundaries {
		if b == layer {
			return true
		}
	}
	return false
}

// Catalogue maps region names to regions.
type Catalogue struct {
	regions map[string]Region
}

type catalogueFile struct {
	Cities  map[string]City         `yaml:"cities"`
	Regions map[string]regionRecord `yaml:"regions"`
}

type regionRecord struct {
	Extent        Extent   `yaml:"extent"`
	Cities        []string `yaml:"cities"`
	Boundaries    []string `yaml:"boundaries"`
	NameOffset    *Offset  `yaml:"name_offset"`
	ValueOffset   *Offset  `yaml:"value_offset"`
	QueryPadNorth float64  `yaml:"query_pad_north"`
	BlankNorth    float64  `yaml:"blank_north"`
}

var (
	defaultNameOffset  = Offset{Lat: 0.09, Lon: -0.5}
	defaultValueOffset = Offset{Lat: -0.24, Lon: -0.4}
)

// Default returns the built-in catalogue.
func Default() (*Catalogue, error) {
	return Parse(defaultCatalogue)
}

// Load reads a catalogue from a YAML file. An empty path yields the default.
func Load(path string) (*Catalogue, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied catalogue path.
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalogue document.
func Parse(data []byte) (*Catalogue, error) {
	var doc catalogueFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode regions: %w", err)
	}
	if len(doc.Regions) == 0 {
		return nil, errors.New("regions catalogue is empty")
	}
	cat := &Catalogue{regions: make(map[string]Region, len(doc.Regions))}
	for name, rec := range doc.Regions {
		if rec.Extent.North <= rec.Extent.South || rec.Extent.East <= rec.Extent.West {
			return nil, fmt.Errorf("region %s: invalid extent %+v", name, rec.Extent)
		}
		region := Region{
			Name:          name,
			Extent:        rec.Extent,
			Boundaries:    rec.Boundaries,
			NameOffset:    defaultNameOffset,
			ValueOffset:   defaultValueOffset,
			QueryPadNorth: rec.QueryPadNorth,
			BlankNorth:    rec.BlankNorth,
		}
		if rec.NameOffset != nil {
			region.NameOffset = *rec.NameOffset
		}
		if rec.ValueOffset != nil {
			region.ValueOffset = *rec.ValueOffset
		}
		for _, key := range rec.Cities {
			city, ok := doc.Cities[key]
			if !ok {
				return nil, fmt.Errorf("region %s: unknown city %q", name, key)
			}
			region.Cities = append(region.Cities, city)
		}
		cat.regions[name] = region
	}
	return cat, nil
}

// Region looks up a region by name.
func (c *Catalogue) Region(name string) (Region, error) {
	r, ok := c.regions[name]
	if !ok {
		return Region{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownRegion, name, c.Names())
	}
	return r, nil
}

// Names lists region names in sorted order.
func (c *Catalogue) Names() []string {
	names := make([]string, 0, len(c.regions))
	for name := range c.regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
