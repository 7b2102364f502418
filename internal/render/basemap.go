package render

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/fogleman/gg"
	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/geo"
	"github.com/nickelblock/forecast-maps/internal/logging"
)

// Layer is a set of boundary rings or lines in lon/lat order.
type Layer struct {
	Name  string
	Lines [][][2]float64
	// Polygons marks layers whose lines are closed rings that may be filled.
	Polygons bool
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Geometry *geometry `json:"geometry"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// LoadLayer reads a GeoJSON FeatureCollection of polygons or lines.
func LoadLayer(name, path string) (*Layer, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-configured boundary file.
	if err != nil {
		return nil, fmt.Errorf("read %s layer: %w", name, err)
	}
	return ParseLayer(name, data)
}

// ParseLayer decodes GeoJSON boundary data.
func ParseLayer(name string, data []byte) (*Layer, error) {
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decode %s layer: %w", name, err)
	}
	layer := &Layer{Name: name, Polygons: true}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if err := layer.add(f.Geometry); err != nil {
			return nil, fmt.Errorf("%s layer: %w", name, err)
		}
	}
	return layer, nil
}

func (l *Layer) add(g *geometry) error {
	switch g.Type {
	case "Polygon":
		var rings [][][2]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return fmt.Errorf("decode polygon: %w", err)
		}
		l.Lines = append(l.Lines, rings...)
	case "MultiPolygon":
		var polys [][][][2]float64
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return fmt.Errorf("decode multipolygon: %w", err)
		}
		for _, rings := range polys {
			l.Lines = append(l.Lines, rings...)
		}
	case "LineString":
		var line [][2]float64
		if err := json.Unmarshal(g.Coordinates, &line); err != nil {
			return fmt.Errorf("decode linestring: %w", err)
		}
		l.Lines = append(l.Lines, line)
		l.Polygons = false
	case "MultiLineString":
		var lines [][][2]float64
		if err := json.Unmarshal(g.Coordinates, &lines); err != nil {
			return fmt.Errorf("decode multilinestring: %w", err)
		}
		l.Lines = append(l.Lines, lines...)
		l.Polygons = false
	default:
		return fmt.Errorf("unsupported geometry %q", g.Type)
	}
	return nil
}

// Basemap holds the optional boundary layers and the logo stamped on
// every figure.
type Basemap struct {
	States    *Layer
	Counties  *Layer
	Countries *Layer
	Logo      image.Image
}

// BasemapPaths are the GeoJSON files for each layer and the logo image.
// Empty paths are skipped.
type BasemapPaths struct {
	States    string
	Counties  string
	Countries string
	Logo      string
}

// LoadBasemap reads whichever layers are configured. Layers whose file
// does not exist are skipped with a debug log.
func LoadBasemap(paths BasemapPaths, logger *zap.Logger) (*Basemap, error) {
	logger = logging.OrNop(logger)
	b := &Basemap{}
	for _, item := range []struct {
		name string
		path string
		dst  **Layer
	}{
		{geo.BoundaryStates, paths.States, &b.States},
		{geo.BoundaryCounties, paths.Counties, &b.Counties},
		{geo.BoundaryCountries, paths.Countries, &b.Countries},
	} {
		if item.path == "" {
			logger.Debug("boundary layer not configured", zap.String("layer", item.name))
			continue
		}
		if _, err := os.Stat(item.path); err != nil {
			logger.Debug("boundary layer missing", zap.String("layer", item.name), zap.String("path", item.path))
			continue
		}
		layer, err := LoadLayer(item.name, item.path)
		if err != nil {
			return nil, err
		}
		*item.dst = layer
	}
	if paths.Logo != "" {
		logo, err := gg.LoadImage(paths.Logo)
		if err != nil {
			return nil, fmt.Errorf("load logo %s: %w", paths.Logo, err)
		}
		b.Logo = logo
	}
	return b, nil
}

var (
	oceanColor = color.RGBA{R: 201, G: 226, B: 246, A: 255}
	landColor  = color.RGBA{R: 244, G: 241, B: 232, A: 255}
)

type strokedLayer struct {
	layer *Layer
	width float64
}

// layersFor returns the layers a region draws, outermost first.
func (b *Basemap) layersFor(region geo.Region) []strokedLayer {
	if b == nil {
		return nil
	}
	var out []strokedLayer
	if b.Countries != nil && region.HasBoundary(geo.BoundaryCountries) {
		out = append(out, strokedLayer{b.Countries, 0.5})
	}
	if b.States != nil && region.HasBoundary(geo.BoundaryStates) {
		out = append(out, strokedLayer{b.States, 0.5})
	}
	if b.Counties != nil && region.HasBoundary(geo.BoundaryCounties) {
		out = append(out, strokedLayer{b.Counties, 0.3})
	}
	return out
}
