package maps

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/geo"
	"github.com/nickelblock/forecast-maps/internal/grid"
	"github.com/nickelblock/forecast-maps/internal/netcdf"
	"github.com/nickelblock/forecast-maps/internal/render"
	"github.com/nickelblock/forecast-maps/internal/thredds"
)

// NCSS variable names on the GFS quarter-degree dataset.
const (
	TemperatureVar   = "Temperature_surface"
	PrecipitationVar = "Precipitation_rate_surface"
	gfsModel         = "GFS 12z model"
)

var precipLevels = render.Levels{Edges: render.PrecipLevels, ExtendMin: true, ExtendMax: true}

func (g *Generator) gfsField(ctx context.Context, region geo.Region, variable string, valid time.Time) (*grid.Field, error) {
	ds, err := g.ncss.ResolveNCSS(ctx, g.cfg.GFSCatalog)
	if err != nil {
		return nil, fmt.Errorf("resolve gfs dataset: %w", err)
	}
	box := region.QueryExtent()
	body, err := g.ncss.Subset(ctx, ds, thredds.NCSSQuery{
		Variables: []string{variable},
		Time:      valid,
		North:     box.North,
		South:     box.South,
		East:      box.East,
		West:      box.West,
	})
	if err != nil {
		return nil, err
	}
	file, err := netcdf.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s subset: %w", variable, err)
	}
	defer file.Close()
	field, err := file.Field(variable)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", variable, err)
	}
	return field, nil
}

// Temperature renders a surface temperature map for each forecast hour
// offset from now.
func (g *Generator) Temperature(ctx context.Context, region geo.Region, hours []int) ([]Product, error) {
	defer g.timed("temperature")()
	now := g.clock.Now().UTC()
	out := make([]Product, 0, len(hours))
	for _, h := range hours {
		valid := now.Add(time.Duration(h) * time.Hour)
		field, err := g.gfsField(ctx, region, TemperatureVar, valid)
		if err != nil {
			return out, fmt.Errorf("temperature hour %d: %w", h, err)
		}
		field.Apply(grid.KelvinToFahrenheit)

		lo, hi, ok := field.MinMax()
		if !ok {
			return out, fmt.Errorf("temperature hour %d: field has no data", h)
		}
		levels := render.Levels{Edges: render.AutoLevels(lo, hi, 40), ExtendMin: true, ExtendMax: true}

		m := render.New(region, region.Extent, render.Options{Width: render.GFSWidth, Height: render.GFSHeight, Colorbar: render.Vertical})
		m.DrawBasemap(g.cfg.Basemap)
		m.FillContour(field, levels, render.Coolwarm)
		if err := m.Cities(g.cityTemps(region, field)); err != nil {
			return out, err
		}
		if err := m.DrawColorbar(render.Colorbar{Levels: levels, Cmap: render.Coolwarm, Label: "Temperature (°F)"}); err != nil {
			return out, err
		}
		if err := g.finish(m, fmt.Sprintf("Temperature forecast (°F) for %s UTC", timestamp(valid)), gfsModel); err != nil {
			return out, err
		}
		p, err := g.encode("temperature", fmt.Sprintf("%s_Temperature_Hour_%d.png", region.Name, h), m)
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}

// cityTemps attaches the value of the quarter-degree grid point under each
// city. Cities without a matching point are drawn without a value.
func (g *Generator) cityTemps(region geo.Region, field *grid.Field) []geo.City {
	cities := make([]geo.City, 0, len(region.Cities))
	for _, c := range region.Cities {
		v, ok := field.MatchQuarterDegree(c.Lat, c.Lon)
		if !ok {
			g.logger.Warn("no grid point for city", zap.String("city", c.Name), zap.String("region", region.Name))
			cities = append(cities, c)
			continue
		}
		cities = append(cities, c.WithTemp(v))
	}
	return cities
}

// Precipitation renders a precipitation rate map for each forecast hour,
// in inches per day or, when hourly is set, inches per hour.
func (g *Generator) Precipitation(ctx context.Context, region geo.Region, hours []int, hourly bool) ([]Product, error) {
	defer g.timed("precipitation")()
	convert := grid.RateToInches
	if hourly {
		convert = grid.RateToHourlyInches
	}

	now := g.clock.Now().UTC()
	out := make([]Product, 0, len(hours))
	for _, h := range hours {
		valid := now.Add(time.Duration(h) * time.Hour)
		field, err := g.gfsField(ctx, region, PrecipitationVar, valid)
		if err != nil {
			return out, fmt.Errorf("precipitation hour %d: %w", h, err)
		}
		field.Apply(convert)

		m := render.New(region, region.Extent, render.Options{Width: render.GFSWidth, Height: render.GFSHeight, Colorbar: render.Vertical})
		m.DrawBasemap(g.cfg.Basemap)
		m.FillContour(field, precipLevels, render.Precip)
		if err := m.Cities(region.Cities); err != nil {
			return out, err
		}
		if err := m.DrawColorbar(render.Colorbar{Levels: precipLevels, Cmap: render.Precip, Label: "Precipitation Rate (inches)"}); err != nil {
			return out, err
		}
		if err := g.finish(m, fmt.Sprintf("Precipitation Rate Forecast (inches) for %s UTC", timestamp(valid)), gfsModel); err != nil {
			return out, err
		}
		p, err := g.encode("precipitation", fmt.Sprintf("%s_Precipitation_Hour_%d.png", region.Name, h), m)
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}
