package maps

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/geo"
	"github.com/nickelblock/forecast-maps/internal/grib2"
	"github.com/nickelblock/forecast-maps/internal/grid"
	"github.com/nickelblock/forecast-maps/internal/render"
)

var (
	dailyNameOffset = geo.Offset{Lat: 0.07, Lon: -0.60}
	dailyTempOffset = geo.Offset{Lat: -0.24, Lon: -0.4}
	dailyPOPOffset  = geo.Offset{Lat: -0.47, Lon: -0.2}
)

const dailyTitleFormat = "Daily High / Low / Percent Chance of Rain taken %s UTC"

// DailyHighLowPOP renders one map per forecast day with each city's low,
// high and chance of rain. Days pair the n-th max, min and POP messages
// and stop at the shortest list.
func (g *Generator) DailyHighLowPOP(ctx context.Context, region geo.Region, path string) ([]Product, error) {
	defer g.timed("daily")()
	if path == "" {
		path = DailyFile
	}
	msgs, err := g.readGRIB(ctx, path)
	if err != nil {
		return nil, err
	}
	maxT, err := grib2.Select(msgs, grib2.Filter{Name: "Maximum temperature"})
	if err != nil {
		return nil, fmt.Errorf("maximum temperature: %w", err)
	}
	minT, err := grib2.Select(msgs, grib2.Filter{Name: "Minimum temperature"})
	if err != nil {
		return nil, fmt.Errorf("minimum temperature: %w", err)
	}
	pop, err := grib2.Select(msgs, grib2.Filter{Name: grib2.PoPName})
	if err != nil {
		return nil, fmt.Errorf("probability of precipitation: %w", err)
	}

	days := min(len(maxT), len(minT), len(pop))
	out := make([]Product, 0, days)
	for d := 0; d < days; d++ {
		p, err := g.dailyMap(region, d+1, maxT[d], minT[d], pop[d])
		if err != nil {
			return out, fmt.Errorf("day %d: %w", d+1, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (g *Generator) dailyMap(region geo.Region, day int, maxMsg, minMsg, popMsg *grib2.Message) (Product, error) {
	hi, err := maxMsg.Field()
	if err != nil {
		return Product{}, fmt.Errorf("unpack max: %w", err)
	}
	lo, err := minMsg.Field()
	if err != nil {
		return Product{}, fmt.Errorf("unpack min: %w", err)
	}
	pop, err := popMsg.Field()
	if err != nil {
		return Product{}, fmt.Errorf("unpack pop: %w", err)
	}

	m := render.New(region, region.Extent, render.Options{Width: render.SmallWidth, Height: render.SmallHeight})
	m.DrawBasemap(g.cfg.Basemap)
	m.DrawBoundaries(g.cfg.Basemap)
	for _, c := range region.Cities {
		if err := g.dailyCity(m, c, hi, lo, pop); err != nil {
			return Product{}, err
		}
	}
	m.DrawFrame()
	title := fmt.Sprintf(dailyTitleFormat, hi.ValidTime.UTC().Format("2006-01-02"))
	if err := m.Title(title); err != nil {
		return Product{}, err
	}
	if err := m.Credits("NWS/NDFD CONUS model"); err != nil {
		return Product{}, err
	}
	return g.encode("daily", fmt.Sprintf("Day_%d_%s_DailyHighLowPerChanceRain.png", day, region.Name), m)
}

// dailyCity labels a city from the first grid point matching it at a
// tenth of a degree. The min and POP fields share the max field's grid.
func (g *Generator) dailyCity(m *render.Map, c geo.City, hi, lo, pop *grid.Field) error {
	i, j, ok := hi.MatchTenthIndex(c.Lat, c.Lon)
	if !ok {
		g.logger.Warn("no grid point for city", zap.String("city", c.Name))
		return nil
	}
	m.Marker(c.Lat, c.Lon)
	if err := m.Label(c.Lat, c.Lon, dailyNameOffset, c.Name, true); err != nil {
		return err
	}
	temps := fmt.Sprintf("%d°F / %d°F", roundF(lo.At(i, j)), roundF(hi.At(i, j)))
	if err := m.Label(c.Lat, c.Lon, dailyTempOffset, temps, false); err != nil {
		return err
	}
	return m.Label(c.Lat, c.Lon, dailyPOPOffset, fmt.Sprintf("%d%%", int(math.RoundToEven(pop.At(i, j)))), false)
}

func roundF(kelvin float64) int {
	return int(math.RoundToEven(grid.KelvinToFahrenheit(kelvin)))
}
