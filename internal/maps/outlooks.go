package maps

import (
	"context"
	"fmt"

	"github.com/nickelblock/forecast-maps/internal/geo"
	"github.com/nickelblock/forecast-maps/internal/grib2"
	"github.com/nickelblock/forecast-maps/internal/render"
)

// Default object names written by the downloaders.
const (
	SPCFile   = "SPC_data.grb2"
	CPCFile   = "CPC_data.grb2"
	DailyFile = "DHLPCoR_data.grb2"
)

var (
	spcLevels = render.Levels{Edges: []float64{0, 1, 2, 3, 4, 5}, ExtendMin: true, ExtendMax: true}
	cpcLevels = render.Levels{Edges: []float64{33, 40, 50, 60, 70, 80, 90}}
)

// outlookCities skips the wide regions, where labels would pile up.
func outlookCities(region geo.Region) []geo.City {
	if region.Name == "tropical" || region.Name == "country" {
		return nil
	}
	return region.Cities
}

// SPCOutlook renders one categorical outlook map per distinct valid time,
// using the first message seen for that time.
func (g *Generator) SPCOutlook(ctx context.Context, region geo.Region, path string) ([]Product, error) {
	defer g.timed("spc")()
	if path == "" {
		path = SPCFile
	}
	msgs, err := g.readGRIB(ctx, path)
	if err != nil {
		return nil, err
	}

	var out []Product
	for _, vt := range grib2.ValidTimes(msgs) {
		sel, err := grib2.Select(msgs, grib2.Filter{ValidTime: vt})
		if err != nil {
			return out, err
		}
		field, err := sel[0].Field()
		if err != nil {
			return out, fmt.Errorf("unpack %s: %w", sel[0], err)
		}

		m := render.New(region, region.Extent, render.Options{Width: render.SmallWidth, Height: render.SmallHeight, Colorbar: render.Vertical})
		m.DrawBasemap(g.cfg.Basemap)
		m.FillContour(field, spcLevels, render.Greens)
		if err := m.Cities(outlookCities(region)); err != nil {
			return out, err
		}
		if err := m.DrawColorbar(render.Colorbar{Levels: spcLevels, Cmap: render.Greens}); err != nil {
			return out, err
		}
		if err := g.finish(m, fmt.Sprintf("SPC Categorical Outlook for %s UTC", timestamp(vt)), "SPC Probabilistic to Categorical Outlook model"); err != nil {
			return out, err
		}
		p, err := g.encode("spc", fmt.Sprintf("SPC_%s_Map.png", fileTimestamp(vt)), m)
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}

// CPCGroup is a set of CPC probability messages drawn on one map.
type CPCGroup struct {
	Name     string
	Messages []*grib2.Message
}

// GroupCPC splits messages into Temperatures and Precipitations, in that order.
func GroupCPC(msgs []*grib2.Message) []CPCGroup {
	temps := CPCGroup{Name: "Temperatures"}
	precip := CPCGroup{Name: "Precipitations"}
	for _, m := range msgs {
		if m.Name() == "Temperature" {
			temps.Messages = append(temps.Messages, m)
		} else {
			precip.Messages = append(precip.Messages, m)
		}
	}
	return []CPCGroup{temps, precip}
}

// CPCOutlook renders one probability map per group. Below-normal messages
// are shaded in blue; above-normal ones in red for temperature and green
// for precipitation.
func (g *Generator) CPCOutlook(ctx context.Context, region geo.Region, path string) ([]Product, error) {
	defer g.timed("cpc")()
	if path == "" {
		path = CPCFile
	}
	msgs, err := g.readGRIB(ctx, path)
	if err != nil {
		return nil, err
	}

	var out []Product
	for _, group := range GroupCPC(msgs) {
		if len(group.Messages) == 0 {
			continue
		}
		p, err := g.cpcMap(region, group)
		if err != nil {
			return out, fmt.Errorf("cpc %s: %w", group.Name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (g *Generator) cpcMap(region geo.Region, group CPCGroup) (Product, error) {
	above := render.Reds
	if group.Name == "Precipitations" {
		above = render.Greens
	}
	events := map[grib2.Event]render.Colorbar{
		grib2.EventBelow: {Levels: cpcLevels, Cmap: render.Blues, Label: "Probability of Below (%)"},
		grib2.EventAbove: {Levels: cpcLevels, Cmap: above, Label: "Probability of Above (%)"},
	}
	var present []grib2.Event
	seen := map[grib2.Event]bool{}
	for _, msg := range group.Messages {
		if _, ok := events[msg.Event()]; ok && !seen[msg.Event()] {
			seen[msg.Event()] = true
			present = append(present, msg.Event())
		}
	}

	m := render.New(region, region.Extent, render.Options{
		Width: render.SmallWidth, Height: render.SmallHeight,
		Colorbar: render.Horizontal, Colorbars: len(present),
	})
	m.DrawBasemap(g.cfg.Basemap)
	for _, msg := range group.Messages {
		cb, ok := events[msg.Event()]
		if !ok {
			continue
		}
		field, err := msg.Field()
		if err != nil {
			return Product{}, fmt.Errorf("unpack %s: %w", msg, err)
		}
		m.FillContour(field, cb.Levels, cb.Cmap)
	}
	if err := m.Cities(outlookCities(region)); err != nil {
		return Product{}, err
	}
	for _, ev := range present {
		if err := m.DrawColorbar(events[ev]); err != nil {
			return Product{}, err
		}
	}
	valid := group.Messages[len(group.Messages)-1].ValidTime()
	if err := g.finish(m, fmt.Sprintf("%s Probability for %s UTC", group.Name, timestamp(valid)), "CPC Probability Outlook model"); err != nil {
		return Product{}, err
	}
	return g.encode("cpc", fmt.Sprintf("CPC_%s_%s_Map.png", group.Name, fileTimestamp(valid)), m)
}
