package netcdf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nickelblock/forecast-maps/internal/grid"
)

// ErrNotGridded is returned when a variable's trailing dimensions are not
// backed by latitude and longitude coordinate variables.
var ErrNotGridded = errors.New("netcdf: variable is not on a lat/lon grid")

// Fields splits a variable shaped (..., lat, lon) into one field per
// leading index. When the first dimension is a time coordinate each field
// carries its valid time.
func (f *File) Fields(name string) ([]*grid.Field, error) {
	v, err := f.Var(name)
	if err != nil {
		return nil, err
	}
	nd := len(v.Dims)
	if nd < 2 {
		return nil, fmt.Errorf("%w: %s has %d dimensions", ErrNotGridded, name, nd)
	}
	latDim, lonDim := v.Dims[nd-2], v.Dims[nd-1]
	lats, err := f.Float64s(latDim)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotGridded, name, err)
	}
	lons, err := f.Float64s(lonDim)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotGridded, name, err)
	}
	values, err := f.values(v)
	if err != nil {
		return nil, err
	}

	var times []time.Time
	if nd > 2 {
		times, _ = f.Times(v.Dims[0])
	}

	geom := &grid.LatLonGrid{Lats: lats, Lons: lons}
	plane := len(lats) * len(lons)
	if plane == 0 {
		return nil, fmt.Errorf("%w: %s has an empty plane", ErrNotGridded, name)
	}
	longName := name
	if s, ok := v.AttrString("long_name"); ok {
		longName = s
	}
	units, _ := v.AttrString("units")

	planes := len(values) / plane
	leading := 1
	if nd > 2 {
		leading = v.Shape[0]
	}
	out := make([]*grid.Field, 0, planes)
	for p := 0; p < planes; p++ {
		field, err := grid.NewField(geom, values[p*plane:(p+1)*plane])
		if err != nil {
			return nil, err
		}
		field.Name = longName
		field.ShortName = name
		field.Units = units
		// Planes are ordered with the first dimension slowest.
		if ti := p * leading / planes; ti < len(times) {
			field.ValidTime = times[ti]
		}
		out = append(out, field)
	}
	return out, nil
}

// Field returns the first plane of the variable.
func (f *File) Field(name string) (*grid.Field, error) {
	fields, err := f.Fields(name)
	if err != nil {
		return nil, err
	}
	return fields[0], nil
}

// Times decodes a CF time coordinate with units like
// "Hour since 2024-05-01T12:00:00Z".
func (f *File) Times(name string) ([]time.Time, error) {
	v, err := f.Var(name)
	if err != nil {
		return nil, err
	}
	units, ok := v.AttrString("units")
	if !ok {
		return nil, fmt.Errorf("netcdf: %s has no units", name)
	}
	step, origin, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	raw, err := f.Float64s(name)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(raw))
	for i, x := range raw {
		out[i] = origin.Add(time.Duration(x * float64(step))).UTC()
	}
	return out, nil
}

func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	parts := strings.SplitN(units, " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("netcdf: time units %q", units)
	}
	var step time.Duration
	switch strings.ToLower(strings.TrimSuffix(strings.TrimSpace(parts[0]), "s")) {
	case "second", "sec":
		step = time.Second
	case "minute", "min":
		step = time.Minute
	case "hour", "hr":
		step = time.Hour
	case "day":
		step = 24 * time.Hour
	default:
		return 0, time.Time{}, fmt.Errorf("netcdf: time step %q", parts[0])
	}
	ref := strings.TrimSpace(parts[1])
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02 15:04:05Z", "2006-01-02"} {
		if t, err := time.Parse(layout, ref); err == nil {
			return step, t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return step, time.Unix(secs, 0).UTC(), nil
	}
	return 0, time.Time{}, fmt.Errorf("netcdf: time origin %q", ref)
}
