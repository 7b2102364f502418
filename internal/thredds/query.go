package thredds

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// NCSSQuery describes a point-in-time lat/lon box extract.
type NCSSQuery struct {
	Variables []string
	Time      time.Time
	North     float64
	South     float64
	East      float64
	West      float64
	// Accept defaults to netcdf3.
	Accept string
}

// Encode renders the query string in NCSS parameter order.
func (q NCSSQuery) Encode() string {
	var parts []string
	for _, v := range q.Variables {
		parts = append(parts, "var="+url.QueryEscape(v))
	}
	if !q.Time.IsZero() {
		parts = append(parts, "time="+url.QueryEscape(q.Time.UTC().Format(time.RFC3339)))
	}
	parts = append(parts,
		"north="+formatCoord(q.North),
		"south="+formatCoord(q.South),
		"east="+formatCoord(q.East),
		"west="+formatCoord(q.West),
	)
	accept := q.Accept
	if accept == "" {
		accept = "netcdf3"
	}
	parts = append(parts, "accept="+url.QueryEscape(accept))
	return strings.Join(parts, "&")
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
