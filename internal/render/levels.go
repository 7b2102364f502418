package render

import (
	"math"
	"strconv"
)

// Levels describes a filled-contour classification: the band edges plus
// whether values beyond either end get a color of their own.
type Levels struct {
	Edges     []float64
	ExtendMin bool
	ExtendMax bool
}

// Slots is the number of distinct colors the classification uses.
func (l Levels) Slots() int {
	if len(l.Edges) < 2 {
		return 0
	}
	n := len(l.Edges) - 1
	if l.ExtendMin {
		n++
	}
	if l.ExtendMax {
		n++
	}
	return n
}

// Classify returns the color slot of v. ok is false for NaN and for values
// outside the edges on a side that is not extended. The top edge belongs
// to the last band.
func (l Levels) Classify(v float64) (slot int, ok bool) {
	n := len(l.Edges)
	if n < 2 || math.IsNaN(v) {
		return 0, false
	}
	off := 0
	if l.ExtendMin {
		off = 1
	}
	switch {
	case v < l.Edges[0]:
		return 0, l.ExtendMin
	case v > l.Edges[n-1]:
		return n - 1 + off, l.ExtendMax
	case v == l.Edges[n-1]:
		return n - 2 + off, true
	}
	lo, hi := 0, n-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if v >= l.Edges[mid] {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo + off, true
}

var niceSteps = []float64{1, 2, 2.5, 5, 10}

// AutoLevels picks at most n+1 round-numbered, evenly spaced edges that
// cover [lo, hi].
func AutoLevels(lo, hi float64, n int) []float64 {
	if n < 1 {
		n = 1
	}
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return []float64{0, 1}
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		return []float64{lo - 0.5, hi + 0.5}
	}
	raw := (hi - lo) / float64(n)
	scale := math.Pow(10, math.Floor(math.Log10(raw)))
	var step float64
	for _, s := range niceSteps {
		step = s * scale
		first := math.Floor(lo/step) * step
		if first+float64(n)*step >= hi {
			break
		}
	}
	first := math.Floor(lo/step) * step
	var out []float64
	for k := 0; ; k++ {
		v := roundTo(first+float64(k)*step, step)
		out = append(out, v)
		if v >= hi {
			break
		}
	}
	return out
}

func roundTo(v, step float64) float64 {
	digits := math.Max(0, -math.Floor(math.Log10(step))+2)
	p := math.Pow(10, digits)
	return math.Round(v*p) / p
}

// FormatLevel renders an edge value for tick labels.
func FormatLevel(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e6)/1e6, 'f', -1, 64)
}
