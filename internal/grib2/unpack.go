package grib2

import (
	"fmt"
	"math"
)

// unpack decodes section 7 into one value per grid point in row order.
func unpack(m *Message) ([]float64, error) {
	d := m.Data
	var (
		packed []float64
		err    error
	)
	switch d.Template {
	case 0:
		packed, err = unpackSimple(d, m.packed)
	case 2, 3:
		packed, err = unpackComplex(d, m.packed)
	default:
		err = fmt.Errorf("%w: data representation 5.%d", ErrUnsupportedTemplate, d.Template)
	}
	if err != nil {
		return nil, err
	}

	n := m.Grid.NumPoints
	if len(packed) > n {
		return nil, fmt.Errorf("%w: %d values for %d points", ErrTruncated, len(packed), n)
	}
	out := make([]float64, n)
	if m.bitmap == nil {
		if len(packed) != n {
			return nil, fmt.Errorf("%w: %d values for %d points", ErrTruncated, len(packed), n)
		}
		copy(out, packed)
	} else {
		if len(m.bitmap)*8 < n {
			return nil, fmt.Errorf("%w: bitmap shorter than grid", ErrTruncated)
		}
		k := 0
		for i := 0; i < n; i++ {
			if m.bitmap[i/8]&(0x80>>(i%8)) == 0 {
				out[i] = math.NaN()
				continue
			}
			if k >= len(packed) {
				return nil, fmt.Errorf("%w: bitmap selects more than %d values", ErrTruncated, len(packed))
			}
			out[i] = packed[k]
			k++
		}
	}
	return reorder(m.Grid, out), nil
}

func scaler(d DataRepresentation) func(x float64) float64 {
	bin := math.Pow(2, float64(d.BinScale))
	dec := math.Pow(10, -float64(d.DecScale))
	return func(x float64) float64 {
		return (d.Reference + x*bin) * dec
	}
}

func unpackSimple(d DataRepresentation, data []byte) ([]float64, error) {
	if d.NumValues*d.Bits > len(data)*8 {
		return nil, fmt.Errorf("%w: %d %d-bit values in %d octets", ErrTruncated, d.NumValues, d.Bits, len(data))
	}
	scale := scaler(d)
	out := make([]float64, d.NumValues)
	if d.Bits == 0 {
		c := scale(0)
		for i := range out {
			out[i] = c
		}
		return out, nil
	}
	br := newPackedReader(data)
	for i := range out {
		out[i] = scale(float64(br.read(d.Bits)))
	}
	if err := br.err(); err != nil {
		return nil, err
	}
	return out, nil
}

// unpackComplex handles 5.2 and 5.3: group references, widths and lengths
// followed by the packed group members, then optional spatial differencing.
func unpackComplex(d DataRepresentation, data []byte) ([]float64, error) {
	var ival1, ival2, minsd int
	order := 0
	if d.Template == 3 {
		order = d.SpatialOrder
		if order < 0 || order > 2 {
			return nil, fmt.Errorf("%w: spatial differencing order %d", ErrUnsupportedTemplate, order)
		}
		if order > 0 {
			o := d.SpatialOctets
			extra := o * (order + 1)
			if len(data) < extra {
				return nil, ErrTruncated
			}
			ival1 = intNsm(data[0:o])
			if order == 2 {
				ival2 = intNsm(data[o : 2*o])
			}
			minsd = intNsm(data[order*o : extra])
			data = data[extra:]
		}
	}
	br := newPackedReader(data)

	ng := d.NumGroups
	if ng > d.NumValues {
		return nil, fmt.Errorf("%w: %d groups for %d values", ErrTruncated, ng, d.NumValues)
	}
	refs := make([]int, ng)
	for g := range refs {
		refs[g] = br.read(d.Bits)
	}
	br.align()

	widths := make([]int, ng)
	for g := range widths {
		widths[g] = d.WidthRef + br.read(d.WidthBits)
		if err := checkWidth("group member", widths[g]); err != nil {
			return nil, err
		}
	}
	br.align()

	lengths := make([]int, ng)
	total := 0
	for g := range lengths {
		lengths[g] = d.LengthRef + br.read(d.LengthBits)*d.LengthIncr
	}
	if err := br.err(); err != nil {
		return nil, err
	}
	if ng > 0 {
		lengths[ng-1] = d.LastLength
	}
	for _, l := range lengths {
		total += l
	}
	if total != d.NumValues {
		return nil, fmt.Errorf("%w: groups hold %d values, expected %d", ErrTruncated, total, d.NumValues)
	}
	br.align()

	ints := make([]int, total)
	missing := make([]bool, total)
	k := 0
	for g := 0; g < ng; g++ {
		w := widths[g]
		for n := 0; n < lengths[g]; n++ {
			if w == 0 {
				missing[k] = isMissing(d.MissingMgmt, refs[g], d.Bits)
				ints[k] = refs[g]
				k++
				continue
			}
			v := br.read(w)
			missing[k] = isMissing(d.MissingMgmt, v, w)
			ints[k] = refs[g] + v
			k++
		}
	}
	if err := br.err(); err != nil {
		return nil, err
	}

	if order > 0 {
		undifference(ints, missing, order, ival1, ival2, minsd)
	}

	scale := scaler(d)
	out := make([]float64, total)
	for i, x := range ints {
		if missing[i] {
			out[i] = math.NaN()
			continue
		}
		out[i] = scale(float64(x))
	}
	return out, nil
}

// isMissing applies code table 5.5: all bits set is the primary missing
// value and, with management 2, all bits but the last is the secondary.
func isMissing(mgmt, v, bits int) bool {
	if mgmt == 0 || bits == 0 {
		return false
	}
	all := int(uint64(1)<<uint(bits) - 1)
	if v == all {
		return true
	}
	return mgmt == 2 && v == all-1
}

// undifference integrates first or second order differences over the
// non-missing values in place.
func undifference(ints []int, missing []bool, order, ival1, ival2, minsd int) {
	idx := make([]int, 0, len(ints))
	for i := range ints {
		if !missing[i] {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return
	}
	ints[idx[0]] = ival1
	start := 1
	if order == 2 && len(idx) > 1 {
		ints[idx[1]] = ival2
		start = 2
	}
	for n := start; n < len(idx); n++ {
		cur := ints[idx[n]] + minsd
		if order == 1 {
			cur += ints[idx[n-1]]
		} else {
			cur += 2*ints[idx[n-1]] - ints[idx[n-2]]
		}
		ints[idx[n]] = cur
	}
}

// reorder rewrites scan orders the geometries cannot express into plain
// rows: column-major storage (0x20) and alternating rows (0x10).
func reorder(g GridDefinition, v []float64) []float64 {
	nx, ny := g.NX, g.NY
	if g.ScanMode&0x20 != 0 {
		t := make([]float64, len(v))
		for i := 0; i < nx; i++ {
			for j := 0; j < ny; j++ {
				t[j*nx+i] = v[i*ny+j]
			}
		}
		v = t
	}
	if g.ScanMode&0x10 != 0 {
		for j := 1; j < ny; j += 2 {
			row := v[j*nx : (j+1)*nx]
			for a, b := 0, len(row)-1; a < b; a, b = a+1, b-1 {
				row[a], row[b] = row[b], row[a]
			}
		}
	}
	return v
}
