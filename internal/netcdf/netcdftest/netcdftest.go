// Package netcdftest writes small classic netCDF files shaped like NCSS
// grid subsets, for tests of code that consumes them.
package netcdftest

import (
	"encoding/binary"
	"math"
)

const (
	typeChar   = 2
	typeFloat  = 5
	typeDouble = 6

	tagDimension = 0x0A
	tagVariable  = 0x0B
	tagAttribute = 0x0C
)

// Grid is one variable on a lat/lon patch with a record time axis.
// Values run time slowest, then lat, then lon.
type Grid struct {
	Variable  string
	LongName  string
	Units     string
	Fill      float32
	Lats      []float32
	Lons      []float32
	Hours     []float64
	Reference string
	Values    []float32
}

type attr struct {
	name  string
	typ   int
	count int
	data  []byte
}

type variable struct {
	name   string
	dims   []int
	attrs  []attr
	typ    int
	data   []byte
	record bool
}

// Encode returns the CDF-1 bytes for g. A missing time axis defaults to a
// single record at hour zero.
func Encode(g Grid) []byte {
	hours := g.Hours
	if len(hours) == 0 {
		hours = []float64{0}
	}
	ref := g.Reference
	if ref == "" {
		ref = "2024-05-01T12:00:00Z"
	}
	longName := g.LongName
	if longName == "" {
		longName = g.Variable
	}
	numRecs := len(hours)

	vars := []variable{
		{name: "lat", dims: []int{1}, typ: typeFloat, data: floats(g.Lats...),
			attrs: []attr{text("units", "degrees_north")}},
		{name: "lon", dims: []int{2}, typ: typeFloat, data: floats(g.Lons...),
			attrs: []attr{text("units", "degrees_east")}},
		{name: "time", dims: []int{0}, typ: typeDouble, data: doubles(hours...), record: true,
			attrs: []attr{text("units", "Hour since "+ref)}},
		{name: g.Variable, dims: []int{0, 1, 2}, typ: typeFloat, data: floats(g.Values...), record: true,
			attrs: []attr{
				text("long_name", longName),
				text("units", g.Units),
				{name: "_FillValue", typ: typeFloat, count: 1, data: u32(int(math.Float32bits(g.Fill)))},
			}},
	}
	dims := []struct {
		name string
		n    int
	}{{"time", 0}, {"lat", len(g.Lats)}, {"lon", len(g.Lons)}}

	vsize := func(v variable) int {
		if v.record {
			return len(pad(append([]byte{}, v.data[:len(v.data)/numRecs]...)))
		}
		return len(pad(append([]byte{}, v.data...)))
	}
	header := func(begins []int) []byte {
		b := append([]byte("CDF\x01"), u32(numRecs)...)
		b = append(b, u32(tagDimension)...)
		b = append(b, u32(len(dims))...)
		for _, d := range dims {
			b = append(b, name(d.name)...)
			b = append(b, u32(d.n)...)
		}
		b = append(b, make([]byte, 8)...)
		b = append(b, u32(tagVariable)...)
		b = append(b, u32(len(vars))...)
		for i, v := range vars {
			b = append(b, name(v.name)...)
			b = append(b, u32(len(v.dims))...)
			for _, id := range v.dims {
				b = append(b, u32(id)...)
			}
			b = append(b, u32(tagAttribute)...)
			b = append(b, u32(len(v.attrs))...)
			for _, a := range v.attrs {
				b = append(b, name(a.name)...)
				b = append(b, u32(a.typ)...)
				b = append(b, u32(a.count)...)
				b = append(b, pad(append([]byte{}, a.data...))...)
			}
			b = append(b, u32(v.typ)...)
			b = append(b, u32(vsize(v))...)
			b = append(b, u32(begins[i])...)
		}
		return b
	}

	begins := make([]int, len(vars))
	off := len(header(begins))
	for i, v := range vars {
		if !v.record {
			begins[i] = off
			off += vsize(v)
		}
	}
	recSize := 0
	for i, v := range vars {
		if v.record {
			begins[i] = off + recSize
			recSize += vsize(v)
		}
	}

	out := header(begins)
	for _, v := range vars {
		if !v.record {
			out = append(out, pad(append([]byte{}, v.data...))...)
		}
	}
	for r := 0; r < numRecs; r++ {
		for _, v := range vars {
			if v.record {
				per := len(v.data) / numRecs
				out = append(out, pad(append([]byte{}, v.data[r*per:(r+1)*per]...))...)
			}
		}
	}
	return out
}

func text(n, value string) attr {
	return attr{name: n, typ: typeChar, count: len(value), data: []byte(value)}
}

func u32(v int) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return b
}

func pad(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

func name(s string) []byte {
	return pad(append(u32(len(s)), s...))
}

func floats(vs ...float32) []byte {
	var b []byte
	for _, v := range vs {
		b = append(b, u32(int(math.Float32bits(v)))...)
	}
	return b
}

func doubles(vs ...float64) []byte {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.BigEndian.PutUint64(b[8*i:], math.Float64bits(v))
	}
	return b
}
