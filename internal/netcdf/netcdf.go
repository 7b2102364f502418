// Package netcdf reads the netCDF grids served by THREDDS NCSS and turns
// them into grid fields. Decoding is done by go-native-netcdf; this
// package bounds what a header may ask for before any values are read.
package netcdf

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"os"
	"reflect"
	"strings"

	nc "github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

var (
	// ErrNotNetCDF is returned when the input is neither CDF nor HDF5.
	ErrNotNetCDF = errors.New("netcdf: not a netCDF file")
	// ErrCorrupt is returned for headers that do not describe a readable file,
	// including shapes larger than the file itself.
	ErrCorrupt = errors.New("netcdf: corrupt file")
	// ErrVariableNotFound is returned when a named variable does not exist.
	ErrVariableNotFound = errors.New("netcdf: no such variable")
	// ErrUnsupportedType is returned for values that are not numeric.
	ErrUnsupportedType = errors.New("netcdf: unsupported type")
)

// File is an opened netCDF file.
type File struct {
	group api.Group
	// size is the byte length of the file. No variable holds more elements.
	size int64
}

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

// Decode parses an in-memory file, such as an NCSS response body.
func Decode(data []byte) (*File, error) {
	return newFile(memFile{bytes.NewReader(data)}, int64(len(data)))
}

// Open reads the file at path.
func Open(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open netcdf file: %w", err)
	}
	st, err := fh.Stat()
	if err != nil {
		_ = fh.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	f, err := newFile(fh, st.Size())
	if err != nil {
		_ = fh.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return f, nil
}

func newFile(r api.ReadSeekerCloser, size int64) (f *File, err error) {
	defer recoverCorrupt(&err)
	g, err := nc.New(r)
	if errors.Is(err, nc.ErrUnknown) {
		return nil, ErrNotNetCDF
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &File{group: g, size: size}, nil
}

// recoverCorrupt turns a panic raised while decoding into ErrCorrupt.
func recoverCorrupt(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrCorrupt, r)
	}
}

// Close releases the file.
func (f *File) Close() {
	f.group.Close()
}

// Variable describes one variable. Shape[0] is the record count for a
// record variable.
type Variable struct {
	Name  string
	Dims  []string
	Shape []int
	Attrs api.AttributeMap

	getter api.VarGetter
}

// Len is the total element count.
func (v *Variable) Len() int {
	n := 1
	for _, d := range v.Shape {
		n *= d
	}
	return n
}

// Attr returns an attribute value: a string for text, a number for a single
// value and a slice otherwise.
func (v *Variable) Attr(name string) (any, bool) {
	if v.Attrs == nil {
		return nil, false
	}
	return v.Attrs.Get(name)
}

// AttrString returns a text attribute.
func (v *Variable) AttrString(name string) (string, bool) {
	val, ok := v.Attr(name)
	if !ok {
		return "", false
	}
	s, ok := val.(string)
	return strings.TrimRight(s, "\x00"), ok
}

// AttrFloat returns the first value of a numeric attribute.
func (v *Variable) AttrFloat(name string) (float64, bool) {
	val, ok := v.Attr(name)
	if !ok {
		return 0, false
	}
	var xs []float64
	if err := flatten(reflect.ValueOf(val), &xs); err != nil || len(xs) == 0 {
		return 0, false
	}
	return xs[0], true
}

// Var looks up a variable by name and checks that its shape fits the file.
func (f *File) Var(name string) (v *Variable, err error) {
	defer recoverCorrupt(&err)
	getter, err := f.group.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrVariableNotFound, name)
	}
	dims := getter.Dimensions()
	shape := make([]int, len(dims))
	total := uint64(1)
	for i, d := range dims {
		var n uint64
		if i == 0 {
			// Len resolves the unlimited dimension to the record count.
			if getter.Len() < 0 {
				return nil, fmt.Errorf("%w: %s: negative length", ErrCorrupt, name)
			}
			n = uint64(getter.Len())
		} else {
			var ok bool
			if n, ok = f.group.GetDimension(d); !ok {
				return nil, fmt.Errorf("%w: %s: unknown dimension %s", ErrCorrupt, name, d)
			}
		}
		hi, lo := bits.Mul64(total, n)
		if hi != 0 || lo > uint64(f.size) {
			return nil, fmt.Errorf("%w: %s: shape exceeds the %d byte file", ErrCorrupt, name, f.size)
		}
		total = lo
		shape[i] = int(n)
	}
	return &Variable{
		Name:   name,
		Dims:   dims,
		Shape:  shape,
		Attrs:  getter.Attributes(),
		getter: getter,
	}, nil
}

// Raw returns the variable's values without packing attributes applied.
func (f *File) Raw(v *Variable) (out []float64, err error) {
	defer recoverCorrupt(&err)
	vals, err := v.getter.Values()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", v.Name, err)
	}
	out = make([]float64, 0, v.Len())
	if err := flatten(reflect.ValueOf(vals), &out); err != nil {
		return nil, fmt.Errorf("read %s: %w", v.Name, err)
	}
	if len(out) != v.Len() {
		return nil, fmt.Errorf("%w: %s has %d values for shape %v", ErrCorrupt, v.Name, len(out), v.Shape)
	}
	return out, nil
}

// flatten appends the numbers in v, which may be a scalar or nested
// slices, in row-major order.
func flatten(v reflect.Value, out *[]float64) error {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := flatten(v.Index(i), out); err != nil {
				return err
			}
		}
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		*out = append(*out, float64(v.Int()))
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		*out = append(*out, float64(v.Uint()))
	case reflect.Float32, reflect.Float64:
		*out = append(*out, v.Float())
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, v.Kind())
	}
	return nil
}

// Float64s returns the variable's values with scale_factor and add_offset
// applied. _FillValue and missing_value points become NaN.
func (f *File) Float64s(name string) ([]float64, error) {
	v, err := f.Var(name)
	if err != nil {
		return nil, err
	}
	return f.values(v)
}

func (f *File) values(v *Variable) ([]float64, error) {
	raw, err := f.Raw(v)
	if err != nil {
		return nil, err
	}
	var fills []float64
	for _, name := range []string{"_FillValue", "missing_value"} {
		if x, ok := v.AttrFloat(name); ok {
			fills = append(fills, x)
		}
	}
	scale, offset := 1.0, 0.0
	if x, ok := v.AttrFloat("scale_factor"); ok {
		scale = x
	}
	if x, ok := v.AttrFloat("add_offset"); ok {
		offset = x
	}
	for i, x := range raw {
		missing := math.IsNaN(x)
		for _, fv := range fills {
			if x == fv {
				missing = true
			}
		}
		if missing {
			raw[i] = math.NaN()
			continue
		}
		raw[i] = x*scale + offset
	}
	return raw, nil
}
