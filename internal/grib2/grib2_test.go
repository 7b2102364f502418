package grib2

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickelblock/forecast-maps/internal/grid"
)

var refTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// temperatureMessage is a 2x2 GFS-style field with one masked point.
func temperatureMessage() []byte {
	w := &bitWriter{}
	for _, x := range []uint32{32, 0, 5} {
		w.write(x, 8)
	}
	return buildMessage(0,
		identification(refTime),
		latLonSection(2, 2, 32, 270, 31.75, 270.25, 0),
		productSection(productSpec{template: 0, category: 0, number: 0, forecastHour: 24}),
		simpleSection(3, 2700, 0, 1, 8),
		bitmapSection([]bool{true, false, true, true}),
		dataSection(w.buf),
	)
}

func TestReadSimplePackingWithBitmap(t *testing.T) {
	t.Parallel()

	msgs, err := Read(bytes.NewReader(temperatureMessage()))
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	m := msgs[0]
	assert.Equal(t, "Temperature", m.Name())
	assert.Equal(t, "TMP", m.ShortName())
	assert.Equal(t, "K", m.Units())
	assert.Equal(t, refTime, m.ReferenceTime)
	assert.Equal(t, refTime.Add(24*time.Hour), m.ValidTime())
	assert.Equal(t, EventNone, m.Event())

	f, err := m.Field()
	require.NoError(t, err)
	require.Equal(t, 2, f.NX)
	require.Equal(t, 2, f.NY)
	assert.InDelta(t, 273.2, f.Values[0], 1e-4)
	assert.True(t, math.IsNaN(f.Values[1]))
	assert.InDelta(t, 270.0, f.Values[2], 1e-4)
	assert.InDelta(t, 270.5, f.Values[3], 1e-4)

	lat, lon := f.Geometry.LatLon(1, 1)
	assert.InDelta(t, 31.75, lat, 1e-9)
	assert.InDelta(t, 270.25, lon, 1e-9)
	assert.Equal(t, refTime.Add(24*time.Hour), f.ValidTime)
}

func TestConstantFieldWithZeroBits(t *testing.T) {
	t.Parallel()

	raw := buildMessage(0,
		identification(refTime),
		latLonSection(2, 1, 30, 260, 30, 261, 0),
		productSection(productSpec{template: 0, category: 1, number: 7}),
		simpleSection(2, 1.5, 0, 0, 0),
		bitmapSection(nil),
		dataSection(nil),
	)
	msgs, err := Read(bytes.NewReader(raw))
	require.NoError(t, err)
	f, err := msgs[0].Field()
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 1.5}, f.Values)
	assert.Equal(t, "PRATE", msgs[0].ShortName())
}

// TestComplexPackingSpatialDifferencing decodes the sequence
// 10 12 15 17 21 30 packed with first-order differencing and two groups.
func TestComplexPackingSpatialDifferencing(t *testing.T) {
	t.Parallel()

	w := &bitWriter{}
	w.write(10, 16) // ival1
	w.write(2, 16)  // minsd
	w.write(0, 2)   // group references
	w.write(2, 2)
	w.align()
	w.write(1, 2) // group widths
	w.write(3, 2)
	w.align()
	w.write(2, 2) // scaled group lengths
	w.write(0, 2)
	w.align()
	for _, x := range []uint32{0, 0, 1, 0} {
		w.write(x, 1)
	}
	for _, x := range []uint32{0, 5} {
		w.write(x, 3)
	}

	raw := buildMessage(0,
		identification(refTime),
		latLonSection(3, 2, 30, 270, 29, 272, 0),
		productSection(productSpec{template: 0}),
		complexSection(complexSpec{
			n: 6, bits: 2, groups: 2,
			widthBits: 2,
			lengthRef: 2, lengthIncr: 1, lastLength: 2, lengthBits: 2,
			order: 1, extraOctets: 2,
		}),
		bitmapSection(nil),
		dataSection(w.buf),
	)
	msgs, err := Read(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 3, msgs[0].Data.Template)
	f, err := msgs[0].Field()
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 12, 15, 17, 21, 30}, f.Values)
}

func TestComplexPackingMissingValues(t *testing.T) {
	t.Parallel()

	w := &bitWriter{}
	w.write(1, 3) // group 0 reference
	w.write(7, 3) // group 1 reference: all ones, so the group is missing
	w.align()
	w.write(2, 2) // widths
	w.write(0, 2)
	w.align()
	w.write(0, 1) // lengths (group 1 uses the true last length)
	w.write(0, 1)
	w.align()
	for _, x := range []uint32{0, 3, 2} { // 3 is all ones at width 2
		w.write(x, 2)
	}

	raw := buildMessage(0,
		identification(refTime),
		latLonSection(5, 1, 30, 270, 30, 274, 0),
		productSection(productSpec{template: 0}),
		complexSection(complexSpec{
			n: 5, bits: 3, missingMgmt: 1, groups: 2,
			widthBits: 2, lengthRef: 3, lastLength: 2, lengthBits: 1,
		}),
		bitmapSection(nil),
		dataSection(w.buf),
	)
	msgs, err := Read(bytes.NewReader(raw))
	require.NoError(t, err)
	f, err := msgs[0].Field()
	require.NoError(t, err)
	assert.InDelta(t, 1, f.Values[0], 1e-12)
	assert.True(t, math.IsNaN(f.Values[1]))
	assert.InDelta(t, 3, f.Values[2], 1e-12)
	assert.True(t, math.IsNaN(f.Values[3]))
	assert.True(t, math.IsNaN(f.Values[4]))
}

func TestProbabilityProducts(t *testing.T) {
	t.Parallel()

	end := refTime.Add(36 * time.Hour)
	pop := buildMessage(0,
		identification(refTime),
		lambertSection(2, 2),
		productSection(productSpec{
			template: 9, category: 1, number: 8, forecastHour: 24,
			prob: &Probability{Type: 1, UpperLimit: 0.254}, probScale: 3, end: end,
		}),
		simpleSection(4, 0, 0, 0, 7),
		bitmapSection(nil),
		dataSection([]byte{0x14, 0x51, 0x47, 0xb8}),
	)
	below := buildMessage(0,
		identification(refTime),
		latLonSection(2, 2, 50, 235, 49, 236, 0),
		productSection(productSpec{
			template: 5, category: 0, number: 0, forecastHour: 240,
			prob: &Probability{Type: 0, LowerLimit: 273.15}, probScale: 2,
		}),
		simpleSection(4, 33, 0, 0, 0),
		bitmapSection(nil),
		dataSection(nil),
	)

	// Junk between messages is skipped.
	stream := append(append(append([]byte{}, pop...), "padding"...), below...)
	msgs, err := Read(bytes.NewReader(stream))
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, PoPName, msgs[0].Name())
	assert.Equal(t, "%", msgs[0].Units())
	assert.Equal(t, end, msgs[0].ValidTime())
	assert.Equal(t, EventAbove, msgs[0].Event())
	assert.IsType(t, &grid.LambertConformal{}, msgs[0].Grid.Geometry)

	assert.Equal(t, "Temperature", msgs[1].Name())
	assert.Equal(t, EventBelow, msgs[1].Event())
	assert.Contains(t, msgs[1].String(), "event below")
	assert.Equal(t, refTime.Add(240*time.Hour), msgs[1].ValidTime())

	sel, err := Select(msgs, Filter{Name: "Temperature", Event: EventBelow})
	require.NoError(t, err)
	assert.Len(t, sel, 1)

	_, err = Select(msgs, Filter{Name: "Temperature", Event: EventAbove})
	require.ErrorIs(t, err, ErrNoMessages)

	sel, err = Select(msgs, Filter{ValidTime: end})
	require.NoError(t, err)
	assert.Equal(t, PoPName, sel[0].Name())
}

// TestRepeatedSectionsSplitIntoFields covers messages carrying two fields
// that share the grid definition.
func TestRepeatedSectionsSplitIntoFields(t *testing.T) {
	t.Parallel()

	end1 := refTime.Add(12 * time.Hour)
	end2 := refTime.Add(36 * time.Hour)
	raw := buildMessage(0,
		identification(refTime),
		latLonSection(1, 1, 30, 270, 30, 270, 0),
		productSection(productSpec{template: 8, category: 0, number: 4, end: end1}),
		simpleSection(1, 300, 0, 0, 0),
		bitmapSection(nil),
		dataSection(nil),
		productSection(productSpec{template: 8, category: 0, number: 5, end: end2}),
		simpleSection(1, 280, 0, 0, 0),
		bitmapSection(nil),
		dataSection(nil),
	)
	msgs, err := Read(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Maximum temperature", msgs[0].Name())
	assert.Equal(t, "Minimum temperature", msgs[1].Name())
	assert.Equal(t, []time.Time{end1, end2}, ValidTimes(msgs))
}

func TestBoustrophedonRowsAreReversed(t *testing.T) {
	t.Parallel()

	w := &bitWriter{}
	for _, x := range []uint32{1, 2, 3, 6, 5, 4} {
		w.write(x, 4)
	}
	raw := buildMessage(0,
		identification(refTime),
		latLonSection(3, 2, 30, 270, 31, 272, 0x50),
		productSection(productSpec{template: 0}),
		simpleSection(6, 0, 0, 0, 4),
		bitmapSection(nil),
		dataSection(w.buf),
	)
	msgs, err := Read(bytes.NewReader(raw))
	require.NoError(t, err)
	f, err := msgs[0].Field()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, f.Values)
}

func TestReaderErrors(t *testing.T) {
	t.Parallel()

	_, err := Read(bytes.NewReader([]byte("not a grib file at all")))
	require.ErrorIs(t, err, ErrNotGRIB2)

	raw := temperatureMessage()
	_, err = Read(bytes.NewReader(raw[:len(raw)-10]))
	require.ErrorIs(t, err, ErrTruncated)

	edition1 := append([]byte{}, raw...)
	edition1[7] = 1
	_, err = Read(bytes.NewReader(edition1))
	require.ErrorIs(t, err, ErrNotGRIB2)

	rd := NewReader(bytes.NewReader(raw))
	_, err = rd.Next()
	require.NoError(t, err)
	_, err = rd.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestUnsupportedGridTemplate(t *testing.T) {
	t.Parallel()

	g := latLonSection(1, 1, 0, 0, 0, 0, 0)
	g[13] = 40 // gaussian
	raw := buildMessage(0, identification(refTime), g,
		productSection(productSpec{template: 0}),
		simpleSection(1, 0, 0, 0, 0), bitmapSection(nil), dataSection(nil))
	_, err := Read(bytes.NewReader(raw))
	require.ErrorIs(t, err, ErrUnsupportedTemplate)
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "SPC_data.grb2")
	require.NoError(t, os.WriteFile(path, temperatureMessage(), 0o600))
	msgs, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.grb2"))
	require.Error(t, err)
}

func TestSignMagnitudeLayouts(t *testing.T) {
	t.Parallel()

	var s surface
	require.NoError(t, decode([]byte{100, 0x82, 0x80, 0, 0, 5}, &s))
	assert.Equal(t, uint8(100), s.Type)
	assert.Equal(t, sm8(-2), s.Scale)
	assert.Equal(t, sm32(-5), s.Value)
	assert.InDelta(t, -500.0, s.scaled(), 1e-9)

	require.ErrorIs(t, decode([]byte{100, 0x82}, &s), ErrTruncated)
}

func TestPackedDataBounds(t *testing.T) {
	t.Parallel()

	short := buildMessage(0,
		identification(refTime),
		latLonSection(2, 2, 32, 270, 31.75, 270.25, 0),
		productSection(productSpec{template: 0}),
		simpleSection(4, 0, 0, 0, 16),
		bitmapSection(nil),
		dataSection([]byte{1, 2, 3}),
	)
	msgs, err := Read(bytes.NewReader(short))
	require.NoError(t, err)
	_, err = msgs[0].Field()
	require.ErrorIs(t, err, ErrTruncated)

	wide := buildMessage(0,
		identification(refTime),
		latLonSection(3, 2, 30, 270, 29, 272, 0),
		productSection(productSpec{template: 0}),
		complexSection(complexSpec{n: 6, bits: 2, groups: 2, widthBits: 40, lengthBits: 2, lastLength: 3, lengthRef: 3}),
		bitmapSection(nil),
		dataSection(make([]byte, 8)),
	)
	_, err = Read(bytes.NewReader(wide))
	require.ErrorIs(t, err, ErrUnsupportedTemplate)

	wideMember := buildMessage(0,
		identification(refTime),
		latLonSection(3, 2, 30, 270, 29, 272, 0),
		productSection(productSpec{template: 0}),
		complexSection(complexSpec{n: 6, bits: 2, groups: 2, widthRef: 33, widthBits: 2, lengthBits: 2, lastLength: 3, lengthRef: 3}),
		bitmapSection(nil),
		dataSection(make([]byte, 8)),
	)
	msgs, err = Read(bytes.NewReader(wideMember))
	require.NoError(t, err)
	_, err = msgs[0].Field()
	require.ErrorIs(t, err, ErrUnsupportedTemplate)
}
