// Package grib2test encodes small GRIB2 messages for tests of code that
// consumes decoded fields.
package grib2test

import (
	"encoding/binary"
	"math"
	"time"
)

// Probability is a product-definition probability block.
type Probability struct {
	Type  int
	Lower float64
	Upper float64
	// Scale is the decimal scale factor applied to both limits.
	Scale int
}

// Field describes one simple-packed message on a regular lat/lon grid.
// Rows run north to south starting at North; columns run east from West.
type Field struct {
	Reference time.Time
	Category  int
	Number    int
	// Template is 0, 8 (statistical), 5 (probability) or 9 (probability
	// over an interval). Templates 8 and 9 need End.
	Template     int
	ForecastHour int
	End          time.Time
	Probability  *Probability

	NX, NY      int
	North, West float64
	Step        float64
	// Values are row-major; NaN points are masked by a bitmap.
	Values []float64
}

// Encode returns the GRIB2 bytes of f with two decimal digits of precision.
func Encode(f Field) []byte {
	return message(0,
		identification(f.Reference),
		latLon(f),
		product(f),
		simple(f),
	)
}

// Concat joins encoded messages into one file.
func Concat(msgs ...[]byte) []byte {
	var out []byte
	for _, m := range msgs {
		out = append(out, m...)
	}
	return out
}

func putSM32(b []byte, v int) {
	u := uint32(v)
	if v < 0 {
		u = uint32(-v) | 0x80000000
	}
	binary.BigEndian.PutUint32(b, u)
}

func putSM16(b []byte, v int) {
	u := uint16(v)
	if v < 0 {
		u = uint16(-v) | 0x8000
	}
	binary.BigEndian.PutUint16(b, u)
}

func section(num byte, size int) []byte {
	s := make([]byte, size)
	binary.BigEndian.PutUint32(s[0:4], uint32(size))
	s[4] = num
	return s
}

func putTime(b []byte, t time.Time) {
	binary.BigEndian.PutUint16(b[0:2], uint16(t.Year()))
	b[2] = byte(t.Month())
	b[3] = byte(t.Day())
	b[4] = byte(t.Hour())
	b[5] = byte(t.Minute())
	b[6] = byte(t.Second())
}

func identification(ref time.Time) []byte {
	s := section(1, 21)
	binary.BigEndian.PutUint16(s[5:7], 7)
	putTime(s[12:19], ref.UTC())
	return s
}

func lon360(lon float64) float64 {
	if lon < 0 {
		return lon + 360
	}
	return lon
}

func latLon(f Field) []byte {
	s := section(3, 72)
	binary.BigEndian.PutUint32(s[6:10], uint32(f.NX*f.NY))
	s[14] = 6
	binary.BigEndian.PutUint32(s[30:34], uint32(f.NX))
	binary.BigEndian.PutUint32(s[34:38], uint32(f.NY))
	south := f.North - float64(f.NY-1)*f.Step
	east := f.West + float64(f.NX-1)*f.Step
	putSM32(s[46:50], int(math.Round(f.North*1e6)))
	binary.BigEndian.PutUint32(s[50:54], uint32(math.Round(lon360(f.West)*1e6)))
	putSM32(s[55:59], int(math.Round(south*1e6)))
	binary.BigEndian.PutUint32(s[59:63], uint32(math.Round(lon360(east)*1e6)))
	s[71] = 0
	return s
}

func product(f Field) []byte {
	size, endAt := 34, 0
	switch f.Template {
	case 5:
		size = 47
	case 8:
		size, endAt = 58, 34
	case 9:
		size, endAt = 71, 47
	}
	s := section(4, size)
	binary.BigEndian.PutUint16(s[7:9], uint16(f.Template))
	s[9] = byte(f.Category)
	s[10] = byte(f.Number)
	s[17] = 1
	putSM32(s[18:22], f.ForecastHour)
	s[22] = 1
	if p := f.Probability; p != nil && (f.Template == 5 || f.Template == 9) {
		scale := math.Pow(10, float64(p.Scale))
		s[36] = byte(p.Type)
		s[37] = byte(p.Scale)
		putSM32(s[38:42], int(math.Round(p.Lower*scale)))
		s[42] = byte(p.Scale)
		putSM32(s[43:47], int(math.Round(p.Upper*scale)))
	}
	if endAt > 0 {
		putTime(s[endAt:endAt+7], f.End.UTC())
	}
	return s
}

// simple packs the values at 16 bits with a decimal scale of two, adding a
// bitmap when any value is NaN.
func simple(f Field) []byte {
	const decimal = 2
	scale := math.Pow(10, decimal)
	ref := math.Inf(1)
	var present []float64
	bitmap := make([]bool, len(f.Values))
	masked := false
	for k, v := range f.Values {
		if math.IsNaN(v) {
			masked = true
			continue
		}
		bitmap[k] = true
		present = append(present, v)
		ref = math.Min(ref, v*scale)
	}
	if len(present) == 0 {
		ref = 0
	}
	ref = float64(float32(math.Floor(ref)))

	drs := section(5, 21)
	binary.BigEndian.PutUint32(drs[5:9], uint32(len(present)))
	binary.BigEndian.PutUint32(drs[11:15], math.Float32bits(float32(ref)))
	putSM16(drs[15:17], 0)
	putSM16(drs[17:19], decimal)
	drs[19] = 16

	var bms []byte
	if masked {
		bms = section(6, 6+(len(bitmap)+7)/8)
		for i, on := range bitmap {
			if on {
				bms[6+i/8] |= 0x80 >> (i % 8)
			}
		}
	} else {
		bms = section(6, 6)
		bms[5] = 255
	}

	payload := make([]byte, 2*len(present))
	for k, v := range present {
		binary.BigEndian.PutUint16(payload[2*k:], uint16(math.Round(v*scale-ref)))
	}
	data := section(7, 5+len(payload))
	copy(data[5:], payload)

	out := append(drs, bms...)
	return append(out, data...)
}

func message(discipline byte, sections ...[]byte) []byte {
	var body []byte
	for _, s := range sections {
		body = append(body, s...)
	}
	body = append(body, "7777"...)
	head := make([]byte, 16)
	copy(head, "GRIB")
	head[6] = discipline
	head[7] = 2
	binary.BigEndian.PutUint64(head[8:16], uint64(16+len(body)))
	return append(head, body...)
}
