package grib2

import (
	"encoding/binary"
	"math"
	"time"
)

// Helpers that encode small GRIB2 messages for the decoder tests.

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

func newSection(num byte, size int) []byte {
	s := make([]byte, size)
	binary.BigEndian.PutUint32(s[0:4], uint32(size))
	s[4] = num
	return s
}

func identification(ref time.Time) []byte {
	s := newSection(1, 21)
	binary.BigEndian.PutUint16(s[5:7], 7)
	binary.BigEndian.PutUint16(s[12:14], uint16(ref.Year()))
	s[14] = byte(ref.Month())
	s[15] = byte(ref.Day())
	s[16] = byte(ref.Hour())
	s[17] = byte(ref.Minute())
	s[18] = byte(ref.Second())
	return s
}

func latLonSection(nx, ny int, la1, lo1, la2, lo2 float64, scan byte) []byte {
	s := newSection(3, 72)
	binary.BigEndian.PutUint32(s[6:10], uint32(nx*ny))
	s[14] = 6
	binary.BigEndian.PutUint32(s[30:34], uint32(nx))
	binary.BigEndian.PutUint32(s[34:38], uint32(ny))
	putSM32(s[46:50], int(math.Round(la1*1e6)))
	binary.BigEndian.PutUint32(s[50:54], uint32(math.Round(lo1*1e6)))
	putSM32(s[55:59], int(math.Round(la2*1e6)))
	binary.BigEndian.PutUint32(s[59:63], uint32(math.Round(lo2*1e6)))
	s[71] = scan
	return s
}

func lambertSection(nx, ny int) []byte {
	s := newSection(3, 81)
	binary.BigEndian.PutUint32(s[6:10], uint32(nx*ny))
	binary.BigEndian.PutUint16(s[12:14], 30)
	s[14] = 1
	binary.BigEndian.PutUint32(s[16:20], 6371200)
	binary.BigEndian.PutUint32(s[30:34], uint32(nx))
	binary.BigEndian.PutUint32(s[34:38], uint32(ny))
	putSM32(s[38:42], 20191999)
	binary.BigEndian.PutUint32(s[42:46], 238445999)
	binary.BigEndian.PutUint32(s[51:55], 265000000)
	binary.BigEndian.PutUint32(s[55:59], 2539703)
	binary.BigEndian.PutUint32(s[59:63], 2539703)
	s[64] = 0x40
	putSM32(s[65:69], 25000000)
	putSM32(s[69:73], 25000000)
	return s
}

type productSpec struct {
	template     int
	category     int
	number       int
	forecastHour int
	prob         *Probability
	probScale    int
	end          time.Time
}

func productSection(p productSpec) []byte {
	size := 34
	endAt := 0
	switch p.template {
	case 5:
		size = 47
	case 8:
		size, endAt = 58, 34
	case 9:
		size, endAt = 71, 47
	}
	s := newSection(4, size)
	binary.BigEndian.PutUint16(s[7:9], uint16(p.template))
	s[9] = byte(p.category)
	s[10] = byte(p.number)
	s[17] = 1
	putSM32(s[18:22], p.forecastHour)
	s[22] = 1
	if p.prob != nil {
		s[36] = byte(p.prob.Type)
		s[37] = byte(p.probScale)
		putSM32(s[38:42], int(math.Round(p.prob.LowerLimit*math.Pow(10, float64(p.probScale)))))
		s[42] = byte(p.probScale)
		putSM32(s[43:47], int(math.Round(p.prob.UpperLimit*math.Pow(10, float64(p.probScale)))))
	}
	if endAt > 0 {
		binary.BigEndian.PutUint16(s[endAt:endAt+2], uint16(p.end.Year()))
		s[endAt+2] = byte(p.end.Month())
		s[endAt+3] = byte(p.end.Day())
		s[endAt+4] = byte(p.end.Hour())
		s[endAt+5] = byte(p.end.Minute())
		s[endAt+6] = byte(p.end.Second())
	}
	return s
}

func simpleSection(n int, ref float32, binScale, decScale, bits int) []byte {
	s := newSection(5, 21)
	binary.BigEndian.PutUint32(s[5:9], uint32(n))
	binary.BigEndian.PutUint32(s[11:15], math.Float32bits(ref))
	putSM16(s[15:17], binScale)
	putSM16(s[17:19], decScale)
	s[19] = byte(bits)
	return s
}

type complexSpec struct {
	n           int
	bits        int
	missingMgmt int
	groups      int
	widthRef    int
	widthBits   int
	lengthRef   int
	lengthIncr  int
	lastLength  int
	lengthBits  int
	order       int
	extraOctets int
}

func complexSection(c complexSpec) []byte {
	size, template := 47, 2
	if c.order > 0 {
		size, template = 49, 3
	}
	s := newSection(5, size)
	binary.BigEndian.PutUint32(s[5:9], uint32(c.n))
	binary.BigEndian.PutUint16(s[9:11], uint16(template))
	s[19] = byte(c.bits)
	s[21] = 1
	s[22] = byte(c.missingMgmt)
	binary.BigEndian.PutUint32(s[31:35], uint32(c.groups))
	s[35] = byte(c.widthRef)
	s[36] = byte(c.widthBits)
	binary.BigEndian.PutUint32(s[37:41], uint32(c.lengthRef))
	s[41] = byte(c.lengthIncr)
	binary.BigEndian.PutUint32(s[42:46], uint32(c.lastLength))
	s[46] = byte(c.lengthBits)
	if c.order > 0 {
		s[47] = byte(c.order)
		s[48] = byte(c.extraOctets)
	}
	return s
}

func bitmapSection(bits []bool) []byte {
	if bits == nil {
		s := newSection(6, 6)
		s[5] = 255
		return s
	}
	s := newSection(6, 6+(len(bits)+7)/8)
	for i, on := range bits {
		if on {
			s[6+i/8] |= 0x80 >> (i % 8)
		}
	}
	return s
}

func dataSection(payload []byte) []byte {
	s := newSection(7, 5+len(payload))
	copy(s[5:], payload)
	return s
}

// bitWriter packs big-endian bit fields.
type bitWriter struct {
	buf []byte
	n   int
}

func (w *bitWriter) write(v uint32, bits int) {
	for b := bits - 1; b >= 0; b-- {
		if w.n%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if v&(1<<uint(b)) != 0 {
			w.buf[len(w.buf)-1] |= 0x80 >> (w.n % 8)
		}
		w.n++
	}
}

func (w *bitWriter) align() {
	if r := w.n % 8; r != 0 {
		w.n += 8 - r
	}
}

func buildMessage(discipline byte, sections ...[]byte) []byte {
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
