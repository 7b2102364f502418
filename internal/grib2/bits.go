package grib2

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
	"github.com/icza/bitio"
)

// GRIB2 encodes negative integers as sign and magnitude, not two's
// complement. These types unpack themselves inside restruct layouts.
type (
	sm8  int
	sm16 int
	sm32 int
)

func signMagnitude(b []byte) int {
	v := int(b[0] & 0x7f)
	for _, x := range b[1:] {
		v = v<<8 | int(x)
	}
	if b[0]&0x80 != 0 {
		return -v
	}
	return v
}

func unpackSM(buf []byte, n int, dst *int) ([]byte, error) {
	if len(buf) < n {
		return nil, ErrTruncated
	}
	*dst = signMagnitude(buf[:n])
	return buf[n:], nil
}

func (s *sm8) Unpack(buf []byte, _ binary.ByteOrder) ([]byte, error) {
	return unpackSM(buf, 1, (*int)(s))
}

func (s *sm16) Unpack(buf []byte, _ binary.ByteOrder) ([]byte, error) {
	return unpackSM(buf, 2, (*int)(s))
}

func (s *sm32) Unpack(buf []byte, _ binary.ByteOrder) ([]byte, error) {
	return unpackSM(buf, 4, (*int)(s))
}

func (sm8) SizeOf() int  { return 1 }
func (sm16) SizeOf() int { return 2 }
func (sm32) SizeOf() int { return 4 }

// intNsm decodes an n-octet sign-magnitude integer (spatial differencing extras).
func intNsm(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	return signMagnitude(b)
}

// decode unpacks a big-endian section layout, reporting short input as
// ErrTruncated.
func decode(sec []byte, layout any) error {
	if err := restruct.Unpack(sec, binary.BigEndian, layout); err != nil {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return nil
}

// maxFieldBits bounds the width of one packed value.
const maxFieldBits = 32

// packedReader reads the unsigned bit fields of a data section. The first
// error sticks and later reads return zero.
type packedReader struct {
	r *bitio.Reader
}

func newPackedReader(data []byte) packedReader {
	return packedReader{r: bitio.NewReader(bytes.NewReader(data))}
}

// read returns the next n bits. Zero-width fields hold no bits.
func (p packedReader) read(n int) int {
	if n == 0 || p.r.TryError != nil {
		return 0
	}
	return int(p.r.TryReadBits(uint8(n)))
}

// align skips to the next octet.
func (p packedReader) align() {
	p.r.Align()
}

func (p packedReader) err() error {
	if p.r.TryError != nil {
		return fmt.Errorf("%w: %v", ErrTruncated, p.r.TryError)
	}
	return nil
}

func checkWidth(what string, bits int) error {
	if bits < 0 || bits > maxFieldBits {
		return fmt.Errorf("%w: %d-bit %s", ErrUnsupportedTemplate, bits, what)
	}
	return nil
}
