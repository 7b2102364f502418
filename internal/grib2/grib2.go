// Package grib2 decodes WMO GRIB edition 2 messages into grid fields.
//
// Supported templates cover the NOAA products this module reads: grid
// definitions 3.0 (regular lat/lon) and 3.30 (Lambert conformal), product
// definitions 4.0 to 4.12, and data representations 5.0 (simple packing),
// 5.2 (complex packing) and 5.3 (complex packing with spatial differencing).
package grib2

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nickelblock/forecast-maps/internal/grid"
)

var (
	// ErrNotGRIB2 is returned when a stream does not hold a GRIB2 message.
	ErrNotGRIB2 = errors.New("grib2: not a GRIB edition 2 message")
	// ErrTruncated is returned when a message or section ends early.
	ErrTruncated = errors.New("grib2: truncated message")
	// ErrUnsupportedTemplate is returned for grid, product or data templates
	// the decoder does not implement.
	ErrUnsupportedTemplate = errors.New("grib2: unsupported template")
	// ErrNoMessages is returned by Select when nothing matches.
	ErrNoMessages = errors.New("grib2: no matching messages")
)

// Message is one decoded field. GRIB2 messages that repeat sections 2-7 are
// split into one Message per field, sharing the identification section.
type Message struct {
	Discipline    int
	ReferenceTime time.Time
	Grid          GridDefinition
	Product       ProductDefinition
	Data          DataRepresentation

	bitmap []byte // nil when every point is present
	packed []byte // raw section 7 payload
}

// Name is the long parameter name, e.g. "Temperature".
func (m *Message) Name() string {
	return parameterFor(m).Name
}

// ShortName is the abbreviated parameter name, e.g. "TMP".
func (m *Message) ShortName() string {
	return parameterFor(m).Short
}

// Units of the decoded values.
func (m *Message) Units() string {
	return parameterFor(m).Units
}

// ValidTime is the end of the statistical period when one is present and
// otherwise the reference time plus the forecast lead.
func (m *Message) ValidTime() time.Time {
	if m.Product.EndTime != nil {
		return *m.Product.EndTime
	}
	return m.ReferenceTime.Add(m.Product.Lead())
}

// String renders a one-line summary in the spirit of wgrib2 inventories.
func (m *Message) String() string {
	s := fmt.Sprintf("%s:%s:%s:valid %s", m.Name(), m.Units(),
		m.Product.Surface.String(), m.ValidTime().UTC().Format("2006-01-02 15:04:05"))
	if p := m.Product.Probability; p != nil {
		s += ":" + p.String()
	}
	return s
}

// Field unpacks the values onto the message's geometry. Missing points and
// points masked out by the bitmap are NaN.
func (m *Message) Field() (*grid.Field, error) {
	values, err := unpack(m)
	if err != nil {
		return nil, err
	}
	f, err := grid.NewField(m.Grid.Geometry, values)
	if err != nil {
		return nil, err
	}
	f.Name = m.Name()
	f.ShortName = m.ShortName()
	f.Units = m.Units()
	f.ReferenceTime = m.ReferenceTime
	f.ValidTime = m.ValidTime()
	return f, nil
}

// Reader iterates the messages of a GRIB2 stream. Bytes between messages
// (padding, WMO headers) are skipped.
type Reader struct {
	r       *bufio.Reader
	pending []*Message
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64<<10)}
}

// Next returns the next field, or io.EOF at the end of the stream.
func (rd *Reader) Next() (*Message, error) {
	for len(rd.pending) == 0 {
		raw, err := rd.nextRaw()
		if err != nil {
			return nil, err
		}
		msgs, err := parseMessage(raw)
		if err != nil {
			return nil, err
		}
		rd.pending = msgs
	}
	m := rd.pending[0]
	rd.pending = rd.pending[1:]
	return m, nil
}

func (rd *Reader) nextRaw() ([]byte, error) {
	if err := rd.seekMagic(); err != nil {
		return nil, err
	}
	head := make([]byte, 16)
	copy(head, "GRIB")
	if _, err := io.ReadFull(rd.r, head[4:]); err != nil {
		return nil, ErrTruncated
	}
	var ind indicator
	if err := decode(head, &ind); err != nil {
		return nil, err
	}
	if ind.Edition != 2 {
		return nil, fmt.Errorf("%w: edition %d", ErrNotGRIB2, ind.Edition)
	}
	total := ind.Length
	if total < 16+4 || total > 1<<32 {
		return nil, fmt.Errorf("%w: bad message length %d", ErrTruncated, total)
	}
	raw := make([]byte, total)
	copy(raw, head)
	if _, err := io.ReadFull(rd.r, raw[16:]); err != nil {
		return nil, ErrTruncated
	}
	if !bytes.Equal(raw[total-4:], []byte("7777")) {
		return nil, fmt.Errorf("%w: missing end section", ErrTruncated)
	}
	return raw, nil
}

// seekMagic consumes bytes until just past "GRIB". A clean io.EOF before any
// magic ends the iteration.
func (rd *Reader) seekMagic() error {
	const magic = "GRIB"
	matched := 0
	for matched < len(magic) {
		b, err := rd.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && matched == 0 {
				return io.EOF
			}
			if errors.Is(err, io.EOF) {
				return ErrTruncated
			}
			return err
		}
		switch {
		case b == magic[matched]:
			matched++
		case b == magic[0]:
			matched = 1
		default:
			matched = 0
		}
	}
	return nil
}

// Read decodes every message in r.
func Read(r io.Reader) ([]*Message, error) {
	rd := NewReader(r)
	var out []*Message
	for {
		m, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, ErrNotGRIB2
	}
	return out, nil
}

// ReadFile decodes every message in the file at path.
func ReadFile(path string) ([]*Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grib2 file: %w", err)
	}
	defer func() { _ = f.Close() }()
	msgs, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return msgs, nil
}

// parseMessage walks the sections of one raw message.
func parseMessage(raw []byte) ([]*Message, error) {
	discipline := int(raw[6])
	var (
		refTime time.Time
		gd      *GridDefinition
		pd      *ProductDefinition
		dr      *DataRepresentation
		bitmap  []byte
		out     []*Message
	)
	pos := 16
	for pos < len(raw)-4 {
		if pos+5 > len(raw) {
			return nil, ErrTruncated
		}
		var hdr sectionHeader
		if err := decode(raw[pos:], &hdr); err != nil {
			return nil, err
		}
		length := int(hdr.Length)
		if length < 5 || pos+length > len(raw)-4 {
			return nil, fmt.Errorf("%w: section at offset %d", ErrTruncated, pos)
		}
		sec := raw[pos : pos+length]
		var err error
		switch hdr.Number {
		case 1:
			refTime, err = parseIdentification(sec)
		case 2:
			// local use
		case 3:
			var g GridDefinition
			g, err = parseGrid(sec)
			gd = &g
		case 4:
			var p ProductDefinition
			p, err = parseProduct(sec)
			pd = &p
		case 5:
			var d DataRepresentation
			d, err = parseRepresentation(sec)
			dr = &d
		case 6:
			bitmap, err = parseBitmap(sec, bitmap)
		case 7:
			if gd == nil || pd == nil || dr == nil {
				return nil, fmt.Errorf("%w: data section before its definitions", ErrTruncated)
			}
			out = append(out, &Message{
				Discipline:    discipline,
				ReferenceTime: refTime,
				Grid:          *gd,
				Product:       *pd,
				Data:          *dr,
				bitmap:        bitmap,
				packed:        sec[5:],
			})
		default:
			err = fmt.Errorf("%w: section %d", ErrNotGRIB2, hdr.Number)
		}
		if err != nil {
			return nil, err
		}
		pos += length
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no data section", ErrTruncated)
	}
	return out, nil
}
