package grib2

import (
	"fmt"
	"math"
	"time"

	"github.com/nickelblock/forecast-maps/internal/grid"
)

// GridDefinition is section 3.
type GridDefinition struct {
	Template  int
	NumPoints int
	NX, NY    int
	ScanMode  byte
	Geometry  grid.Geometry
}

// Surface is a fixed surface from the product definition.
type Surface struct {
	Type  int
	Value float64
}

// String names the common surfaces.
func (s Surface) String() string {
	switch s.Type {
	case 1:
		return "surface"
	case 100:
		return fmt.Sprintf("%g mb", s.Value/100)
	case 103:
		return fmt.Sprintf("%g m above ground", s.Value)
	case 255, 0:
		return "unspecified level"
	default:
		return fmt.Sprintf("level type %d value %g", s.Type, s.Value)
	}
}

// Probability holds the probability block of templates 4.5 and 4.9.
type Probability struct {
	Type       int // code table 4.9
	LowerLimit float64
	UpperLimit float64
}

// String renders the event wording used by the NDFD/CPC probability products.
func (p Probability) String() string {
	switch p.Type {
	case 0:
		return fmt.Sprintf("probability of event below lower limit (< %g)", p.LowerLimit)
	case 1:
		return fmt.Sprintf("probability of event above upper limit (> %g)", p.UpperLimit)
	case 2:
		return fmt.Sprintf("probability of event between limits (%g to %g)", p.LowerLimit, p.UpperLimit)
	case 3:
		return fmt.Sprintf("probability of event above lower limit (> %g)", p.LowerLimit)
	case 4:
		return fmt.Sprintf("probability of event below upper limit (< %g)", p.UpperLimit)
	default:
		return fmt.Sprintf("probability type %d", p.Type)
	}
}

// ProductDefinition is section 4.
type ProductDefinition struct {
	Template     int
	Category     int
	Number       int
	TimeUnit     int
	ForecastTime int
	Surface      Surface
	Probability  *Probability
	// EndTime is the end of the overall time interval for statistically
	// processed templates (4.8 to 4.12).
	EndTime *time.Time
}

// Lead converts the forecast time to a duration using code table 4.4.
func (p ProductDefinition) Lead() time.Duration {
	n := time.Duration(p.ForecastTime)
	switch p.TimeUnit {
	case 0:
		return n * time.Minute
	case 1:
		return n * time.Hour
	case 2:
		return n * 24 * time.Hour
	case 10:
		return n * 3 * time.Hour
	case 11:
		return n * 6 * time.Hour
	case 12:
		return n * 12 * time.Hour
	case 13:
		return n * time.Second
	default:
		return n * time.Hour
	}
}

// DataRepresentation is section 5.
type DataRepresentation struct {
	Template  int
	NumValues int
	Reference float64
	BinScale  int
	DecScale  int
	Bits      int

	// complex packing (5.2, 5.3)
	MissingMgmt   int
	NumGroups     int
	WidthRef      int
	WidthBits     int
	LengthRef     int
	LengthIncr    int
	LastLength    int
	LengthBits    int
	SpatialOrder  int
	SpatialOctets int
}

func need(sec []byte, n int) error {
	if len(sec) < n {
		return fmt.Errorf("%w: section %d has %d octets, need %d", ErrTruncated, sec[4], len(sec), n)
	}
	return nil
}

// Octet layouts of the sections and templates read here. Offsets count from
// the start of the section, including its 5-octet length and number.

type indicator struct {
	Magic      [4]byte
	_          [2]byte
	Discipline uint8
	Edition    uint8
	Length     uint64
}

type sectionHeader struct {
	Length uint32
	Number uint8
}

type gribTime struct {
	Year                       uint16
	Month, Day, Hour, Min, Sec uint8
}

func (t gribTime) Time() time.Time {
	return time.Date(int(t.Year), time.Month(t.Month), int(t.Day), int(t.Hour), int(t.Min), int(t.Sec), 0, time.UTC)
}

type identificationSection struct {
	_            [5]byte
	Centre       uint16
	SubCentre    uint16
	MasterTable  uint8
	LocalTable   uint8
	Significance uint8
	Reference    gribTime
}

type gridHeader struct {
	_         [6]byte
	NumPoints uint32
	_         [2]byte
	Template  uint16
}

// earthShape is code table 3.2 with the spherical radius; the oblate axes
// that follow are skipped.
type earthShape struct {
	Shape       uint8
	RadiusScale sm8
	RadiusValue uint32
	_           [10]byte
}

// latLonGrid is template 3.0.
type latLonGrid struct {
	Head   gridHeader
	Earth  earthShape
	NI, NJ uint32
	_      [8]byte
	La1    sm32
	Lo1    uint32
	_      uint8
	La2    sm32
	Lo2    uint32
	Di, Dj uint32
	Scan   uint8
}

// lambertGrid is template 3.30.
type lambertGrid struct {
	Head       gridHeader
	Earth      earthShape
	Nx, Ny     uint32
	La1        sm32
	Lo1        uint32
	_          uint8
	LaD        sm32
	LoV        uint32
	Dx, Dy     uint32
	ProjCentre uint8
	Scan       uint8
	Latin1     sm32
	Latin2     sm32
	SPLat      sm32
	SPLon      uint32
}

type surface struct {
	Type  uint8
	Scale sm8
	Value sm32
}

func (s surface) scaled() float64 {
	return scaledValue(s.Scale, s.Value)
}

type productHeader struct {
	_            [5]byte
	NumCoords    uint16
	Template     uint16
	Category     uint8
	Number       uint8
	_            [6]byte
	TimeUnit     uint8
	ForecastTime sm32
	First        surface
	Second       surface
}

// probabilityBlock follows the header in templates 4.5 and 4.9.
type probabilityBlock struct {
	ForecastNumber uint8
	Total          uint8
	Type           uint8
	LowerScale     sm8
	Lower          sm32
	UpperScale     sm8
	Upper          sm32
}

type representation struct {
	_         [5]byte
	NumValues uint32
	Template  uint16
	Reference float32
	BinScale  sm16
	DecScale  sm16
	Bits      uint8
	ValueType uint8
}

// complexPacking follows the representation header in 5.2 and 5.3.
type complexPacking struct {
	SplitMethod uint8
	MissingMgmt uint8
	Primary     uint32
	Secondary   uint32
	NumGroups   uint32
	WidthRef    uint8
	WidthBits   uint8
	LengthRef   uint32
	LengthIncr  uint8
	LastLength  uint32
	LengthBits  uint8
}

type spatialDifferencing struct {
	Order  uint8
	Octets uint8
}

// parseIdentification reads the reference time from section 1.
func parseIdentification(sec []byte) (time.Time, error) {
	if err := need(sec, 19); err != nil {
		return time.Time{}, err
	}
	var id identificationSection
	if err := decode(sec, &id); err != nil {
		return time.Time{}, err
	}
	return id.Reference.Time(), nil
}

// radius returns the sphere radius in metres.
func (e earthShape) radius() float64 {
	switch e.Shape {
	case 0:
		return 6367470
	case 1:
		return float64(e.RadiusValue) * math.Pow(10, -float64(e.RadiusScale))
	default:
		return 6371229
	}
}

const microDegrees = 1e-6

func degrees[T sm32 | uint32](v T) float64 {
	return float64(v) * microDegrees
}

func parseGrid(sec []byte) (GridDefinition, error) {
	if err := need(sec, 14); err != nil {
		return GridDefinition{}, err
	}
	var head gridHeader
	if err := decode(sec, &head); err != nil {
		return GridDefinition{}, err
	}
	g := GridDefinition{
		NumPoints: int(head.NumPoints),
		Template:  int(head.Template),
	}
	switch g.Template {
	case 0:
		if err := need(sec, 72); err != nil {
			return g, err
		}
		var ll latLonGrid
		if err := decode(sec, &ll); err != nil {
			return g, err
		}
		g.NX, g.NY = int(ll.NI), int(ll.NJ)
		la1, lo1 := degrees(ll.La1), degrees(ll.Lo1)
		la2, lo2 := degrees(ll.La2), degrees(ll.Lo2)
		g.ScanMode = ll.Scan
		iNegative := g.ScanMode&0x80 != 0
		if !iNegative && lo2 < lo1 {
			lo2 += 360
		}
		if iNegative && lo2 > lo1 {
			lo2 -= 360
		}
		dlat, dlon := 0.0, 0.0
		if g.NY > 1 {
			dlat = (la2 - la1) / float64(g.NY-1)
		}
		if g.NX > 1 {
			dlon = (lo2 - lo1) / float64(g.NX-1)
		}
		g.Geometry = grid.NewLatLonGrid(la1, lo1, dlat, dlon, g.NX, g.NY)
	case 30:
		if err := need(sec, 81); err != nil {
			return g, err
		}
		var lc lambertGrid
		if err := decode(sec, &lc); err != nil {
			return g, err
		}
		g.NX, g.NY = int(lc.Nx), int(lc.Ny)
		g.ScanMode = lc.Scan
		g.Geometry = &grid.LambertConformal{
			NX:        g.NX,
			NY:        g.NY,
			Lat1:      degrees(lc.La1),
			Lon1:      degrees(lc.Lo1),
			LoV:       degrees(lc.LoV),
			Dx:        float64(lc.Dx) / 1000,
			Dy:        float64(lc.Dy) / 1000,
			Latin1:    degrees(lc.Latin1),
			Latin2:    degrees(lc.Latin2),
			Radius:    lc.Earth.radius(),
			JPositive: g.ScanMode&0x40 != 0,
		}
	default:
		return g, fmt.Errorf("%w: grid definition 3.%d", ErrUnsupportedTemplate, g.Template)
	}
	if g.NX*g.NY != g.NumPoints {
		return g, fmt.Errorf("%w: %dx%d grid declares %d points", ErrTruncated, g.NX, g.NY, g.NumPoints)
	}
	return g, nil
}

func scaledValue(scale sm8, value sm32) float64 {
	return float64(value) * math.Pow(10, -float64(scale))
}

func parseProbability(sec []byte) (*Probability, error) {
	if err := need(sec, 47); err != nil {
		return nil, err
	}
	var pb probabilityBlock
	if err := decode(sec[34:], &pb); err != nil {
		return nil, err
	}
	return &Probability{
		Type:       int(pb.Type),
		LowerLimit: scaledValue(pb.LowerScale, pb.Lower),
		UpperLimit: scaledValue(pb.UpperScale, pb.Upper),
	}, nil
}

func parseProduct(sec []byte) (ProductDefinition, error) {
	if err := need(sec, 34); err != nil {
		return ProductDefinition{}, err
	}
	var head productHeader
	if err := decode(sec, &head); err != nil {
		return ProductDefinition{}, err
	}
	p := ProductDefinition{
		Template:     int(head.Template),
		Category:     int(head.Category),
		Number:       int(head.Number),
		TimeUnit:     int(head.TimeUnit),
		ForecastTime: int(head.ForecastTime),
		Surface: Surface{
			Type:  int(head.First.Type),
			Value: head.First.scaled(),
		},
	}
	// endAt is the octet offset of the end-of-interval date, 0 when absent.
	endAt := 0
	var err error
	switch p.Template {
	case 0, 1, 2, 15:
	case 5:
		p.Probability, err = parseProbability(sec)
	case 8:
		endAt = 34
	case 9:
		p.Probability, err = parseProbability(sec)
		endAt = 47
	case 10:
		endAt = 35
	case 11:
		endAt = 37
	case 12:
		endAt = 36
	default:
		return p, fmt.Errorf("%w: product definition 4.%d", ErrUnsupportedTemplate, p.Template)
	}
	if err != nil {
		return p, err
	}
	if endAt > 0 {
		if err := need(sec, endAt+7); err != nil {
			return p, err
		}
		var end gribTime
		if err := decode(sec[endAt:], &end); err != nil {
			return p, err
		}
		t := end.Time()
		p.EndTime = &t
	}
	return p, nil
}

func parseRepresentation(sec []byte) (DataRepresentation, error) {
	if err := need(sec, 21); err != nil {
		return DataRepresentation{}, err
	}
	var head representation
	if err := decode(sec, &head); err != nil {
		return DataRepresentation{}, err
	}
	d := DataRepresentation{
		NumValues: int(head.NumValues),
		Template:  int(head.Template),
		Reference: float64(head.Reference),
		BinScale:  int(head.BinScale),
		DecScale:  int(head.DecScale),
		Bits:      int(head.Bits),
	}
	if err := checkWidth("reference", d.Bits); err != nil {
		return d, err
	}
	switch d.Template {
	case 0:
	case 2, 3:
		if err := need(sec, 47); err != nil {
			return d, err
		}
		var cp complexPacking
		if err := decode(sec[21:], &cp); err != nil {
			return d, err
		}
		d.MissingMgmt = int(cp.MissingMgmt)
		d.NumGroups = int(cp.NumGroups)
		d.WidthRef = int(cp.WidthRef)
		d.WidthBits = int(cp.WidthBits)
		d.LengthRef = int(cp.LengthRef)
		d.LengthIncr = int(cp.LengthIncr)
		d.LastLength = int(cp.LastLength)
		d.LengthBits = int(cp.LengthBits)
		if err := checkWidth("group width", d.WidthBits); err != nil {
			return d, err
		}
		if err := checkWidth("group length", d.LengthBits); err != nil {
			return d, err
		}
		if d.Template == 3 {
			if err := need(sec, 49); err != nil {
				return d, err
			}
			var sd spatialDifferencing
			if err := decode(sec[47:], &sd); err != nil {
				return d, err
			}
			d.SpatialOrder = int(sd.Order)
			d.SpatialOctets = int(sd.Octets)
		}
	default:
		return d, fmt.Errorf("%w: data representation 5.%d", ErrUnsupportedTemplate, d.Template)
	}
	return d, nil
}

// parseBitmap returns the bitmap for following data sections. Indicator 254
// reuses the previous bitmap and 255 means no bitmap.
func parseBitmap(sec []byte, prev []byte) ([]byte, error) {
	if err := need(sec, 6); err != nil {
		return nil, err
	}
	switch sec[5] {
	case 0:
		return sec[6:], nil
	case 254:
		return prev, nil
	case 255:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: predefined bitmap %d", ErrUnsupportedTemplate, sec[5])
	}
}
