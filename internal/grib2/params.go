package grib2

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Parameter names one (discipline, category, number) triple.
type Parameter struct {
	Name  string
	Short string
	Units string
}

type paramKey struct{ discipline, category, number int }

// parameters covers the fields read from GFS, NDFD, SPC and CPC products.
var parameters = map[paramKey]Parameter{
	{0, 0, 0}:    {"Temperature", "TMP", "K"},
	{0, 0, 4}:    {"Maximum temperature", "TMAX", "K"},
	{0, 0, 5}:    {"Minimum temperature", "TMIN", "K"},
	{0, 0, 6}:    {"Dew point temperature", "DPT", "K"},
	{0, 1, 1}:    {"Relative humidity", "RH", "%"},
	{0, 1, 7}:    {"Precipitation rate", "PRATE", "kg m**-2 s**-1"},
	{0, 1, 8}:    {"Total Precipitation", "APCP", "kg m**-2"},
	{0, 2, 2}:    {"U component of wind", "UGRD", "m s**-1"},
	{0, 2, 3}:    {"V component of wind", "VGRD", "m s**-1"},
	{0, 3, 1}:    {"Pressure reduced to MSL", "PRMSL", "Pa"},
	{0, 19, 194}: {"Convective outlook", "CONVOUTLOOK", "Code table 4.224"},
	{0, 19, 197}: {"Probability of tornado", "PTOR", "%"},
	{0, 19, 198}: {"Probability of hail", "PHAIL", "%"},
	{0, 19, 199}: {"Probability of damaging wind", "PWIND", "%"},
	{0, 19, 200}: {"Probability of extreme tornado", "PXTRMTOR", "%"},
	{0, 19, 201}: {"Probability of extreme hail", "PXTRMHAIL", "%"},
	{0, 19, 202}: {"Probability of extreme wind", "PXTRMWIND", "%"},
	{0, 19, 215}: {"Total probability of severe thunderstorms", "TOTSVRPROB", "%"},
}

// PoPName is the name given to the NDFD 12-hour probability of precipitation.
const PoPName = "Probability of 0.01 inch of precipitation (POP)"

// popThresholdMM is 0.01 inch expressed in kg m-2.
const popThresholdMM = 0.254

func parameterFor(m *Message) Parameter {
	p := m.Product
	if m.Discipline == 0 && p.Category == 1 && p.Number == 8 && p.Probability != nil {
		pr := p.Probability
		if pr.Type == 1 && math.Abs(pr.UpperLimit-popThresholdMM) < 0.01 ||
			pr.Type == 3 && math.Abs(pr.LowerLimit-popThresholdMM) < 0.01 {
			return Parameter{PoPName, "POP12", "%"}
		}
	}
	if param, ok := parameters[paramKey{m.Discipline, p.Category, p.Number}]; ok {
		if p.Probability != nil {
			param.Units = "%"
		}
		return param
	}
	return Parameter{
		Name:  fmt.Sprintf("Parameter %d-%d-%d", m.Discipline, p.Category, p.Number),
		Short: fmt.Sprintf("VAR%d_%d_%d", m.Discipline, p.Category, p.Number),
		Units: "unknown",
	}
}

// Event is the probability event family of a message.
type Event int

const (
	// EventNone marks a deterministic field.
	EventNone Event = iota
	// EventBelow is probability of the value falling below a limit.
	EventBelow
	// EventAbove is probability of the value exceeding a limit.
	EventAbove
	// EventBetween is probability of the value falling between limits.
	EventBetween
)

func (e Event) String() string {
	switch e {
	case EventBelow:
		return "event below"
	case EventAbove:
		return "event above"
	case EventBetween:
		return "event between"
	default:
		return "deterministic"
	}
}

// Event classifies the probability block, if any.
func (m *Message) Event() Event {
	p := m.Product.Probability
	if p == nil {
		return EventNone
	}
	switch p.Type {
	case 0, 4:
		return EventBelow
	case 1, 3:
		return EventAbove
	case 2:
		return EventBetween
	default:
		return EventNone
	}
}

// Filter narrows a message list. Zero fields match anything.
type Filter struct {
	Name      string
	ShortName string
	Event     Event
	ValidTime time.Time
}

func (f Filter) match(m *Message) bool {
	if f.Name != "" && !strings.EqualFold(m.Name(), f.Name) {
		return false
	}
	if f.ShortName != "" && !strings.EqualFold(m.ShortName(), f.ShortName) {
		return false
	}
	if f.Event != EventNone && m.Event() != f.Event {
		return false
	}
	if !f.ValidTime.IsZero() && !m.ValidTime().Equal(f.ValidTime) {
		return false
	}
	return true
}

// Select returns the messages matching f in stream order.
func Select(msgs []*Message, f Filter) ([]*Message, error) {
	var out []*Message
	for _, m := range msgs {
		if f.match(m) {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoMessages
	}
	return out, nil
}

// ValidTimes returns the distinct valid times in first-seen order.
func ValidTimes(msgs []*Message) []time.Time {
	seen := make(map[time.Time]bool)
	var out []time.Time
	for _, m := range msgs {
		t := m.ValidTime().UTC()
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
