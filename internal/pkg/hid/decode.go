package hid

import (
	"fmt"
	"strconv"
)

const (
	StateKey     = "state"
	StateButtons = "buttons"
)

// Sample is a single decoded report, values are float64, bool, string or code scalars.
type Sample map[string]interface{}

func (s Sample) Float(key string) (float64, bool) {
	v, ok := s[key]
	if !ok {
		return 0, false
	}
	if b, ok := v.(bool); ok {
		if b {
			return 1, true
		}
		return 0, true
	}
	return toFloat(v)
}

func (s Sample) Bool(key string) bool {
	v, ok := s[key]
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	default:
		f, ok := toFloat(b)
		return ok && f != 0
	}
}

func (s Sample) String(key string) string {
	v, ok := s[key]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

func (s Sample) State() string {
	return s.String(StateKey)
}

// Decoder turns fixed-size reports into samples, it holds no state between reports.
type Decoder struct {
	mappings []FieldMapping
}

func NewDecoder(mappings []FieldMapping) *Decoder {
	return &Decoder{mappings: mappings}
}

func (d *Decoder) Mappings() []FieldMapping {
	return d.mappings
}

func normalize(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (value - min) / (max - min)
}

func decodeBipolar(value float64, m FieldMapping) float64 {
	if value < m.NegativeMax {
		if m.PositiveMax == m.PositiveMin {
			return 0
		}
		return value / (m.PositiveMax - m.PositiveMin)
	}
	if m.NegativeMin == m.NegativeMax {
		return 0
	}
	return -(m.NegativeMin - value) / (m.NegativeMin - m.NegativeMax)
}

func (d *Decoder) Decode(report []byte) Sample {
	var sample = make(Sample, len(d.mappings)+4)
	var state string
	var code = -1

	for i, m := range d.mappings {
		if m.Type != Code {
			continue
		}
		code = i
		if m.ByteIndex >= len(report) {
			break
		}
		value, ok := m.Values[strconv.Itoa(int(report[m.ByteIndex]))]
		if !ok {
			break
		}
		if value.Fields != nil {
			for k, v := range value.Fields {
				sample[k] = v
			}
			state, _ = value.Fields[StateKey].(string)
		} else {
			sample[m.Key] = value.Scalar
		}
		break
	}

	for i, m := range d.mappings {
		if i == code || m.Type == Code {
			continue
		}
		if m.Type == BitFlags && state != StateButtons {
			continue
		}
		if state == StateButtons && (m.Key == "x" || m.Key == "y") {
			continue
		}
		if m.requiredLength() > len(report) {
			continue
		}

		switch m.Type {
		case Range:
			sample[m.Key] = normalize(float64(report[m.ByteIndex]), m.Min, m.Max)
		case MultiByteRange:
			var value int
			for n, idx := range m.ByteIndices {
				value |= int(report[idx]) << (8 * n)
			}
			sample[m.Key] = normalize(float64(value), m.Min, m.Max)
		case BipolarRange:
			sample[m.Key] = decodeBipolar(float64(report[m.ByteIndex]), m)
		case BitFlags:
			b := report[m.ByteIndex]
			for bit := 0; bit < m.ButtonCount; bit++ {
				sample[fmt.Sprintf("button%d", bit+1)] = b&(1<<bit) != 0
			}
		}
	}

	return sample
}
