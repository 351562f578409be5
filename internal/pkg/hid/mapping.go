package hid

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

type MappingType string

const (
	Range          MappingType = "range"
	MultiByteRange MappingType = "multi-byte-range"
	BipolarRange   MappingType = "bipolar-range"
	WrappedRange   MappingType = "wrapped-range" // older name of bipolar-range
	Code           MappingType = "code"
	BitFlags       MappingType = "bit-flags"
)

var SupportedMappingTypes = map[MappingType]bool{
	Range:          true,
	MultiByteRange: true,
	BipolarRange:   true,
	WrappedRange:   true,
	Code:           true,
	BitFlags:       true,
}

const DefaultButtonCount = 8

var ErrInvalidMapping = errors.New("invalid mapping")

// CodeValue is a lookup result of code mapping, either a scalar or a record merged into the sample.
type CodeValue struct {
	Scalar interface{}
	Fields map[string]interface{}
}

type FieldMapping struct {
	Key         string
	Type        MappingType
	ByteIndex   int
	ByteIndices []int

	Min, Max float64

	PositiveMin, PositiveMax float64
	NegativeMin, NegativeMax float64

	ButtonCount int

	Values map[string]CodeValue
}

// requiredLength returns minimal report length needed to decode given mapping.
func (m FieldMapping) requiredLength() int {
	if m.Type == MultiByteRange {
		max := -1
		for _, idx := range m.ByteIndices {
			if idx > max {
				max = idx
			}
		}
		return max + 1
	}
	return m.ByteIndex + 1
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt(v interface{}) (int, bool) {
	f, ok := toFloat(v)
	return int(f), ok
}

func optionalFloat(raw map[string]interface{}, key string) (float64, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("\"%s\" is not a number: %v", key, v)
	}
	return f, nil
}

func asStringMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		converted := make(map[string]interface{}, len(m))
		for k, v := range m {
			converted[fmt.Sprint(k)] = v
		}
		return converted, true
	default:
		return nil, false
	}
}

// ParseMapping builds a single FieldMapping from its configuration node.
func ParseMapping(key string, node interface{}) (FieldMapping, error) {
	raw, ok := asStringMap(node)
	if !ok {
		return FieldMapping{}, fmt.Errorf("%w: \"%s\": expected a map, got %T", ErrInvalidMapping, key, node)
	}

	typ, _ := raw["type"].(string)
	m := FieldMapping{Key: key, Type: MappingType(typ)}
	if !SupportedMappingTypes[m.Type] {
		return FieldMapping{}, fmt.Errorf("%w: \"%s\": unsupported type \"%s\"", ErrInvalidMapping, key, typ)
	}
	if m.Type == WrappedRange {
		m.Type = BipolarRange
	}

	if v, ok := raw["byteIndex"]; ok {
		idx, ok := toInt(v)
		if !ok || idx < 0 {
			return FieldMapping{}, fmt.Errorf("%w: \"%s\": invalid byteIndex %v", ErrInvalidMapping, key, v)
		}
		m.ByteIndex = idx
	}

	var err error
	for target, name := range map[*float64]string{
		&m.Min:         "min",
		&m.Max:         "max",
		&m.PositiveMin: "positiveMin",
		&m.PositiveMax: "positiveMax",
		&m.NegativeMin: "negativeMin",
		&m.NegativeMax: "negativeMax",
	} {
		*target, err = optionalFloat(raw, name)
		if err != nil {
			return FieldMapping{}, fmt.Errorf("%w: \"%s\": %v", ErrInvalidMapping, key, err)
		}
	}

	switch m.Type {
	case MultiByteRange:
		list, ok := raw["byteIndices"].([]interface{})
		if !ok || len(list) == 0 {
			return FieldMapping{}, fmt.Errorf("%w: \"%s\": byteIndices required", ErrInvalidMapping, key)
		}
		for _, v := range list {
			idx, ok := toInt(v)
			if !ok || idx < 0 {
				return FieldMapping{}, fmt.Errorf("%w: \"%s\": invalid byte index %v", ErrInvalidMapping, key, v)
			}
			m.ByteIndices = append(m.ByteIndices, idx)
		}
	case BitFlags:
		m.ButtonCount = DefaultButtonCount
		if v, ok := raw["buttonCount"]; ok {
			count, ok := toInt(v)
			if !ok || count < 0 || count > 8 {
				return FieldMapping{}, fmt.Errorf("%w: \"%s\": invalid buttonCount %v", ErrInvalidMapping, key, v)
			}
			m.ButtonCount = count
		}
	case Code:
		values, ok := asStringMap(raw["values"])
		if !ok {
			return FieldMapping{}, fmt.Errorf("%w: \"%s\": values required", ErrInvalidMapping, key)
		}
		m.Values = make(map[string]CodeValue, len(values))
		for code, v := range values {
			if fields, ok := asStringMap(v); ok {
				m.Values[code] = CodeValue{Fields: fields}
			} else {
				m.Values[code] = CodeValue{Scalar: v}
			}
		}
	}

	return m, nil
}

// ParseMappings builds ordered mapping list. Malformed entries are skipped and reported.
// The code mapping comes first, the rest is ordered by byte index and key.
func ParseMappings(raw map[string]interface{}) ([]FieldMapping, []error) {
	var mappings = make([]FieldMapping, 0, len(raw))
	var errs []error

	for key, node := range raw {
		m, err := ParseMapping(key, node)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		mappings = append(mappings, m)
	}

	sort.Slice(mappings, func(i, j int) bool {
		a, b := mappings[i], mappings[j]
		if (a.Type == Code) != (b.Type == Code) {
			return a.Type == Code
		}
		if a.requiredLength() != b.requiredLength() {
			return a.requiredLength() < b.requiredLength()
		}
		return a.Key < b.Key
	})
	sort.Slice(errs, func(i, j int) bool {
		return errs[i].Error() < errs[j].Error()
	})

	return mappings, errs
}
