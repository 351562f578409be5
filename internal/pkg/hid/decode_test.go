package hid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const deco640 = `
status:
  byteIndex: 1
  type: code
  values:
    192: {state: none}
    160: {state: hover}
    162: {state: hover, secondaryButtonPressed: true}
    164: {state: hover, primaryButtonPressed: true}
    161: {state: contact}
    163: {state: contact, secondaryButtonPressed: true}
    165: {state: contact, primaryButtonPressed: true}
    240: {state: buttons}
x: {byteIndex: 3, max: 124, type: range}
y: {byteIndex: 5, max: 70, type: range}
pressure: {byteIndex: 7, max: 63, type: range}
tiltX: {byteIndex: 8, positiveMax: 60, negativeMin: 256, negativeMax: 196, type: wrapped-range}
tiltY: {byteIndex: 9, positiveMax: 60, negativeMin: 256, negativeMax: 196, type: bipolar-range}
tablet: {byteIndex: 2, type: bit-flags, buttonCount: 4}
`

func getDecoder(t *testing.T, doc string) *Decoder {
	var raw map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(doc), &raw))
	mappings, errs := ParseMappings(raw)
	require.Empty(t, errs)
	return NewDecoder(mappings)
}

func report(values map[int]byte) []byte {
	r := make([]byte, 12)
	r[0] = 2
	for i, v := range values {
		r[i] = v
	}
	return r
}

func TestParseMappingsOrder(t *testing.T) {
	d := getDecoder(t, deco640)
	var keys []string
	for _, m := range d.Mappings() {
		keys = append(keys, m.Key)
	}
	assert.Equal(t, []string{"status", "tablet", "x", "y", "pressure", "tiltX", "tiltY"}, keys)
}

func TestParseMappingsSkipsMalformed(t *testing.T) {
	raw := map[string]interface{}{
		"x":       map[string]interface{}{"type": "range", "byteIndex": 3, "max": 124},
		"bogus":   map[string]interface{}{"type": "spline", "byteIndex": 4},
		"wheel":   map[string]interface{}{"type": "multi-byte-range"},
		"buttons": "not a map",
	}
	mappings, errs := ParseMappings(raw)
	require.Len(t, mappings, 1)
	assert.Equal(t, "x", mappings[0].Key)
	assert.Len(t, errs, 3)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrInvalidMapping)
	}
}

func TestDecodeContact(t *testing.T) {
	d := getDecoder(t, deco640)
	sample := d.Decode(report(map[int]byte{1: 165, 3: 62, 5: 70, 7: 63, 8: 30, 9: 226}))

	assert.Equal(t, "contact", sample.State())
	assert.True(t, sample.Bool("primaryButtonPressed"))
	assert.False(t, sample.Bool("secondaryButtonPressed"))

	x, ok := sample.Float("x")
	assert.True(t, ok)
	assert.InDelta(t, 0.5, x, 1e-9)
	y, _ := sample.Float("y")
	assert.InDelta(t, 1.0, y, 1e-9)
	pressure, _ := sample.Float("pressure")
	assert.InDelta(t, 1.0, pressure, 1e-9)
	tiltX, _ := sample.Float("tiltX")
	assert.InDelta(t, 0.5, tiltX, 1e-9)
	tiltY, _ := sample.Float("tiltY")
	assert.InDelta(t, -0.5, tiltY, 1e-9)

	_, ok = sample["button1"]
	assert.False(t, ok, "bit flags are decoded in buttons state only")
}

func TestDecodeButtonsState(t *testing.T) {
	d := getDecoder(t, deco640)
	sample := d.Decode(report(map[int]byte{1: 240, 2: 0b0101, 3: 100, 7: 10}))

	assert.Equal(t, "buttons", sample.State())
	assert.True(t, sample.Bool("button1"))
	assert.False(t, sample.Bool("button2"))
	assert.True(t, sample.Bool("button3"))
	assert.False(t, sample.Bool("button4"))
	_, ok := sample["button5"]
	assert.False(t, ok)

	_, ok = sample["x"]
	assert.False(t, ok)
	_, ok = sample["y"]
	assert.False(t, ok)
	_, ok = sample["pressure"]
	assert.True(t, ok)
}

func TestDecodeUnknownCode(t *testing.T) {
	d := getDecoder(t, deco640)
	sample := d.Decode(report(map[int]byte{1: 7, 3: 124}))
	assert.Equal(t, "", sample.State())
	x, _ := sample.Float("x")
	assert.InDelta(t, 1.0, x, 1e-9)
}

func TestDecodeShortReport(t *testing.T) {
	d := getDecoder(t, deco640)
	sample := d.Decode([]byte{2, 161, 0, 124})
	assert.Equal(t, "contact", sample.State())
	_, ok := sample.Float("x")
	assert.True(t, ok)
	for _, key := range []string{"y", "pressure", "tiltX", "tiltY"} {
		_, ok := sample[key]
		assert.False(t, ok, key)
	}
}

func TestDecodeRangeBounds(t *testing.T) {
	for _, tc := range []struct {
		name     string
		min, max float64
		value    byte
		expected float64
	}{
		{name: "min", min: 10, max: 200, value: 10, expected: 0},
		{name: "max", min: 10, max: 200, value: 200, expected: 1},
		{name: "mid", min: 0, max: 200, value: 50, expected: 0.25},
		{name: "degenerate", min: 50, max: 50, value: 50, expected: 0},
		{name: "degenerate other value", min: 50, max: 50, value: 99, expected: 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDecoder([]FieldMapping{{Key: "v", Type: Range, ByteIndex: 0, Min: tc.min, Max: tc.max}})
			v, ok := d.Decode([]byte{tc.value}).Float("v")
			require.True(t, ok)
			assert.InDelta(t, tc.expected, v, 1e-9)
		})
	}
}

func TestDecodeMultiByteRange(t *testing.T) {
	d := NewDecoder([]FieldMapping{{Key: "x", Type: MultiByteRange, ByteIndices: []int{1, 2}, Min: 0, Max: 0x3fff}})

	x, ok := d.Decode([]byte{2, 0xff, 0x3f}).Float("x")
	require.True(t, ok)
	assert.InDelta(t, 1.0, x, 1e-9)

	x, _ = d.Decode([]byte{2, 0x00, 0x20}).Float("x")
	assert.InDelta(t, float64(0x2000)/0x3fff, x, 1e-9)

	_, ok = d.Decode([]byte{2, 0xff}).Float("x")
	assert.False(t, ok)
}

func TestDecodeBipolarDegenerate(t *testing.T) {
	d := NewDecoder([]FieldMapping{{Key: "t", Type: BipolarRange, NegativeMin: 256, NegativeMax: 196}})
	v, _ := d.Decode([]byte{30}).Float("t")
	assert.Equal(t, 0.0, v)

	d = NewDecoder([]FieldMapping{{Key: "t", Type: BipolarRange, PositiveMax: 60, NegativeMin: 196, NegativeMax: 196}})
	v, _ = d.Decode([]byte{200}).Float("t")
	assert.Equal(t, 0.0, v)
}

func TestDecodeScalarCode(t *testing.T) {
	d := NewDecoder([]FieldMapping{
		{Key: "mode", Type: Code, ByteIndex: 0, Values: map[string]CodeValue{"1": {Scalar: "eraser"}}},
		{Key: "other", Type: Code, ByteIndex: 0, Values: map[string]CodeValue{"1": {Scalar: "ignored"}}},
	})
	sample := d.Decode([]byte{1})
	assert.Equal(t, "eraser", sample.String("mode"))
	_, ok := sample["other"]
	assert.False(t, ok)
}
