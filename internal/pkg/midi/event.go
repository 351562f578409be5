package midi

import (
	"fmt"
	"math"

	"github.com/gethiox/strummer/internal/pkg/theory"
	gomidi "gitlab.com/gomidi/midi/v2"
)

const (
	// message types
	NoteOff               uint8 = 0b1000 << 4
	NoteOn                uint8 = 0b1001 << 4
	PolyphonicKeyPressure uint8 = 0b1010 << 4 // After-touch
	ControlChange         uint8 = 0b1011 << 4
	ProgramChange         uint8 = 0b1100 << 4
	ChannelPressure       uint8 = 0b1101 << 4 // After-touch
	PitchWheelChange      uint8 = 0b1110 << 4

	// ControlChange
	AllNotesOff         uint8 = 0b01111011
	AllSoundOff         uint8 = 0b01111000
	ResetAllControllers uint8 = 0b01111001

	ReleaseVelocity uint8 = 0x40
	PitchBendCenter       = 8192
	PitchBendMax          = 16383
)

func noteToString(note byte) string {
	n := theory.FromMidi(int(note), false)
	return fmt.Sprintf("%-2s%2d", n.Notation, n.Octave)
}

type Event []byte

func (e Event) Type() uint8 {
	if len(e) == 0 {
		return 0
	}
	return e[0] & 0b11110000
}

func (e Event) Channel() uint8 {
	if len(e) == 0 {
		return 0
	}
	return e[0] & 0b1111
}

func (e Event) String() string {
	if len(e) == 0 {
		return fmt.Sprintf("Warning: empty Midi event, it should be not emitted")
	}
	channel := e.Channel() + 1
	switch x := e.Type(); {
	case x == NoteOff && len(e) == 3:
		return fmt.Sprintf("Note Off: %s (channel: %2d, velocity: %3d)", noteToString(e[1]), channel, e[2])
	case x == NoteOn && len(e) == 3:
		return fmt.Sprintf("Note On : %s (channel: %2d, velocity: %3d)", noteToString(e[1]), channel, e[2])
	case x == ControlChange && len(e) == 3:
		return fmt.Sprintf("Control Change: %3d, value: %3d (channel: %2d)", e[1], e[2], channel)
	case x == PitchWheelChange && len(e) == 3:
		val := float64((int(e[2])<<7)+int(e[1])-PitchBendCenter) / PitchBendCenter
		return fmt.Sprintf("Pitch Bend: %4.0f%% (channel: %2d)", val*100, channel)
	default:
		return gomidi.Message(e).String()
	}
}

func NoteEvent(messageType, channel, note, velocity uint8) Event {
	return Event{messageType | channel, note, velocity}
}

func ControlChangeEvent(channel, function, value uint8) Event {
	return Event{ControlChange | channel, function, value}
}

// PitchBendValue converts bend in range -1.0..1.0 into 14-bit value centered at 8192.
func PitchBendValue(val float64) int {
	val = math.Max(-1, math.Min(1, val))
	target := int((val + 1) * PitchBendCenter)
	if target > PitchBendMax {
		target = PitchBendMax
	}
	if target < 0 {
		target = 0
	}
	return target
}

// PitchBendEvent accepts a value in range -1.0 to 1.0, anything beyond is clamped
func PitchBendEvent(channel uint8, val float64) Event {
	target := PitchBendValue(val)
	msb := uint8((target >> 7) & 0b01111111)
	lsb := uint8(target & 0b01111111)
	return Event{PitchWheelChange | channel, lsb, msb}
}
