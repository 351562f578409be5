package driver

import (
	"errors"
	"testing"

	"github.com/gethiox/strummer/internal/pkg/midi"
	"github.com/stretchr/testify/assert"
)

type namedOut struct {
	name string
	err  error
	got  []midi.Event
}

func (n *namedOut) Name() string { return n.name }
func (n *namedOut) Open() error  { return n.err }
func (n *namedOut) Close() error { return nil }
func (n *namedOut) Send(ev midi.Event) error {
	if n.err != nil {
		return n.err
	}
	n.got = append(n.got, ev)
	return nil
}

type namedIn struct{ name string }

func (n namedIn) Name() string                  { return n.name }
func (n namedIn) Open() error                   { return nil }
func (n namedIn) Close() error                  { return nil }
func (n namedIn) ReceiveChannel() <-chan []byte { return nil }

func TestPortString(t *testing.T) {
	var tests = []struct {
		port     Port
		expected string
	}{
		{Port{}, "None"},
		{Port{Output: &namedOut{name: "Synth:Synth MIDI 1 out"}}, "Synth:Synth MIDI 1 out (Output only)"},
		{Port{Input: namedIn{"Keys in"}}, "Keys in (Input only)"},
		{Port{Input: namedIn{"Strummer:in"}, Output: &namedOut{name: "Strummer:out"}}, "Strummer: (Input/Output)"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			assert.Equal(t, test.expected, test.port.String())
		})
	}
}

func TestNull(t *testing.T) {
	n := &Null{}
	assert.NoError(t, n.Send(midi.Event{0x90, 60, 1}))
	assert.NoError(t, n.Send(midi.Event{0x80, 60, 1}))
	assert.Equal(t, 2, n.Sent())
}

func TestMulti(t *testing.T) {
	a := &namedOut{name: "a"}
	b := &namedOut{name: "b", err: errors.New("unplugged")}
	m := Multi{a, b}

	assert.Equal(t, "a, b", m.Name())
	assert.Error(t, m.Open())

	err := m.Send(midi.Event{0x90, 60, 100})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "b: unplugged")
	assert.Len(t, a.got, 1, "healthy output still receives the event")
	assert.NoError(t, m.Close())
}
