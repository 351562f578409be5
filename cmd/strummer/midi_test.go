package main

import (
	"bytes"
	"testing"

	"github.com/gethiox/strummer/internal/pkg/config"
	"github.com/gethiox/strummer/internal/pkg/midi"
	"github.com/gethiox/strummer/internal/pkg/midi/driver"
	"github.com/gethiox/strummer/internal/pkg/midi/driver/rawmidi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func TestWithMirror(t *testing.T) {
	null := &driver.Null{}
	assert.Same(t, null, withMirror(null, nil).(*driver.Null))
	assert.Nil(t, mirrorOutput(""))

	var buf bufferCloser
	out := withMirror(null, rawmidi.NewWriterOutput("dump", &buf))
	multi, ok := out.(driver.Multi)
	require.True(t, ok)
	assert.Len(t, multi, 2)
	assert.Equal(t, "null, dump", out.Name())

	require.NoError(t, out.Send(midi.NoteEvent(midi.NoteOn, 0, 60, 100)))
	assert.Equal(t, []byte{0x90, 60, 100}, buf.Bytes())
	assert.Equal(t, 1, null.Sent())
}

func TestWithMirrorSkipsUnavailableDevice(t *testing.T) {
	null := &driver.Null{}
	out := withMirror(null, mirrorOutput("/nonexistent/midiC2D0"))
	assert.Same(t, null, out.(*driver.Null), "primary output stays usable")
}

func TestOpenMidiNullDriver(t *testing.T) {
	cfg := config.DefaultDaemonConfig()
	cfg.MIDI.Driver = config.DriverNull
	cfg.MIDI.Mirror = "/nonexistent/midiC2D0"

	port, q, err := openMidi(cfg)
	require.NoError(t, err)
	assert.Same(t, q, port.Output)
	assert.Nil(t, port.Input)
	assert.Equal(t, "null", q.Name(), "failed mirror is dropped")
	require.NoError(t, q.Close())
}

func TestMissingRawDeviceFallsBackToLogOnly(t *testing.T) {
	cfg := config.DefaultDaemonConfig()
	cfg.MIDI.Driver = config.DriverRawMidi
	cfg.MIDI.Device = "/nonexistent/midiC9D0"

	_, _, err := openMidi(cfg)
	require.Error(t, err)

	port, q := openNullMidi(cfg)
	assert.Same(t, q, port.Output)
	assert.False(t, q.Callback())
	require.NoError(t, port.Output.Send(midi.NoteEvent(midi.NoteOn, 0, 60, 100)))
	require.NoError(t, q.Close())

	score := q.Score()
	assert.Equal(t, uint64(1), score.NotesEmitted)
	assert.Zero(t, score.Dropped)
}
