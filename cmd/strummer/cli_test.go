package main

import (
	"fmt"
	"testing"
	"time"

	"github.com/gethiox/strummer/internal/pkg/logger"
	"github.com/logrusorgru/aurora"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawStringLen(t *testing.T) {
	for i, tc := range []struct {
		input    string
		expected int
	}{
		{input: "", expected: 0},
		{input: "a", expected: 1},
		{input: "a\033", expected: 2},
		{input: "a\033[", expected: 3},
		{input: "a\033[2", expected: 4},
		{input: "a\033[2A", expected: 1},
		{input: "a\033[2Aa", expected: 2},
	} {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			l := rawStringLen(tc.input)
			assert.Equal(t, tc.expected, l)
		})
	}
}

func TestUnpack(t *testing.T) {
	entry, err := unpack([]byte(`{"ts":1700000000000000000,"caller":"strum/strummer.go:42","msg":"strum [C4(90)]","level":4,"device":"hidraw3"}`))
	require.NoError(t, err)
	assert.Equal(t, "strum [C4(90)]", entry.Msg)
	assert.Equal(t, logger.NotesLvl, entry.Level)
	assert.Equal(t, "hidraw3", entry.Device)
	assert.Equal(t, int64(1700000000), time.Time(entry.Ts).Unix())

	_, err = unpack([]byte("plain text"))
	assert.Error(t, err)
}

func TestPrepareString(t *testing.T) {
	au := aurora.NewAurora(false)
	ts := TimeNanosecond(time.Date(2024, 1, 2, 3, 4, 5, 6000000, time.Local))

	var tests = []struct {
		name     string
		entry    Entry
		width    int
		logLevel int
		expected string
	}{
		{
			name:     "filtered by level",
			entry:    Entry{Ts: ts, Msg: "sample", Level: logger.SamplesLvl},
			width:    -1,
			logLevel: logger.NotesLvl,
			expected: "",
		},
		{
			name:     "no fields",
			entry:    Entry{Ts: ts, Msg: "ready", Level: logger.InfoLvl},
			width:    -1,
			logLevel: logger.InfoLvl,
			expected: "[03:04:05.006] ready",
		},
		{
			name:     "fields",
			entry:    Entry{Ts: ts, Msg: "connected", Level: logger.InfoLvl, Device: "hidraw3", Client: "console"},
			width:    -1,
			logLevel: logger.InfoLvl,
			expected: "[03:04:05.006] connected [dev=hidraw3] [client=console]",
		},
		{
			name:     "padded to width",
			entry:    Entry{Ts: ts, Msg: "ok", Level: logger.InfoLvl, Port: "virtual"},
			width:    40,
			logLevel: logger.InfoLvl,
			expected: "[03:04:05.006] ok         [port=virtual]",
		},
		{
			name:     "caller in debug",
			entry:    Entry{Ts: ts, Msg: "tick", Level: logger.DebugLvl, Caller: "pipeline/pipeline.go:12"},
			width:    -1,
			logLevel: logger.DebugLvl,
			expected: "[03:04:05.006] tick (pipeline/pipeline.go:12)",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, prepareString(test.entry, au, test.width, test.logLevel))
		})
	}
}

func TestRenderLogsStopsWithoutClosingMessages(t *testing.T) {
	messages := make(chan []byte, 4)
	stop := make(chan struct{})
	done := make(chan struct{})

	messages <- []byte(`{"msg":"first","level":2}`)
	messages <- []byte(`{"msg":"second","level":2}`)

	go renderLogs(messages, aurora.NewAurora(false), 80, logger.InfoLvl, true, stop, done)
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("renderer did not stop")
	}
	assert.Empty(t, messages, "buffered entries are drained")

	// late writers must not panic on a closed channel
	assert.NotPanics(t, func() {
		messages <- []byte(`{"msg":"late","level":2}`)
	})
}
