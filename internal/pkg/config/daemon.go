package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-ini/ini"
)

// Output driver names accepted in [midi] driver.
const (
	DriverRtMidi  = "rtmidi"
	DriverRawMidi = "rawmidi"
	DriverQueue   = "queue"
	DriverNull    = "null"
)

// Tablet sources accepted in [strummer] source.
const (
	SourceHidraw = "hidraw"
	SourceEvdev  = "evdev"
)

type DaemonConfig struct {
	Strummer struct {
		Source     string
		Grab       bool // exclusive access to evdev nodes
		PollSleep  time.Duration
		ReportSize int
		Backoff    time.Duration
	}

	MIDI struct {
		Driver      string
		Port        int    // n-th port for rtmidi, -1 creates a virtual port
		Device      string // rawmidi device path
		Mirror      string // rawmidi device receiving a copy of every event
		VirtualName string
		QueueSize   int
	}

	Log struct {
		BufferSize int
	}
}

func DefaultDaemonConfig() DaemonConfig {
	var c DaemonConfig
	c.Strummer.Source = SourceHidraw
	c.Strummer.Grab = true
	c.Strummer.PollSleep = time.Millisecond
	c.Strummer.ReportSize = 64
	c.Strummer.Backoff = 100 * time.Millisecond
	c.MIDI.Driver = DriverRtMidi
	c.MIDI.Port = -1
	c.MIDI.VirtualName = "Strummer"
	c.MIDI.QueueSize = 256
	c.Log.BufferSize = 512
	return c
}

// LoadDaemonConfig reads INI settings, absent file or keys keep defaults.
func LoadDaemonConfig(path string) (DaemonConfig, error) {
	c := DefaultDaemonConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("reading daemon config failed: %w", err)
	}

	cfg, err := ini.Load(data)
	if err != nil {
		return c, fmt.Errorf("parsing daemon config failed: %w", err)
	}

	// [strummer]
	strummer := cfg.Section("strummer")
	if key, err := strummer.GetKey("source"); err == nil {
		switch src := key.Value(); src {
		case SourceHidraw, SourceEvdev:
			c.Strummer.Source = src
		default:
			return c, fmt.Errorf("unsupported tablet source: \"%s\"", src)
		}
	}
	if key, err := strummer.GetKey("grab"); err == nil {
		b, err := key.Bool()
		if err != nil {
			return c, fmt.Errorf("invalid grab: \"%s\"", key.Value())
		}
		c.Strummer.Grab = b
	}
	if key, err := strummer.GetKey("poll_sleep_us"); err == nil {
		i, err := key.Int()
		if err != nil || i < 0 {
			return c, fmt.Errorf("invalid poll_sleep_us: \"%s\"", key.Value())
		}
		c.Strummer.PollSleep = time.Duration(i) * time.Microsecond
	}
	if key, err := strummer.GetKey("report_size"); err == nil {
		i, err := key.Int()
		if err != nil || i <= 0 {
			return c, fmt.Errorf("invalid report_size: \"%s\"", key.Value())
		}
		c.Strummer.ReportSize = i
	}
	if key, err := strummer.GetKey("backoff_ms"); err == nil {
		i, err := key.Int()
		if err != nil || i < 0 {
			return c, fmt.Errorf("invalid backoff_ms: \"%s\"", key.Value())
		}
		c.Strummer.Backoff = time.Duration(i) * time.Millisecond
	}

	// [midi]
	midi := cfg.Section("midi")
	if key, err := midi.GetKey("driver"); err == nil {
		switch d := key.Value(); d {
		case DriverRtMidi, DriverRawMidi, DriverQueue, DriverNull:
			c.MIDI.Driver = d
		default:
			return c, fmt.Errorf("unsupported midi driver: \"%s\"", d)
		}
	}
	if key, err := midi.GetKey("port"); err == nil {
		i, err := key.Int()
		if err != nil {
			return c, fmt.Errorf("invalid midi port: \"%s\"", key.Value())
		}
		c.MIDI.Port = i
	}
	c.MIDI.Device = midi.Key("device").MustString(c.MIDI.Device)
	c.MIDI.Mirror = midi.Key("mirror_device").MustString(c.MIDI.Mirror)
	c.MIDI.VirtualName = midi.Key("virtual_name").MustString(c.MIDI.VirtualName)
	if key, err := midi.GetKey("queue_size"); err == nil {
		i, err := key.Int()
		if err != nil || i <= 0 {
			return c, fmt.Errorf("invalid queue_size: \"%s\"", key.Value())
		}
		c.MIDI.QueueSize = i
	}

	// [log]
	if key, err := cfg.Section("log").GetKey("buffer_size"); err == nil {
		i, err := key.Int()
		if err != nil || i <= 0 {
			return c, fmt.Errorf("invalid log buffer_size: \"%s\"", key.Value())
		}
		c.Log.BufferSize = i
	}

	return c, nil
}
