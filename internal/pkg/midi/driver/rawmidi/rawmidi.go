// Package rawmidi talks to ALSA raw MIDI character devices (/dev/snd/midiC*D*) directly,
// without going through rtmidi.
package rawmidi

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gethiox/strummer/internal/pkg/logger"
	"github.com/gethiox/strummer/internal/pkg/midi"
	"github.com/gethiox/strummer/internal/pkg/midi/driver"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const DefaultDir = "/dev/snd"

type Device struct {
	Path string
}

func (d Device) Name() string {
	return filepath.Base(d.Path)
}

// DetectDevices lists raw midi devices found in dir.
func DetectDevices(dir string) ([]Device, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var devices = make([]Device, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), "midi") {
			devices = append(devices, Device{Path: filepath.Join(dir, entry.Name())})
		}
	}
	return devices, nil
}

type opener func() (io.WriteCloser, error)

// Output writes raw event bytes to the device file.
type Output struct {
	mu     sync.Mutex
	name   string
	open   opener
	w      io.WriteCloser
	opened bool
}

func NewOutput(d Device) *Output {
	return &Output{
		name: d.Name(),
		open: func() (io.WriteCloser, error) {
			return os.OpenFile(d.Path, os.O_WRONLY|os.O_SYNC, 0)
		},
	}
}

// NewWriterOutput wraps arbitrary writer, mostly useful for dumping events to a file.
func NewWriterOutput(name string, w io.WriteCloser) *Output {
	return &Output{
		name: name,
		open: func() (io.WriteCloser, error) { return w, nil },
	}
}

func (o *Output) Name() string { return o.name }

func (o *Output) Open() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.opened {
		return nil
	}
	w, err := o.open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", o.name, err)
	}
	o.w = w
	o.opened = true
	log.Info("raw midi output opened", logger.Debug, zap.String("device", o.name))
	return nil
}

func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.opened {
		return nil
	}
	o.opened = false
	return o.w.Close()
}

func (o *Output) Send(ev midi.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.opened {
		return driver.ErrPortClosed
	}
	n, err := o.w.Write(ev)
	if err != nil {
		return fmt.Errorf("write to %s failed: %w", o.name, err)
	}
	if n != len(ev) {
		return fmt.Errorf("short write to %s: %d of %d bytes", o.name, n, len(ev))
	}
	return nil
}
