package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gethiox/strummer/internal/pkg/config"
	"github.com/gethiox/strummer/internal/pkg/logger"
	"github.com/gethiox/strummer/internal/pkg/midi"
	"github.com/gethiox/strummer/internal/pkg/midi/driver"
	"github.com/gethiox/strummer/internal/pkg/midi/driver/queue"
	"github.com/gethiox/strummer/internal/pkg/midi/driver/rawmidi"
	"github.com/gethiox/strummer/internal/pkg/midi/driver/rtmidi"
	"github.com/gethiox/strummer/internal/pkg/theory"
	"go.uber.org/zap"
)

// openMidi picks the output port configured in [midi] section. Real outputs are wrapped
// with a queue so a slow transport never stalls the sample loop.
func openMidi(cfg config.DaemonConfig) (driver.Port, *queue.Queue, error) {
	var port driver.Port
	var err error

	switch cfg.MIDI.Driver {
	case config.DriverRtMidi:
		if cfg.MIDI.Port < 0 {
			port, err = rtmidi.CreatePort(cfg.MIDI.VirtualName)
		} else {
			port, err = rtmidi.PickMidiPort(cfg.MIDI.Port)
		}
	case config.DriverRawMidi:
		var device rawmidi.Device
		device, err = pickRawMidi(cfg)
		port.Output = rawmidi.NewOutput(device)
	case config.DriverQueue:
		q := queue.NewCallback(cfg.MIDI.QueueSize)
		port.Output = q
		return port, q, q.Open()
	case config.DriverNull:
		port.Output = &driver.Null{}
	default:
		err = fmt.Errorf("unsupported midi driver: \"%s\"", cfg.MIDI.Driver)
	}
	if err != nil {
		return driver.Port{}, nil, err
	}
	if port.Output == nil {
		return driver.Port{}, nil, fmt.Errorf("port %s has no output", port.String())
	}

	err = port.Output.Open()
	if err != nil {
		return driver.Port{}, nil, fmt.Errorf("opening %s failed: %w", port.Output.Name(), err)
	}
	port.Output = withMirror(port.Output, mirrorOutput(cfg.MIDI.Mirror))

	q := queue.New(port.Output, cfg.MIDI.QueueSize)
	port.Output = q
	err = q.Open()
	if err != nil {
		return driver.Port{}, nil, fmt.Errorf("opening %s failed: %w", q.Name(), err)
	}
	log.Info("MIDI output opened", logger.Info, zap.String("port", q.Name()))
	return port, q, nil
}

// openNullMidi is the log-only output used when configured one is unavailable,
// samples are still processed and notes logged.
func openNullMidi(cfg config.DaemonConfig) (driver.Port, *queue.Queue) {
	q := queue.New(&driver.Null{}, cfg.MIDI.QueueSize)
	_ = q.Open() // null output never fails
	return driver.Port{Output: q}, q
}

func mirrorOutput(path string) driver.MIDIOut {
	if path == "" {
		return nil
	}
	return rawmidi.NewOutput(rawmidi.Device{Path: path})
}

// withMirror duplicates output events into another output, e.g. a hardware synth next to
// a virtual port. Mirror that fails to open is skipped, primary output keeps working.
func withMirror(out, mirror driver.MIDIOut) driver.MIDIOut {
	if mirror == nil {
		return out
	}
	err := mirror.Open()
	if err != nil {
		log.Info(fmt.Sprintf("mirror output unavailable: %v", err), logger.Warning, zap.String("port", mirror.Name()))
		return out
	}
	return driver.Multi{out, mirror}
}

func pickRawMidi(cfg config.DaemonConfig) (rawmidi.Device, error) {
	if cfg.MIDI.Device != "" {
		return rawmidi.Device{Path: cfg.MIDI.Device}, nil
	}
	devices, err := rawmidi.DetectDevices(rawmidi.DefaultDir)
	if err != nil {
		return rawmidi.Device{}, err
	}
	if len(devices) == 0 {
		return rawmidi.Device{}, fmt.Errorf("there is no raw midi devices available")
	}
	idx := cfg.MIDI.Port
	if idx < 0 {
		idx = 0
	}
	if idx >= len(devices) {
		return rawmidi.Device{}, fmt.Errorf("raw midi device %d doesn't exist (%d available)", idx, len(devices))
	}
	return devices[idx], nil
}

// resolveInput finds MIDI keyboard input: port index, name fragment or the input of opened port.
// Unknown identifiers fall back to the first port.
func resolveInput(id string, opened driver.Port) driver.MIDIIn {
	if id == "" {
		if opened.Input != nil {
			return opened.Input
		}
		id = "0"
	}

	if idx, err := strconv.Atoi(id); err == nil {
		port, err := rtmidi.PickMidiPort(idx)
		if err == nil && port.Input != nil {
			return port.Input
		}
		log.Info(fmt.Sprintf("invalid MIDI input index %d, using port 0", idx), logger.Warning)
	} else if port, err := rtmidi.FindMidiPort(id); err == nil && port.Input != nil {
		return port.Input
	} else {
		log.Info(fmt.Sprintf("MIDI input port \"%s\" not found, using port 0", id), logger.Warning)
	}

	port, err := rtmidi.PickMidiPort(0)
	if err != nil {
		return nil
	}
	return port.Input
}

type noteSink interface {
	SetNotes(notes []theory.Note)
}

// runMidiInput replaces strummer notes with keys held on a MIDI keyboard.
func runMidiInput(ctx context.Context, wg *sync.WaitGroup, in driver.MIDIIn, sink noteSink) {
	defer wg.Done()

	err := in.Open()
	if err != nil {
		log.Info(fmt.Sprintf("failed to open MIDI input: %v", err), logger.Warning, zap.String("port", in.Name()))
		return
	}
	defer func() {
		if err := in.Close(); err != nil {
			log.Info(fmt.Sprintf("failed to close MIDI input: %v", err), logger.Warning, zap.String("port", in.Name()))
		}
	}()
	log.Info("MIDI input opened", logger.Info, zap.String("port", in.Name()))

	held := midi.NewHeldNotes()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-in.ReceiveChannel():
			if !ok {
				return
			}
			if held.Handle(raw) {
				sink.SetNotes(held.Notes())
			}
		}
	}
}

// drainQueue empties callback queue periodically, standing in for an audio server process callback.
func drainQueue(ctx context.Context, wg *sync.WaitGroup, q *queue.Queue, period time.Duration) {
	defer wg.Done()
	if period <= 0 {
		period = time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	logEvent := func(ev midi.Event) {
		log.Info(ev.String(), logger.Midi, zap.String("port", q.Name()))
	}
	for {
		select {
		case <-ctx.Done():
			q.Drain(logEvent)
			return
		case <-ticker.C:
			q.Drain(logEvent)
		}
	}
}

func listPorts() {
	fmt.Println("MIDI ports:")
	for i, p := range rtmidi.GetPorts() {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
	devices, err := rawmidi.DetectDevices(rawmidi.DefaultDir)
	if err != nil {
		fmt.Printf("raw MIDI devices unavailable: %v\n", err)
		return
	}
	fmt.Println("raw MIDI devices:")
	for i, d := range devices {
		fmt.Printf("  %d: %s\n", i, d.Path)
	}
}
