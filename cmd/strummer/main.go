package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gethiox/strummer/internal/pkg/config"
	"github.com/gethiox/strummer/internal/pkg/control"
	"github.com/gethiox/strummer/internal/pkg/hid"
	"github.com/gethiox/strummer/internal/pkg/logger"
	"github.com/gethiox/strummer/internal/pkg/midi"
	"github.com/gethiox/strummer/internal/pkg/midi/driver/rtmidi"
	"github.com/gethiox/strummer/internal/pkg/midi/scheduler"
	"github.com/gethiox/strummer/internal/pkg/pipeline"
	"github.com/gethiox/strummer/internal/pkg/strum"
	"github.com/logrusorgru/aurora"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

var (
	configPath  = flag.String("config", "strummer.yaml", "strummer configuration document (yaml or json)")
	iniPath     = flag.String("ini", "strummer.ini", "daemon settings")
	devicePath  = flag.String("device", "", "hidraw node to read, discovered from config when empty")
	writeConfig = flag.Bool("write-config", false, "write effective configuration to -config path and exit")
	list        = flag.Bool("list", false, "list MIDI ports and HID devices, then exit")
	stdin       = flag.Bool("stdin", false, "accept JSON config updates and actions on standard input, one object per line")
	force256    = flag.Bool("256", false, "force 256 color mode")
	nocolor     = flag.Bool("nocolor", false, "disable color")
	width       = flag.Int("width", -1, "pad log lines to given width, -1 disables")
	silent      = flag.Bool("silent", false, "no output logging")
	logLevel    = flag.Int("loglevel", logger.NotesLvl,
		"logging level, each level enables additional information class (0-6)\n"+
			"\navailable options:\n"+
			"0: errors\n"+
			"1: warnings\n"+
			"2: general info (device and port status)\n"+
			"3: actions and config updates\n"+
			"4: strummed notes\n"+
			"5: outgoing MIDI events\n"+
			"6: decoded samples",
	)
	debug = flag.Bool("debug", false, "log everything, including caller")
)

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func handleSigs(wg *sync.WaitGroup, sigs <-chan os.Signal, cancel func()) {
	defer wg.Done()
	var counter int
	for sig := range sigs {
		if counter > 0 {
			fmt.Println("Dirty exit")
			os.Exit(1)
		}
		log.Info(fmt.Sprintf("signal received: %v", sig), logger.Debug)
		cancel()
		counter++
	}
}

// logBroadcasts is a local subscriber printing what remote clients would receive.
func logBroadcasts(wg *sync.WaitGroup, hub *control.Hub) {
	defer wg.Done()
	sub, err := hub.Subscribe("console")
	if err != nil {
		log.Info(fmt.Sprintf("console subscription failed: %v", err), logger.Warning)
		return
	}
	for m := range sub.Updates {
		switch m.Type {
		case control.TypeNotes:
			log.Info(fmt.Sprintf("strum notes: %v", m.Notes), logger.Info, zap.String("client", "console"))
		case control.TypeConfig:
			log.Info("configuration changed", logger.Debug, zap.String("client", "console"))
		}
	}
}

// readControl feeds JSON lines from r into the hub, as a remote client would.
// It is not waited for on exit, a blocked read must not hold the shutdown.
func readControl(ctx context.Context, hub *control.Hub, r io.Reader) {
	sub, err := hub.Subscribe("stdin")
	if err != nil {
		log.Info(fmt.Sprintf("stdin subscription failed: %v", err), logger.Warning)
		return
	}

	go func() {
		for range sub.Updates {
		}
	}()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		_, err := hub.Handle(sub.ID, line)
		if err != nil {
			log.Info(fmt.Sprintf("control message rejected: %v", err), logger.Warning, zap.String("client", "stdin"))
		}
	}
	hub.Unsubscribe(sub.ID)
}

func watchConfig(ctx context.Context, wg *sync.WaitGroup, store *config.Store, p *pipeline.Pipeline, manager *deviceManager) {
	defer wg.Done()
	for range config.DetectChanges(ctx, *configPath) {
		err := store.Reload(*configPath)
		if err != nil {
			p.Warn(fmt.Sprintf("config reload failed: %v", err))
			continue
		}
		log.Info("configuration reloaded", logger.Info)
		manager.UpdateDecoder()
		p.ConfigChanged()
	}
}

func main() {
	flag.Parse()
	if *force256 {
		os.Setenv("TERM", "xterm-256color")
	}
	if *debug {
		*logLevel = logger.DebugLvl
	}

	daemonCfg, err := config.LoadDaemonConfig(*iniPath)
	if err != nil {
		fatal("%v", err)
	}
	logger.SetBufferSize(daemonCfg.Log.BufferSize)

	renderStop := make(chan struct{})
	renderDone := make(chan struct{})
	go renderLogs(logger.Messages, aurora.NewAurora(!*nocolor), *width, *logLevel, *silent, renderStop, renderDone)
	log.Info(fmt.Sprintf("daemon config: %+v", daemonCfg), logger.Debug)

	exit := func(code int) {
		close(renderStop)
		<-renderDone
		os.Exit(code)
	}

	store, err := config.Load(*configPath)
	if err != nil {
		log.Info(fmt.Sprintf("loading configuration failed: %v", err), logger.Error)
		exit(1)
	}

	if *writeConfig {
		err = store.Save(*configPath)
		if err != nil {
			log.Info(fmt.Sprintf("writing configuration failed: %v", err), logger.Error)
			exit(1)
		}
		log.Info(fmt.Sprintf("configuration written to %s", *configPath), logger.Info)
		exit(0)
	}

	if *list {
		listPorts()
		devices, err := hid.Enumerate(hid.DefaultSysfsRoot, hid.DefaultDevRoot)
		if err != nil {
			fmt.Printf("HID devices unavailable: %v\n", err)
		} else {
			fmt.Println("HID devices:")
			for _, d := range devices {
				fmt.Printf("  %s\n", d.String())
			}
		}
		exit(0)
	}

	var sigs = make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	ctx, cancel := context.WithCancel(context.Background())

	// this wait-group has to be propagated everywhere where usual logging appear
	wg := sync.WaitGroup{}
	wg.Add(1)
	go handleSigs(&wg, sigs, cancel)

	var midiWarning string
	port, out, err := openMidi(daemonCfg)
	if err != nil {
		midiWarning = fmt.Sprintf("MIDI output unavailable, notes are only logged: %v", err)
		log.Info(midiWarning, logger.Warning)
		port, out = openNullMidi(daemonCfg)
	}
	if out.Callback() {
		wg.Add(1)
		go drainQueue(ctx, &wg, out, daemonCfg.Strummer.PollSleep)
	}

	sched := scheduler.New(port.Output, nil, store.Channel())
	strummer := strum.New(nil)
	p := pipeline.New(store, strummer, sched, nil)
	hub := control.NewHub(store, p, p.States(), 64)
	if midiWarning != "" {
		p.Warn(midiWarning)
	}

	wg.Add(1)
	go logBroadcasts(&wg, hub)
	if *stdin {
		go readControl(ctx, hub, os.Stdin)
	}

	if daemonCfg.MIDI.Driver == config.DriverRtMidi {
		if in := resolveInput(store.Settings().MidiInputID, port); in != nil {
			wg.Add(1)
			go runMidiInput(ctx, &wg, in, p)
		} else {
			log.Info("no MIDI input available", logger.Info)
		}
	}

	manager := &deviceManager{cfg: daemonCfg, store: store, devicePath: *devicePath, warn: p.Warn}
	wg.Add(1)
	go watchConfig(ctx, &wg, store, p, manager)

	reports := make(chan hid.Report, 64)
	go manager.run(ctx, reports)

	log.Info("Strummer started", logger.Info)
	p.Run(ctx, reports)
	cancel()
	// manager closes reports once it stops
	for range reports {
	}

	sched.Close()
	err = out.Close()
	if err != nil {
		log.Info(fmt.Sprintf("closing MIDI output failed: %v", err), logger.Warning)
	}
	if out.Callback() {
		out.Drain(func(ev midi.Event) {
			log.Info(ev.String(), logger.Midi, zap.String("port", out.Name()))
		})
	}
	<-hub.Done()

	signal.Stop(sigs)
	close(sigs)
	wg.Wait()
	if daemonCfg.MIDI.Driver == config.DriverRtMidi {
		rtmidi.CloseDriver()
	}

	score := out.Score()
	log.Info(fmt.Sprintf("notes emitted: %d, events: %d, dropped: %d, log entries dropped: %d",
		score.NotesEmitted, score.EventsEmitted, score.Dropped, logger.Dropped()), logger.Info)
	exit(0)
}
