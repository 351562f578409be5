package hid

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gethiox/strummer/internal/pkg/logger"
	"github.com/holoplot/go-evdev"
	"go.uber.org/zap"
)

// Sample keys produced from evdev events, same as the default report mappings.
const (
	primaryButtonKey   = "primaryButtonPressed"
	secondaryButtonKey = "secondaryButtonPressed"
	padButtons         = 8
)

// EventAssembler collects evdev event frames of a tablet (pen and pad nodes) into samples.
type EventAssembler struct {
	ranges map[evdev.EvCode]evdev.AbsInfo
	abs    map[evdev.EvCode]int32
	keys   map[evdev.EvCode]bool
}

func NewEventAssembler(ranges map[evdev.EvCode]evdev.AbsInfo) *EventAssembler {
	if ranges == nil {
		ranges = make(map[evdev.EvCode]evdev.AbsInfo)
	}
	return &EventAssembler{
		ranges: ranges,
		abs:    make(map[evdev.EvCode]int32),
		keys:   make(map[evdev.EvCode]bool),
	}
}

// Feed applies a single event, a sample is returned for every SYN_REPORT.
func (a *EventAssembler) Feed(ev evdev.InputEvent) (Sample, bool) {
	switch ev.Type {
	case evdev.EV_ABS:
		a.abs[ev.Code] = ev.Value
	case evdev.EV_KEY:
		if ev.Value == 2 { // repeat
			return nil, false
		}
		a.keys[ev.Code] = ev.Value != 0
	case evdev.EV_SYN:
		if ev.Code == evdev.SYN_REPORT {
			return a.Sample(), true
		}
	}
	return nil, false
}

func (a *EventAssembler) unipolar(code evdev.EvCode) (float64, bool) {
	v, ok := a.abs[code]
	if !ok {
		return 0, false
	}
	r, ok := a.ranges[code]
	if !ok {
		return 0, false
	}
	return clamp(normalize(float64(v), float64(r.Minimum), float64(r.Maximum)), 0, 1), true
}

func (a *EventAssembler) bipolar(code evdev.EvCode) (float64, bool) {
	v, ok := a.abs[code]
	if !ok {
		return 0, false
	}
	r, ok := a.ranges[code]
	if !ok {
		return 0, false
	}
	switch {
	case v > 0 && r.Maximum > 0:
		return clamp(float64(v)/float64(r.Maximum), -1, 1), true
	case v < 0 && r.Minimum < 0:
		return clamp(-float64(v)/float64(r.Minimum), -1, 1), true
	}
	return 0, true
}

func (a *EventAssembler) anyPadButton() bool {
	for i := 0; i < padButtons; i++ {
		if a.keys[evdev.BTN_0+evdev.EvCode(i)] {
			return true
		}
	}
	return false
}

// Sample snapshots current state of the tablet.
func (a *EventAssembler) Sample() Sample {
	var sample = make(Sample, 8+padButtons)

	inProximity := a.keys[evdev.BTN_TOOL_PEN]
	switch {
	case inProximity && a.keys[evdev.BTN_TOUCH]:
		sample[StateKey] = "contact"
	case inProximity:
		sample[StateKey] = "hover"
	case a.anyPadButton():
		sample[StateKey] = StateButtons
	default:
		sample[StateKey] = "none"
	}

	if sample.State() == StateButtons {
		for i := 0; i < padButtons; i++ {
			sample[fmt.Sprintf("button%d", i+1)] = a.keys[evdev.BTN_0+evdev.EvCode(i)]
		}
		return sample
	}

	if x, ok := a.unipolar(evdev.ABS_X); ok {
		sample["x"] = x
	}
	if y, ok := a.unipolar(evdev.ABS_Y); ok {
		sample["y"] = y
	}
	if p, ok := a.unipolar(evdev.ABS_PRESSURE); ok {
		sample["pressure"] = p
	}
	if tx, ok := a.bipolar(evdev.ABS_TILT_X); ok {
		sample["tiltX"] = tx
	}
	if ty, ok := a.bipolar(evdev.ABS_TILT_Y); ok {
		sample["tiltY"] = ty
	}
	if inProximity {
		sample[primaryButtonKey] = a.keys[evdev.BTN_STYLUS]
		sample[secondaryButtonKey] = a.keys[evdev.BTN_STYLUS2]
	}
	return sample
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// MatchEvdev selects event nodes whose name contains given product.
func MatchEvdev(paths []evdev.InputPath, product string) []string {
	var matched []string
	for _, p := range paths {
		name := strings.Trim(p.Name, "\x00")
		if product == "" || strings.Contains(strings.ToLower(name), strings.ToLower(product)) {
			matched = append(matched, p.Path)
		}
	}
	return matched
}

// FindEvdev lists event nodes of a tablet, usually a pen node and a pad node.
func FindEvdev(filter Filter) ([]string, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("listing input devices failed: %w", err)
	}
	matched := MatchEvdev(paths, filter.Product)
	if len(matched) == 0 || filter.Product == "" {
		return nil, fmt.Errorf("%w: no input device named \"%s\"", ErrDeviceNotFound, filter.Product)
	}
	return matched, nil
}

// EvdevTablet reads event nodes of one tablet through the kernel input layer,
// for tablets which hidraw node is not accessible or already handled by a driver.
type EvdevTablet struct {
	name    string
	devices []*evdev.InputDevice
	grab    bool
}

func OpenEvdev(paths []string, grab bool) (*EvdevTablet, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no event nodes given")
	}
	t := &EvdevTablet{grab: grab}
	for _, path := range paths {
		dev, err := evdev.Open(path)
		if err != nil {
			for _, d := range t.devices {
				_ = d.Close()
			}
			return nil, fmt.Errorf("opening %s failed: %w", path, err)
		}
		t.devices = append(t.devices, dev)
	}
	t.name = filepath.Base(paths[0])
	return t, nil
}

func (t *EvdevTablet) Name() string {
	return t.name
}

func (t *EvdevTablet) ranges() map[evdev.EvCode]evdev.AbsInfo {
	var ranges = make(map[evdev.EvCode]evdev.AbsInfo)
	for _, dev := range t.devices {
		infos, err := dev.AbsInfos()
		if err != nil {
			log.Info(fmt.Sprintf("reading axis ranges failed: %v", err), logger.Warning, zap.String("device", dev.Path()))
			continue
		}
		for code, info := range infos {
			if _, ok := ranges[code]; !ok {
				ranges[code] = info
			}
		}
	}
	return ranges
}

func (t *EvdevTablet) readFrames(ctx context.Context, dev *evdev.InputDevice, frames chan<- []evdev.InputEvent) {
	name, _ := dev.Name()
	name = strings.Trim(name, "\x00")

	if t.grab {
		err := dev.Grab()
		if err != nil {
			log.Info(fmt.Sprintf("grabbing device failed: %v", err), logger.Warning, zap.String("device", name))
		} else {
			log.Info("Grabbing device for exclusive usage", logger.Debug, zap.String("device", name))
			defer func() { _ = dev.Ungrab() }()
		}
	}
	log.Info("Reading input events", logger.Debug, zap.String("device", name))

	var frame []evdev.InputEvent
	for {
		ev, err := dev.ReadOne()
		if err != nil {
			if ctx.Err() == nil {
				log.Info(fmt.Sprintf("device disconnected: %v", err), logger.Warning, zap.String("device", name))
			}
			return
		}
		frame = append(frame, *ev)
		if ev.Type != evdev.EV_SYN || ev.Code != evdev.SYN_REPORT {
			continue
		}
		select {
		case frames <- frame:
		case <-ctx.Done():
			return
		}
		frame = nil
	}
}

// Process reads all nodes until ctx is cancelled or any of them disconnects.
// Returned channel is closed when reading stops, devices are closed afterwards.
func (t *EvdevTablet) Process(ctx context.Context) <-chan Report {
	var reports = make(chan Report, 64)
	var frames = make(chan []evdev.InputEvent, 64)

	ctx, cancel := context.WithCancel(ctx)
	assembler := NewEventAssembler(t.ranges())

	// ReadOne blocks, closing devices is the only way to interrupt it
	go func() {
		<-ctx.Done()
		for _, dev := range t.devices {
			err := dev.Close()
			if err != nil && !errors.Is(err, os.ErrClosed) {
				log.Info(fmt.Sprintf("device close failed: %v", err), logger.Warning, zap.String("device", dev.Path()))
			}
		}
	}()

	wg := sync.WaitGroup{}
	for _, dev := range t.devices {
		wg.Add(1)
		go func(dev *evdev.InputDevice) {
			defer wg.Done()
			defer cancel()
			t.readFrames(ctx, dev, frames)
		}(dev)
	}
	go func() {
		wg.Wait()
		close(frames)
	}()

	go func() {
		defer close(reports)
		for frame := range frames {
			for _, ev := range frame {
				sample, ok := assembler.Feed(ev)
				if !ok {
					continue
				}
				select {
				case reports <- Report{Sample: sample}:
				case <-ctx.Done():
				}
			}
		}
		log.Info("Reading input events finished", logger.Debug, zap.String("device", t.name))
	}()

	return reports
}
