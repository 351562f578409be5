package rtmidi

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gethiox/strummer/internal/pkg/logger"
	"github.com/gethiox/strummer/internal/pkg/midi"
	"github.com/gethiox/strummer/internal/pkg/midi/driver"
	gomidi "gitlab.com/gomidi/midi/v2"
	"go.uber.org/zap"

	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // registers itself as default driver
)

var log = logger.GetLogger()

type MIDIInPortFromDriver struct {
	c        chan []byte
	port     drivers.In
	stopFunc func()
}

func (in *MIDIInPortFromDriver) Name() string {
	return in.port.String()
}

func (in *MIDIInPortFromDriver) Open() error {
	err := in.port.Open()
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}

	stopFn, err := in.port.Listen(func(msg []byte, milliseconds int32) {
		var data = make([]byte, len(msg))
		copy(data, msg)
		select {
		case in.c <- data:
		default:
			log.Info("midi input buffer full, dropping message", logger.Warning, zap.String("port", in.Name()))
		}
	}, drivers.ListenConfig{
		OnErr: func(err error) {
			log.Info(fmt.Sprintf("midi input error: %v", err), logger.Warning, zap.String("port", in.Name()))
		},
	})

	if err != nil {
		return fmt.Errorf("failed to listen on device: %w", err)
	}
	in.stopFunc = stopFn
	return nil
}

func (in *MIDIInPortFromDriver) Close() error {
	if in.stopFunc != nil {
		in.stopFunc()
	}
	close(in.c)
	return in.port.Close()
}

func (in *MIDIInPortFromDriver) ReceiveChannel() <-chan []byte {
	return in.c
}

func NewMIDIInPortFromDriver(in drivers.In) driver.MIDIIn {
	return &MIDIInPortFromDriver{
		c:    make(chan []byte, 16),
		port: in,
	}
}

type MIDIOutPortFromDriver struct {
	mu     sync.Mutex
	port   drivers.Out
	opened bool
}

func (out *MIDIOutPortFromDriver) Name() string {
	return out.port.String()
}

func (out *MIDIOutPortFromDriver) Open() error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.opened {
		return nil
	}

	err := out.port.Open()
	if err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}
	out.opened = true
	return nil
}

func (out *MIDIOutPortFromDriver) Close() error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if !out.opened {
		return nil
	}
	out.opened = false
	return out.port.Close()
}

func (out *MIDIOutPortFromDriver) Send(ev midi.Event) error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if !out.opened {
		return driver.ErrPortClosed
	}
	return out.port.Send(ev)
}

func NewMIDIOutPortFromDriver(out drivers.Out) driver.MIDIOut {
	return &MIDIOutPortFromDriver{port: out}
}

func rtmidiDriver() (*rtmididrv.Driver, error) {
	d := drivers.Get()
	if d == nil {
		return nil, fmt.Errorf("failed to get driver")
	}

	rtmidid, ok := d.(*rtmididrv.Driver)
	if !ok {
		return nil, fmt.Errorf("failed to convert driver")
	}
	return rtmidid, nil
}

// CreatePort opens virtual port pair other applications can connect to.
func CreatePort(name string) (driver.Port, error) {
	rtmidid, err := rtmidiDriver()
	if err != nil {
		return driver.Port{}, err
	}

	in, err := rtmidid.OpenVirtualIn(name)
	if err != nil {
		return driver.Port{}, fmt.Errorf("failed to open virtual input: %v", err)
	}
	out, err := rtmidid.OpenVirtualOut(name)
	if err != nil {
		return driver.Port{}, fmt.Errorf("failed to open virtual output: %v", err)
	}

	return driver.Port{
		Input:  NewMIDIInPortFromDriver(in),
		Output: NewMIDIOutPortFromDriver(out),
	}, nil
}

func GetPorts() []driver.Port {
	inPorts := gomidi.GetInPorts()
	outPorts := gomidi.GetOutPorts()

	var ports = make([]driver.Port, 0)

	var totalUniquePortNumbers = make(map[int]struct{})

	var inPortMap = make(map[int]int)
	var outPortMap = make(map[int]int)

	for i, p := range inPorts {
		inPortMap[p.Number()] = i
		totalUniquePortNumbers[p.Number()] = struct{}{}
	}

	for i, p := range outPorts {
		outPortMap[p.Number()] = i
		totalUniquePortNumbers[p.Number()] = struct{}{}
	}

	var sortedPortNumbers = make([]int, 0, len(totalUniquePortNumbers))

	for pNumber := range totalUniquePortNumbers {
		sortedPortNumbers = append(sortedPortNumbers, pNumber)
	}

	sort.Ints(sortedPortNumbers)

	for _, pNumber := range sortedPortNumbers {
		var port driver.Port

		if idx, ok := inPortMap[pNumber]; ok {
			port.Input = NewMIDIInPortFromDriver(inPorts[idx])
		}
		if idx, ok := outPortMap[pNumber]; ok {
			port.Output = NewMIDIOutPortFromDriver(outPorts[idx])
		}

		ports = append(ports, port)
	}

	return ports
}

// PickMidiPort returns midi port pair for n-th (idx) device.
func PickMidiPort(idx int) (driver.Port, error) {
	midiPorts := GetPorts()

	if idx < 0 || idx+1 > len(midiPorts) {
		return driver.Port{}, fmt.Errorf("midi port ID %d doesn't exist (%d available)", idx, len(midiPorts))
	}

	return midiPorts[idx], nil
}

// FindMidiPort returns first port whose name contains given fragment.
func FindMidiPort(name string) (driver.Port, error) {
	for _, p := range GetPorts() {
		if strings.Contains(p.String(), name) {
			return p, nil
		}
	}
	return driver.Port{}, fmt.Errorf("midi port \"%s\" not found", name)
}

func CloseDriver() {
	gomidi.CloseDriver()
}
