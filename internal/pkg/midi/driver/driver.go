package driver

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gethiox/strummer/internal/pkg/midi"
)

var ErrPortClosed = errors.New("port closed")

type MIDIPort interface {
	Name() string
	Open() error
	Close() error
}

type MIDIIn interface {
	MIDIPort
	ReceiveChannel() <-chan []byte
}

// MIDIOut sends events to a transport. Send must not block the caller for long,
// it is called from the sample loop and from release timers.
type MIDIOut interface {
	MIDIPort
	Send(ev midi.Event) error
}

type Port struct {
	// specific port may be nil if unavailable
	Input  MIDIIn
	Output MIDIOut
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (p *Port) String() string {
	switch {
	case p.Input == nil && p.Output == nil:
		return "None"
	case p.Input == nil:
		return fmt.Sprintf("%s (Output only)", p.Output.Name())
	case p.Output == nil:
		return fmt.Sprintf("%s (Input only)", p.Input.Name())
	}

	inName, outName := p.Input.Name(), p.Output.Name()

	var commonPart string

	for i := 0; i < min(len(inName), len(outName)); i++ {
		inR, outR := inName[i], outName[i]

		if inR != outR {
			break
		}
		commonPart += string(inR)
	}
	return fmt.Sprintf("%s (Input/Output)", commonPart)
}

// Null drops every event, only counting and logging them.
type Null struct {
	mu   sync.Mutex
	sent int
}

func (n *Null) Name() string { return "null" }
func (n *Null) Open() error  { return nil }
func (n *Null) Close() error { return nil }

func (n *Null) Send(ev midi.Event) error {
	n.mu.Lock()
	n.sent++
	n.mu.Unlock()
	return nil
}

func (n *Null) Sent() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent
}

// Multi fans events out to every output, one failing output does not stop the others.
type Multi []MIDIOut

func (m Multi) Name() string {
	var names = make([]string, 0, len(m))
	for _, out := range m {
		names = append(names, out.Name())
	}
	return strings.Join(names, ", ")
}

func (m Multi) Open() error {
	var errs []string
	for _, out := range m {
		if err := out.Open(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", out.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("opening outputs failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (m Multi) Close() error {
	var errs []string
	for _, out := range m {
		if err := out.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", out.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing outputs failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (m Multi) Send(ev midi.Event) error {
	var errs []string
	for _, out := range m {
		if err := out.Send(ev); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", out.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("sending failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
