// Package queue decouples event producers from a slow transport.
package queue

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gethiox/strummer/internal/pkg/logger"
	"github.com/gethiox/strummer/internal/pkg/midi"
	"github.com/gethiox/strummer/internal/pkg/midi/driver"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const DefaultSize = 256

type Score struct {
	NotesEmitted  uint64
	EventsEmitted uint64
	Dropped       uint64
	Failed        uint64
}

// Queue is a MIDIOut buffering events for a slower consumer. With wrapped output
// events are forwarded from a single goroutine, without one the consumer pulls
// them with Drain, typically from an audio graph callback.
// Send never blocks: when the buffer is full the event is dropped and counted.
type Queue struct {
	out driver.MIDIOut

	mu     sync.Mutex
	c      chan midi.Event
	done   chan struct{}
	opened bool
	size   int

	notes, events, dropped, failed uint64
}

func New(out driver.MIDIOut, size int) *Queue {
	if size <= 0 {
		size = DefaultSize
	}
	return &Queue{out: out, size: size}
}

// NewCallback creates queue drained by its consumer.
func NewCallback(size int) *Queue {
	return New(nil, size)
}

// Callback tells if events are pulled with Drain instead of forwarded.
func (q *Queue) Callback() bool {
	return q.out == nil
}

func (q *Queue) Name() string {
	if q.out == nil {
		return "queue"
	}
	return q.out.Name()
}

func (q *Queue) Open() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.opened {
		return nil
	}
	q.c = make(chan midi.Event, q.size)
	q.done = make(chan struct{})
	q.opened = true
	if q.out == nil {
		close(q.done)
		return nil
	}
	if err := q.out.Open(); err != nil {
		q.opened = false
		return err
	}
	go q.process(q.c, q.done)
	return nil
}

func (q *Queue) process(c <-chan midi.Event, done chan<- struct{}) {
	defer close(done)
	for ev := range c {
		if err := q.out.Send(ev); err != nil {
			atomic.AddUint64(&q.failed, 1)
			log.Info(fmt.Sprintf("midi output error: %v", err), logger.Warning, zap.String("port", q.out.Name()))
			continue
		}
		atomic.AddUint64(&q.events, 1)
		if ev.Type() == midi.NoteOn {
			atomic.AddUint64(&q.notes, 1)
		}
	}
	log.Info("Processing output midi events stopped", logger.Debug, zap.String("port", q.out.Name()))
}

func (q *Queue) Send(ev midi.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.opened {
		return driver.ErrPortClosed
	}
	select {
	case q.c <- ev:
		return nil
	default:
		atomic.AddUint64(&q.dropped, 1)
		return fmt.Errorf("output queue full, dropped %s", ev)
	}
}

// Close waits for queued events to be written before closing wrapped output.
func (q *Queue) Close() error {
	q.mu.Lock()
	if !q.opened {
		q.mu.Unlock()
		return nil
	}
	q.opened = false
	close(q.c)
	done := q.done
	q.mu.Unlock()

	<-done
	if q.out == nil {
		return nil
	}
	return q.out.Close()
}

// Drain hands every buffered event to fn without blocking and returns their count.
func (q *Queue) Drain(fn func(ev midi.Event)) int {
	q.mu.Lock()
	c := q.c
	q.mu.Unlock()
	if c == nil || q.out != nil {
		return 0
	}

	var n int
	for {
		select {
		case ev, ok := <-c:
			if !ok {
				return n
			}
			fn(ev)
			n++
			atomic.AddUint64(&q.events, 1)
			if ev.Type() == midi.NoteOn {
				atomic.AddUint64(&q.notes, 1)
			}
		default:
			return n
		}
	}
}

func (q *Queue) Score() Score {
	return Score{
		NotesEmitted:  atomic.LoadUint64(&q.notes),
		EventsEmitted: atomic.LoadUint64(&q.events),
		Dropped:       atomic.LoadUint64(&q.dropped),
		Failed:        atomic.LoadUint64(&q.failed),
	}
}
