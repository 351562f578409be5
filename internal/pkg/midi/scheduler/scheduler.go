// Package scheduler emits note-on messages and releases them after their duration.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/gethiox/strummer/internal/pkg/logger"
	"github.com/gethiox/strummer/internal/pkg/midi"
	"github.com/gethiox/strummer/internal/pkg/theory"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

type Sender interface {
	Send(ev midi.Event) error
}

type Clock interface {
	Now() time.Time
	// After returns a channel receiving once d elapses and a function cancelling it.
	After(d time.Duration) (<-chan time.Time, func() bool)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

var RealClock Clock = realClock{}

// Scheduler owns the table of pending releases. Every emission happens under one lock
// so a release never overtakes a newer trigger of the same note.
type Scheduler struct {
	mu       sync.Mutex
	out      Sender
	clock    Clock
	channels midi.ChannelSet
	table    *table
	closed   bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// New starts release loop, channel is the configured 1-based strum channel or nil for all channels.
func New(out Sender, clock Clock, channel *int) *Scheduler {
	if clock == nil {
		clock = RealClock
	}
	s := &Scheduler{
		out:      out,
		clock:    clock,
		channels: midi.ChannelsFor(channel),
		table:    newTable(),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Scheduler) SetChannel(channel *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = midi.ChannelsFor(channel)
}

func (s *Scheduler) Channels() midi.ChannelSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels
}

func (s *Scheduler) emit(ev midi.Event) {
	err := s.out.Send(ev)
	if err != nil {
		log.Info(fmt.Sprintf("sending midi event failed: %v", err), logger.Warning, zap.String("event", ev.String()))
		return
	}
	log.Info(ev.String(), logger.Midi)
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func clampVelocity(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}

func validNote(note int) bool {
	return note >= 0 && note <= 127
}

// SendNote plays note on strum channels and arms its release after duration.
func (s *Scheduler) SendNote(note theory.Note, velocity int, duration time.Duration) {
	midiNote := note.Midi()
	if !validNote(midiNote) {
		log.Info("note out of midi range, skipping", logger.Warning, zap.String("note", note.String()), zap.Int("midi", midiNote))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trigger(key{note: uint8(midiNote), channels: s.channels}, velocity, duration)
}

// SendRawNote plays note number on given 1-based channel, falling back to strum channels.
func (s *Scheduler) SendRawNote(midiNote, velocity int, channel *int, duration time.Duration) {
	if !validNote(midiNote) {
		log.Info("note out of midi range, skipping", logger.Warning, zap.Int("midi", midiNote))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	channels := s.channels
	if channel != nil {
		channels = midi.ChannelsFor(channel)
	}
	s.trigger(key{note: uint8(midiNote), channels: channels}, velocity, duration)
}

func (s *Scheduler) trigger(k key, velocity int, duration time.Duration) {
	if s.closed {
		return
	}
	// stale release must not cut re-triggered note
	s.table.cancel(k)

	for _, ch := range k.channels.List() {
		s.emit(midi.NoteEvent(midi.NoteOn, ch, k.note, clampVelocity(velocity)))
	}

	now := s.clock.Now()
	s.table.arm(k, now, now.Add(duration))
	s.notify()
}

func (s *Scheduler) release(k key) {
	for _, ch := range k.channels.List() {
		s.emit(midi.NoteEvent(midi.NoteOff, ch, k.note, midi.ReleaseVelocity))
	}
}

// ReleaseNotes releases notes right away, bypassing their pending duration.
func (s *Scheduler) ReleaseNotes(notes []theory.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, n := range notes {
		midiNote := n.Midi()
		if !validNote(midiNote) {
			continue
		}
		k := key{note: uint8(midiNote), channels: s.channels}
		s.table.cancel(k)
		s.release(k)
	}
	s.notify()
}

// PitchBend sends bend value in range -1.0..1.0 on strum channels.
func (s *Scheduler) PitchBend(value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, ch := range s.channels.List() {
		s.emit(midi.PitchBendEvent(ch, value))
	}
}

// Active returns amount of notes waiting for release.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.len()
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		now := s.clock.Now()
		for _, k := range s.table.expire(now) {
			s.release(k)
		}
		deadline, pending := s.table.next()
		s.mu.Unlock()

		var timer <-chan time.Time
		var stop = func() bool { return false }
		if pending {
			timer, stop = s.clock.After(deadline.Sub(now))
		}

		select {
		case <-timer:
		case <-s.wake:
			stop()
		case <-s.done:
			stop()
			return
		}
	}
}

// Close releases every pending note immediately and stops the release loop.
// Nothing is emitted after Close returns.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := s.table.drain()
	for _, k := range pending {
		s.release(k)
	}
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	log.Info("Scheduler closed", logger.Debug, zap.Int("released", len(pending)))
}
