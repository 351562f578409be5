package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gethiox/strummer/internal/pkg/midi"
	"github.com/gethiox/strummer/internal/pkg/theory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type waiter struct {
	deadline time.Time
	c        chan time.Time
}

type fakeClock struct {
	sync.Mutex
	now     time.Time
	waiters map[*waiter]struct{}
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0), waiters: make(map[*waiter]struct{})}
}

func (c *fakeClock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) (<-chan time.Time, func() bool) {
	c.Lock()
	defer c.Unlock()
	w := &waiter{deadline: c.now.Add(d), c: make(chan time.Time, 1)}
	if d <= 0 {
		w.c <- c.now
		return w.c, func() bool { return false }
	}
	c.waiters[w] = struct{}{}
	return w.c, func() bool {
		c.Lock()
		defer c.Unlock()
		_, ok := c.waiters[w]
		delete(c.waiters, w)
		return ok
	}
}

func (c *fakeClock) Advance(d time.Duration) {
	c.Lock()
	defer c.Unlock()
	c.now = c.now.Add(d)
	for w := range c.waiters {
		if !w.deadline.After(c.now) {
			w.c <- c.now
			delete(c.waiters, w)
		}
	}
}

type fakeOut struct {
	events chan midi.Event
	err    error
}

func newFakeOut() *fakeOut {
	return &fakeOut{events: make(chan midi.Event, 256)}
}

func (f *fakeOut) Send(ev midi.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events <- ev
	return nil
}

func readN(ch chan midi.Event, n int) ([]midi.Event, error) {
	events := make([]midi.Event, 0, n)

	count := 0
	for {
		select {
		case event := <-ch:
			events = append(events, event)
			count++
		case <-time.After(time.Millisecond * 10):
			if count != n {
				return events, fmt.Errorf("expected %d events, got %d", n, count)
			}
			return events, nil
		}
	}
}

var c4 = theory.Note{Notation: "C", Octave: 4}

func channel(ch int) *int { return &ch }

func TestSendNoteReleasesAfterDuration(t *testing.T) {
	out, clock := newFakeOut(), newFakeClock()
	s := New(out, clock, channel(1))
	defer s.Close()

	s.SendNote(c4, 100, 100*time.Millisecond)
	events, err := readN(out.events, 1)
	require.NoError(t, err)
	assert.Equal(t, midi.Event{0x90, 48, 100}, events[0])
	assert.Equal(t, 1, s.Active())

	clock.Advance(99 * time.Millisecond)
	_, err = readN(out.events, 0)
	require.NoError(t, err)

	clock.Advance(time.Millisecond)
	events, err = readN(out.events, 1)
	require.NoError(t, err)
	assert.Equal(t, midi.Event{0x80, 48, 0x40}, events[0])
	assert.Equal(t, 0, s.Active())
}

func TestRetriggerReplacesRelease(t *testing.T) {
	out, clock := newFakeOut(), newFakeClock()
	s := New(out, clock, channel(2))
	defer s.Close()

	s.SendNote(c4, 90, 100*time.Millisecond)
	clock.Advance(50 * time.Millisecond)
	s.SendNote(c4, 80, 100*time.Millisecond)

	events, err := readN(out.events, 2)
	require.NoError(t, err)
	assert.Equal(t, midi.Event{0x91, 48, 90}, events[0])
	assert.Equal(t, midi.Event{0x91, 48, 80}, events[1])

	clock.Advance(60 * time.Millisecond)
	_, err = readN(out.events, 0)
	require.NoError(t, err, "superseded release must not fire")

	clock.Advance(40 * time.Millisecond)
	events, err = readN(out.events, 1)
	require.NoError(t, err)
	assert.Equal(t, midi.Event{0x81, 48, 0x40}, events[0])

	clock.Advance(time.Second)
	_, err = readN(out.events, 0)
	require.NoError(t, err)
}

func TestBroadcastChannels(t *testing.T) {
	out, clock := newFakeOut(), newFakeClock()
	s := New(out, clock, nil)
	defer s.Close()

	s.SendNote(c4, 64, time.Second)
	events, err := readN(out.events, 16)
	require.NoError(t, err)
	for i, ev := range events {
		assert.Equal(t, midi.NoteOn|uint8(i), ev[0])
	}
	assert.Equal(t, 1, s.Active(), "one entry per note and channel set")

	clock.Advance(time.Second)
	_, err = readN(out.events, 16)
	require.NoError(t, err)
}

func TestSendRawNoteChannelResolution(t *testing.T) {
	out, clock := newFakeOut(), newFakeClock()
	s := New(out, clock, channel(3))
	defer s.Close()

	s.SendRawNote(38, 50, channel(10), time.Second)
	s.SendRawNote(38, 50, nil, time.Second)
	events, err := readN(out.events, 2)
	require.NoError(t, err)
	assert.Equal(t, midi.Event{0x99, 38, 50}, events[0])
	assert.Equal(t, midi.Event{0x92, 38, 50}, events[1])
	assert.Equal(t, 2, s.Active(), "different channel sets are different keys")

	s.SendRawNote(200, 50, nil, time.Second)
	_, err = readN(out.events, 0)
	require.NoError(t, err)
}

func TestReleaseNotes(t *testing.T) {
	out, clock := newFakeOut(), newFakeClock()
	s := New(out, clock, channel(1))
	defer s.Close()

	e4 := theory.Note{Notation: "E", Octave: 4}
	s.SendNote(c4, 100, time.Second)
	s.SendNote(e4, 100, time.Second)
	_, err := readN(out.events, 2)
	require.NoError(t, err)

	s.ReleaseNotes([]theory.Note{c4, e4})
	events, err := readN(out.events, 2)
	require.NoError(t, err)
	assert.Equal(t, midi.Event{0x80, 48, 0x40}, events[0])
	assert.Equal(t, midi.Event{0x80, 52, 0x40}, events[1])
	assert.Equal(t, 0, s.Active())

	clock.Advance(2 * time.Second)
	_, err = readN(out.events, 0)
	require.NoError(t, err)
}

func TestPitchBend(t *testing.T) {
	out, clock := newFakeOut(), newFakeClock()
	s := New(out, clock, channel(4))
	defer s.Close()

	s.PitchBend(0.5)
	events, err := readN(out.events, 1)
	require.NoError(t, err)
	assert.Equal(t, midi.Event{0xE3, 0x00, 0x60}, events[0])
	assert.Equal(t, 0, s.Active())
}

func TestCloseReleasesPending(t *testing.T) {
	out, clock := newFakeOut(), newFakeClock()
	s := New(out, clock, channel(1))

	s.SendNote(c4, 100, time.Second)
	_, err := readN(out.events, 1)
	require.NoError(t, err)

	s.Close()
	events, err := readN(out.events, 1)
	require.NoError(t, err)
	assert.Equal(t, midi.NoteOff, events[0].Type())

	s.SendNote(c4, 100, time.Second)
	s.PitchBend(1)
	clock.Advance(2 * time.Second)
	_, err = readN(out.events, 0)
	require.NoError(t, err, "nothing is emitted after close")

	s.Close()
}

func TestTransportErrorsAreSwallowed(t *testing.T) {
	out, clock := newFakeOut(), newFakeClock()
	out.err = errors.New("port closed")
	s := New(out, clock, channel(1))
	defer s.Close()

	assert.NotPanics(t, func() {
		s.SendNote(c4, 100, time.Millisecond)
		s.PitchBend(0)
	})
	assert.Equal(t, 1, s.Active())
}

func TestConcurrentTriggers(t *testing.T) {
	out, clock := newFakeOut(), newFakeClock()
	out.events = make(chan midi.Event, 10000)
	s := New(out, clock, channel(1))

	wg := sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.SendNote(theory.Note{Notation: "C", Octave: 3 + i%3}, 100, time.Duration(j)*time.Millisecond)
				clock.Advance(time.Millisecond)
			}
		}(i)
	}
	wg.Wait()
	s.Close()
	assert.Equal(t, 0, s.Active())

	var on, off int
	for len(out.events) > 0 {
		switch (<-out.events).Type() {
		case midi.NoteOn:
			on++
		case midi.NoteOff:
			off++
		}
	}
	assert.Equal(t, 400, on)
	assert.LessOrEqual(t, off, on)
	assert.GreaterOrEqual(t, off, 3)
}
