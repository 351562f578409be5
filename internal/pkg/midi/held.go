package midi

import (
	"sort"
	"sync"

	"github.com/gethiox/strummer/internal/pkg/theory"
	gomidi "gitlab.com/gomidi/midi/v2"
)

// HeldNotes tracks keys currently pressed on a MIDI input device.
type HeldNotes struct {
	mu   sync.Mutex
	keys map[uint8]struct{}
}

func NewHeldNotes() *HeldNotes {
	return &HeldNotes{keys: make(map[uint8]struct{})}
}

// Handle applies raw message and reports whether set of held keys changed.
// Note-on with zero velocity counts as note-off.
func (h *HeldNotes) Handle(raw []byte) bool {
	msg := gomidi.Message(raw)
	var ch, key, vel uint8

	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if _, ok := h.keys[key]; ok {
			return false
		}
		h.keys[key] = struct{}{}
		return true
	case msg.GetNoteEnd(&ch, &key):
		if _, ok := h.keys[key]; !ok {
			return false
		}
		delete(h.keys, key)
		return true
	}
	return false
}

func (h *HeldNotes) Keys() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	var keys = make([]int, 0, len(h.keys))
	for k := range h.keys {
		keys = append(keys, int(k))
	}
	sort.Ints(keys)
	return keys
}

// Notes returns held keys as notes, octave follows MIDI convention where key 60 is C4.
func (h *HeldNotes) Notes() []theory.Note {
	keys := h.Keys()
	var notes = make([]theory.Note, 0, len(keys))
	for _, k := range keys {
		notes = append(notes, theory.Note{
			Notation: theory.MidiToNotation(k),
			Octave:   k/theory.NotesPerOctave - 1,
		})
	}
	return notes
}

func (h *HeldNotes) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.keys = make(map[uint8]struct{})
}
