// Package strum implements the gesture engine turning stylus motion into plucked strings.
package strum

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gethiox/strummer/internal/pkg/theory"
)

const (
	DefaultPressureThreshold = 0.1
	DefaultVelocityScale     = 25.0

	minTapVelocity = 20
	maxVelocity    = 127
	// smallest time delta used for pressure rate computation, in seconds
	epsilon = 0.001
)

type Kind int

const (
	None Kind = iota
	Strum
	Release
)

func (k Kind) String() string {
	switch k {
	case Strum:
		return "strum"
	case Release:
		return "release"
	default:
		return "none"
	}
}

type State int

const (
	Idle State = iota
	Engaged
)

type NoteVelocity struct {
	Note     theory.Note
	Velocity int
}

type Result struct {
	Kind  Kind
	Notes []NoteVelocity
	// Velocity is the last emitted strum velocity, for release results as well.
	Velocity int
}

func (r Result) String() string {
	if r.Kind != Strum {
		return r.Kind.String()
	}
	var parts = make([]string, 0, len(r.Notes))
	for _, n := range r.Notes {
		parts = append(parts, fmt.Sprintf("%s(%d)", n.Note, n.Velocity))
	}
	return fmt.Sprintf("strum [%s]", strings.Join(parts, " "))
}

// Input is a single sample of the extended strum form.
type Input struct {
	X, Y               float64
	Pressure           float64
	TiltX, TiltY       float64
	PrimaryPressed     bool
	SecondaryPressed   bool
	PrimarySemitones   int
	SecondarySemitones int
}

func (i Input) semitones() int {
	var s int
	if i.PrimaryPressed {
		s += i.PrimarySemitones
	}
	if i.SecondaryPressed {
		s += i.SecondarySemitones
	}
	return s
}

// Strummer tracks which virtual string was plucked last.
// SetNotes may be called concurrently with Strum.
type Strummer struct {
	mu  sync.Mutex
	now func() time.Time

	width, height float64
	notes         []theory.Note

	pressureThreshold float64
	velocityScale     float64

	lastX             float64
	lastStrummedIndex int
	lastPressure      float64
	lastTimestamp     time.Time
	pressureVelocity  float64
	lastVelocity      int
}

// New creates strummer using given clock, nil means time.Now.
func New(now func() time.Time) *Strummer {
	if now == nil {
		now = time.Now
	}
	return &Strummer{
		now:               now,
		width:             1,
		height:            1,
		pressureThreshold: DefaultPressureThreshold,
		velocityScale:     DefaultVelocityScale,
		lastX:             -1,
		lastStrummedIndex: -1,
	}
}

func (s *Strummer) Configure(pressureThreshold, velocityScale float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pressureThreshold = pressureThreshold
	s.velocityScale = velocityScale
}

// SetNotes replaces active strings with notes extended by spread, gesture state is kept.
func (s *Strummer) SetNotes(notes []theory.Note, lowerSpread, upperSpread int) {
	filled := theory.FillNoteSpread(notes, lowerSpread, upperSpread)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = filled
	// shorter set must not leave the glide start past the last string
	if s.lastStrummedIndex > len(filled)-1 {
		s.lastStrummedIndex = len(filled) - 1
	}
	s.setBounds(s.width, s.height)
}

func (s *Strummer) Notes() []theory.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]theory.Note{}, s.notes...)
}

func (s *Strummer) SetBounds(width, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setBounds(width, height)
}

func (s *Strummer) setBounds(width, height float64) {
	s.width = width
	s.height = height
}

// Clear forgets gesture state, next pressed sample counts as a fresh tap.
func (s *Strummer) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastStrummedIndex = -1
	s.lastPressure = 0
	s.lastTimestamp = time.Time{}
	s.pressureVelocity = 0
}

func (s *Strummer) LastStrummedIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStrummedIndex
}

func (s *Strummer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastPressure >= s.pressureThreshold {
		return Engaged
	}
	return Idle
}

// Strum is the two-argument form of StrumInput.
func (s *Strummer) Strum(x, pressure float64) Result {
	return s.StrumInput(Input{X: x, Pressure: pressure})
}

func (s *Strummer) StrumInput(in Input) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.notes) == 0 {
		return Result{}
	}

	stringWidth := s.width / float64(len(s.notes))
	index := int(math.Floor(in.X / stringWidth))
	if index > len(s.notes)-1 {
		index = len(s.notes) - 1
	}
	if index < 0 {
		index = 0
	}

	now := s.now()
	delta := epsilon
	if !s.lastTimestamp.IsZero() {
		delta = math.Max(now.Sub(s.lastTimestamp).Seconds(), epsilon)
	}
	s.pressureVelocity = (in.Pressure - s.lastPressure) / delta

	pressureDown := s.lastPressure < s.pressureThreshold && in.Pressure >= s.pressureThreshold
	pressureUp := s.lastPressure >= s.pressureThreshold && in.Pressure < s.pressureThreshold

	if pressureUp {
		s.lastStrummedIndex = -1
		s.lastPressure = in.Pressure
		s.lastTimestamp = now
		s.pressureVelocity = 0
		return Result{Kind: Release, Velocity: s.lastVelocity}
	}

	s.lastX = in.X
	s.lastPressure = in.Pressure
	s.lastTimestamp = now

	if in.Pressure < s.pressureThreshold || (index == s.lastStrummedIndex && !pressureDown) {
		return Result{}
	}

	var played []NoteVelocity
	if s.lastStrummedIndex == -1 || pressureDown {
		calculated := int(math.Max(0, s.pressureVelocity) * s.velocityScale)
		floor := int(math.Max(minTapVelocity, float64(int(in.Pressure*maxVelocity*0.5))))
		velocity := int(math.Max(float64(floor), math.Min(maxVelocity, float64(calculated))))
		played = append(played, NoteVelocity{Note: s.notes[index], Velocity: velocity})
	} else {
		velocity := int(in.Pressure * maxVelocity)
		if s.lastStrummedIndex < index {
			for i := s.lastStrummedIndex + 1; i <= index; i++ {
				played = append(played, NoteVelocity{Note: s.notes[i], Velocity: velocity})
			}
		} else {
			for i := s.lastStrummedIndex - 1; i >= index; i-- {
				played = append(played, NoteVelocity{Note: s.notes[i], Velocity: velocity})
			}
		}
	}
	s.lastStrummedIndex = index

	if semitones := in.semitones(); semitones != 0 {
		for i := range played {
			played[i].Note = played[i].Note.Transpose(semitones)
		}
	}
	s.lastVelocity = played[len(played)-1].Velocity

	return Result{Kind: Strum, Notes: played, Velocity: s.lastVelocity}
}
