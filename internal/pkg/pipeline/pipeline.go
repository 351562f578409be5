// Package pipeline runs the per-sample flow: decoded report, effects, buttons, strummer, MIDI.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gethiox/strummer/internal/pkg/action"
	"github.com/gethiox/strummer/internal/pkg/config"
	"github.com/gethiox/strummer/internal/pkg/effect"
	"github.com/gethiox/strummer/internal/pkg/hid"
	"github.com/gethiox/strummer/internal/pkg/logger"
	"github.com/gethiox/strummer/internal/pkg/midi/scheduler"
	"github.com/gethiox/strummer/internal/pkg/strum"
	"github.com/gethiox/strummer/internal/pkg/theory"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const stateBuffer = 64

// Scheduler is the part of MIDI scheduler used by the sample loop.
type Scheduler interface {
	SendNote(note theory.Note, velocity int, duration time.Duration)
	SendRawNote(midiNote, velocity int, channel *int, duration time.Duration)
	ReleaseNotes(notes []theory.Note)
	PitchBend(value float64)
	SetChannel(channel *int)
}

type StateType string

const (
	NotesState   StateType = "notes"
	WarningState StateType = "warning"
	ConfigState  StateType = "config"
)

// State is published whenever something observers care about changes.
type State struct {
	Type      StateType
	Notes     []theory.Note
	Message   string
	Timestamp time.Time
}

const (
	primaryButton   = "primaryButtonPressed"
	secondaryButton = "secondaryButtonPressed"
)

type Pipeline struct {
	store    *config.Store
	strummer *strum.Strummer
	sched    Scheduler
	exec     *action.Executor
	now      func() time.Time

	// sample loop state, touched only by HandleSample
	version    uint64
	repeater   scheduler.Repeater
	lastStrum  []theory.Note
	prevStylus map[string]bool
	prevTablet map[int]bool

	statesMu sync.Mutex
	states   chan State
	closed   bool
}

// New applies initial configuration: strummer parameters, strum channel and initial notes.
func New(store *config.Store, strummer *strum.Strummer, sched Scheduler, now func() time.Time) *Pipeline {
	if now == nil {
		now = time.Now
	}
	p := &Pipeline{
		store:      store,
		strummer:   strummer,
		sched:      sched,
		exec:       action.NewExecutor(store, strummer),
		now:        now,
		prevStylus: make(map[string]bool),
		prevTablet: make(map[int]bool),
		states:     make(chan State, stateBuffer),
	}
	p.reconfigure()

	strumming := store.Strumming()
	if len(strumming.InitialNotes) > 0 {
		notes, err := theory.ParseNotes(strumming.InitialNotes)
		if err != nil {
			p.Warn(fmt.Sprintf("invalid initial notes: %v", err))
		} else {
			strummer.SetNotes(notes, strumming.LowerNoteSpread, strumming.UpperNoteSpread)
		}
	}
	return p
}

// States delivers published updates, slow consumers lose updates instead of stalling samples.
func (p *Pipeline) States() <-chan State {
	return p.states
}

func (p *Pipeline) Executor() *action.Executor {
	return p.exec
}

func (p *Pipeline) Notes() []theory.Note {
	return p.strummer.Notes()
}

func (p *Pipeline) Progression() theory.ProgressionInfo {
	return p.exec.Progression()
}

func (p *Pipeline) publish(s State) {
	s.Timestamp = p.now()
	p.statesMu.Lock()
	defer p.statesMu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.states <- s:
	default:
		log.Info(fmt.Sprintf("state channel full, dropping %s update", s.Type), logger.Debug)
	}
}

func (p *Pipeline) publishNotes() {
	p.publish(State{Type: NotesState, Notes: p.strummer.Notes()})
}

func (p *Pipeline) Warn(message string) {
	log.Info(message, logger.Warning)
	p.publish(State{Type: WarningState, Message: message})
}

// ConfigChanged tells observers the document was modified outside of the sample loop.
func (p *Pipeline) ConfigChanged() {
	p.publish(State{Type: ConfigState})
}

// SetNotes replaces strummer notes, e.g. with keys held on a MIDI keyboard.
func (p *Pipeline) SetNotes(notes []theory.Note) {
	strumming := p.store.Strumming()
	p.strummer.SetNotes(notes, strumming.LowerNoteSpread, strumming.UpperNoteSpread)
	log.Info(fmt.Sprintf("strum notes set: %v", notes), logger.Notes)
	p.publishNotes()
}

// Execute runs an action from outside of the sample loop.
func (p *Pipeline) Execute(raw interface{}, source string) error {
	outcome, err := p.exec.ExecuteRaw(raw, source)
	if err != nil {
		p.Warn(err.Error())
		return err
	}
	p.applyOutcome(outcome)
	return nil
}

func (p *Pipeline) applyOutcome(o action.Outcome) {
	if o.Notes {
		p.publishNotes()
	}
	if o.Config {
		p.publish(State{Type: ConfigState})
	}
}

func (p *Pipeline) reconfigure() {
	settings := p.store.Settings()
	p.strummer.Configure(settings.Strumming.PressureThreshold, settings.Strumming.PluckVelocityScale)
	p.sched.SetChannel(settings.Channel())
	p.version = p.store.Version()
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func clampVelocity(v int) int {
	if v < 1 {
		return 1
	}
	if v > 127 {
		return 127
	}
	return v
}

func (p *Pipeline) handleButtons(sample hid.Sample, settings config.Settings) {
	for _, button := range []struct {
		key    string
		action interface{}
		source string
	}{
		{primaryButton, settings.StylusButtons.PrimaryButtonAction, "primary button"},
		{secondaryButton, settings.StylusButtons.SecondaryButtonAction, "secondary button"},
	} {
		pressed := sample.Bool(button.key)
		if pressed && !p.prevStylus[button.key] && settings.StylusButtons.Active {
			p.execute(button.action, button.source)
		}
		p.prevStylus[button.key] = pressed
	}

	inButtonState := sample.State() == hid.StateButtons
	for i := 1; i <= hid.DefaultButtonCount; i++ {
		pressed := inButtonState && sample.Bool("button"+strconv.Itoa(i))
		if pressed && !p.prevTablet[i] {
			if raw, ok := settings.TabletButtons[strconv.Itoa(i)]; ok {
				p.execute(raw, fmt.Sprintf("tablet button %d", i))
			}
		}
		p.prevTablet[i] = pressed
	}
}

func (p *Pipeline) execute(raw interface{}, source string) {
	outcome, err := p.exec.ExecuteRaw(raw, source)
	if err != nil {
		p.publish(State{Type: WarningState, Message: err.Error()})
		return
	}
	p.applyOutcome(outcome)
}

// HandleSample processes single decoded report.
func (p *Pipeline) HandleSample(sample hid.Sample) {
	if p.store.Version() != p.version {
		p.reconfigure()
	}
	settings := p.store.Settings()
	now := p.now()

	inputs := effect.Inputs(sample)
	if settings.AllowPitchBend {
		p.sched.PitchBend(effect.Apply(settings.PitchBend, inputs))
	}
	duration := effect.Apply(settings.NoteDuration, inputs)
	velocity := effect.Apply(settings.NoteVelocity, inputs)

	p.handleButtons(sample, settings)
	if p.store.Version() != p.version {
		p.reconfigure()
		settings = p.store.Settings()
	}

	x, _ := sample.Float("x")
	y, _ := sample.Float("y")
	pressure, _ := sample.Float("pressure")
	tiltX, _ := sample.Float("tiltX")
	tiltY, _ := sample.Float("tiltY")
	in := strum.Input{
		X: x, Y: y,
		Pressure: pressure,
		TiltX:    tiltX, TiltY: tiltY,
		PrimaryPressed:   sample.Bool(primaryButton),
		SecondaryPressed: sample.Bool(secondaryButton),
	}
	if settings.StylusButtons.Active {
		in.PrimarySemitones = settings.StylusButtons.PrimarySemitones
		in.SecondarySemitones = settings.StylusButtons.SecondarySemitones
	}
	result := p.strummer.StrumInput(in)

	offset := settings.Transpose.Offset()
	switch result.Kind {
	case strum.Strum:
		var played = make([]theory.Note, 0, len(result.Notes))
		for _, nv := range result.Notes {
			if nv.Velocity <= 0 {
				continue
			}
			note := nv.Note.Transpose(offset)
			p.sched.SendNote(note, nv.Velocity, seconds(duration))
			played = append(played, note)
		}
		log.Info(result.String(), logger.Notes, zap.Float64("duration", duration))
		p.repeater.Hold(played, now)
		p.lastStrum = append(p.lastStrum, played...)

	case strum.Release:
		p.repeater.Release()
		if settings.Strumming.ReleaseOnLift && len(p.lastStrum) > 0 {
			p.sched.ReleaseNotes(p.lastStrum)
		}
		p.lastStrum = p.lastStrum[:0]

		release := settings.StrumRelease
		if release.Active && release.MidiNote != nil && duration <= release.MaxDuration {
			multiplier := release.VelocityMultiplier
			v := clampVelocity(int(float64(result.Velocity) * multiplier))
			p.sched.SendRawNote(*release.MidiNote, v, release.MidiChannel, seconds(duration))
		}
	}

	if notes, v, ok := p.repeater.Due(now, seconds(duration), velocity, settings.NoteRepeater); ok {
		for _, note := range notes {
			p.sched.SendNote(note, v, seconds(duration))
		}
		log.Info(fmt.Sprintf("repeat %v (%d)", notes, v), logger.Notes)
	}
}

// Run consumes reports until the channel closes or context is cancelled.
func (p *Pipeline) Run(ctx context.Context, reports <-chan hid.Report) {
	defer p.close()
	for {
		select {
		case <-ctx.Done():
			return
		case report, ok := <-reports:
			if !ok {
				return
			}
			log.Info(fmt.Sprintf("%v", map[string]interface{}(report.Sample)), logger.Samples)
			p.HandleSample(report.Sample)
		}
	}
}

func (p *Pipeline) close() {
	p.statesMu.Lock()
	defer p.statesMu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.states)
}
