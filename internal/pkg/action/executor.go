package action

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gethiox/strummer/internal/pkg/config"
	"github.com/gethiox/strummer/internal/pkg/logger"
	"github.com/gethiox/strummer/internal/pkg/theory"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

type NoteSetter interface {
	SetNotes(notes []theory.Note, lowerSpread, upperSpread int)
}

// Outcome tells what executed action changed.
type Outcome struct {
	Notes  bool
	Config bool
}

// Executor applies actions to config store and strummer, it owns progression state.
type Executor struct {
	mu          sync.Mutex
	store       *config.Store
	strummer    NoteSetter
	progression theory.Progression
}

func NewExecutor(store *config.Store, strummer NoteSetter) *Executor {
	return &Executor{store: store, strummer: strummer}
}

// ExecuteRaw parses definition and executes it. Failures are logged and leave state unchanged.
func (e *Executor) ExecuteRaw(raw interface{}, source string) (Outcome, error) {
	a, err := Parse(raw)
	if err != nil {
		log.Info(fmt.Sprintf("%s: %v", source, err), logger.Warning)
		return Outcome{}, err
	}
	return e.Execute(a, source)
}

func (e *Executor) Execute(a Action, source string) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var outcome Outcome
	var err error

	switch a := a.(type) {
	case None:
		return Outcome{}, nil

	case ToggleRepeater:
		active := !e.store.NoteRepeater().Active
		e.store.Set("noteRepeater.active", active)
		log.Info(fmt.Sprintf("%s toggled repeater: %s", source, onOff(active)), logger.Action)
		outcome.Config = true

	case Transpose:
		current := e.store.Transpose()
		if current.Active && current.Semitones == a.Semitones {
			e.store.Patch(map[string]interface{}{"transpose.active": false, "transpose.semitones": 0})
			log.Info(fmt.Sprintf("%s disabled transpose", source), logger.Action)
		} else {
			e.store.Patch(map[string]interface{}{"transpose.active": true, "transpose.semitones": a.Semitones})
			log.Info(fmt.Sprintf("%s enabled transpose: %+d semitones (%s)", source, a.Semitones, theory.IntervalName(a.Semitones)), logger.Action)
		}
		outcome.Config = true

	case SetNotes:
		e.setNotes(a.Notes)
		log.Info(fmt.Sprintf("%s set strum notes: [%s]", source, joinNotes(a.Notes)), logger.Action)
		outcome.Notes = true

	case SetChord:
		err = e.applyChord(a.Chord, a.Octave)
		if err == nil {
			log.Info(fmt.Sprintf("%s set strum chord: %s", source, a.Chord), logger.Action)
			outcome.Notes = true
		}

	case SetProgressionIndex:
		err = e.ensureProgression(a.Progression)
		if err != nil {
			break
		}
		index := e.progression.SetIndex(a.Index)
		err = e.applyCurrentChord(a.Octave)
		if err == nil {
			chord, _ := e.progression.Current()
			log.Info(fmt.Sprintf("%s set progression \"%s\" to index %d: %s", source, a.Progression, index, chord), logger.Action)
			outcome.Notes = true
		}

	case IncrementProgression:
		err = e.ensureProgression(a.Progression)
		if err != nil {
			break
		}
		index := e.progression.Increment(a.Amount)
		err = e.applyCurrentChord(a.Octave)
		if err == nil {
			chord, _ := e.progression.Current()
			log.Info(fmt.Sprintf("%s moved progression \"%s\" by %d to index %d: %s", source, a.Progression, a.Amount, index, chord), logger.Action)
			outcome.Notes = true
		}

	default:
		err = fmt.Errorf("%w: unsupported action %T", ErrInvalidAction, a)
	}

	if err != nil {
		log.Info(fmt.Sprintf("%s: %s failed: %v", source, a.Name(), err), logger.Warning, zap.String("action", a.Name()))
		return Outcome{}, err
	}
	return outcome, nil
}

// Progression reports current progression state.
func (e *Executor) Progression() theory.ProgressionInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progression.Info()
}

func (e *Executor) ensureProgression(name string) error {
	if e.progression.Name() == name {
		return nil
	}
	return e.progression.Load(name)
}

func (e *Executor) applyCurrentChord(octave int) error {
	chord, ok := e.progression.Current()
	if !ok {
		return fmt.Errorf("no chord in progression \"%s\"", e.progression.Name())
	}
	return e.applyChord(chord, octave)
}

func (e *Executor) applyChord(chord string, octave int) error {
	notes, err := theory.ParseChord(chord, octave)
	if err != nil {
		return err
	}
	e.setNotes(notes)
	return nil
}

func (e *Executor) setNotes(notes []theory.Note) {
	strumming := e.store.Strumming()
	e.strummer.SetNotes(notes, strumming.LowerNoteSpread, strumming.UpperNoteSpread)
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func joinNotes(notes []theory.Note) string {
	var names = make([]string, len(notes))
	for i, n := range notes {
		names[i] = n.String()
	}
	return strings.Join(names, ", ")
}
