// Package action parses button bindings and applies them to the live state.
package action

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gethiox/strummer/internal/pkg/theory"
)

var (
	ErrInvalidAction = errors.New("invalid action")
	ErrUnknownAction = errors.New("unknown action")
)

// Action names as used in configuration documents.
const (
	NameNone                 = "none"
	NameToggleRepeater       = "toggle-repeater"
	NameTranspose            = "transpose"
	NameSetNotes             = "set-strum-notes"
	NameSetChord             = "set-strum-chord"
	NameSetProgressionIndex  = "set-chord-in-progression"
	NameIncrementProgression = "increment-chord-in-progression"
)

// Action is one of the types declared in this package.
type Action interface {
	Name() string
	action()
}

type None struct{}

type ToggleRepeater struct{}

// Transpose toggles transposition: same semitones turns it off, different ones switch over.
type Transpose struct {
	Semitones int
}

type SetNotes struct {
	Notes []theory.Note
}

type SetChord struct {
	Chord  string
	Octave int
}

type SetProgressionIndex struct {
	Progression string
	Index       int
	Octave      int
}

type IncrementProgression struct {
	Progression string
	Amount      int
	Octave      int
}

func (None) Name() string                 { return NameNone }
func (ToggleRepeater) Name() string       { return NameToggleRepeater }
func (Transpose) Name() string            { return NameTranspose }
func (SetNotes) Name() string             { return NameSetNotes }
func (SetChord) Name() string             { return NameSetChord }
func (SetProgressionIndex) Name() string  { return NameSetProgressionIndex }
func (IncrementProgression) Name() string { return NameIncrementProgression }

func (None) action()                 {}
func (ToggleRepeater) action()       {}
func (Transpose) action()            {}
func (SetNotes) action()             {}
func (SetChord) action()             {}
func (SetProgressionIndex) action()  {}
func (IncrementProgression) action() {}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	default:
		return 0, false
	}
}

func toList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case []string:
		out := make([]interface{}, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// optionalInt reads params[idx] when present and numeric, otherwise returns def.
func optionalInt(params []interface{}, idx, def int) int {
	if len(params) <= idx {
		return def
	}
	if i, ok := toInt(params[idx]); ok {
		return i
	}
	return def
}

// Parse accepts "name", ["name", params...] or nil. Empty, nil and "none" parse to None.
func Parse(raw interface{}) (Action, error) {
	var name string
	var params []interface{}

	switch v := raw.(type) {
	case nil:
		return None{}, nil
	case string:
		name = v
	default:
		list, ok := toList(raw)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected definition %v (%T)", ErrInvalidAction, raw, raw)
		}
		if len(list) == 0 {
			return None{}, nil
		}
		name, ok = list[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: action name must be a string, got %v", ErrInvalidAction, list[0])
		}
		params = list[1:]
	}

	name = strings.TrimSpace(name)
	switch name {
	case "", NameNone:
		return None{}, nil

	case NameToggleRepeater:
		return ToggleRepeater{}, nil

	case NameTranspose:
		if len(params) == 0 {
			return nil, fmt.Errorf("%w: %s requires semitones parameter", ErrInvalidAction, name)
		}
		semitones, ok := toInt(params[0])
		if !ok {
			return nil, fmt.Errorf("%w: %s semitones must be a number, got %v", ErrInvalidAction, name, params[0])
		}
		return Transpose{Semitones: semitones}, nil

	case NameSetNotes:
		if len(params) == 0 {
			return nil, fmt.Errorf("%w: %s requires an array of notes", ErrInvalidAction, name)
		}
		list, ok := toList(params[0])
		if !ok || len(list) == 0 {
			return nil, fmt.Errorf("%w: %s requires at least one note", ErrInvalidAction, name)
		}
		var notations = make([]string, 0, len(list))
		for _, n := range list {
			s, ok := n.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s requires notes to be strings, got %v", ErrInvalidAction, name, n)
			}
			notations = append(notations, s)
		}
		notes, err := theory.ParseNotes(notations)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAction, name, err)
		}
		return SetNotes{Notes: notes}, nil

	case NameSetChord:
		if len(params) == 0 {
			return nil, fmt.Errorf("%w: %s requires chord notation", ErrInvalidAction, name)
		}
		chord, ok := params[0].(string)
		if !ok || chord == "" {
			return nil, fmt.Errorf("%w: %s chord must be a string, got %v", ErrInvalidAction, name, params[0])
		}
		return SetChord{Chord: chord, Octave: optionalInt(params, 1, theory.DefaultOctave)}, nil

	case NameSetProgressionIndex:
		if len(params) < 2 {
			return nil, fmt.Errorf("%w: %s requires progression name and index", ErrInvalidAction, name)
		}
		progression, ok := params[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s progression name must be a string, got %v", ErrInvalidAction, name, params[0])
		}
		index, ok := toInt(params[1])
		if !ok {
			return nil, fmt.Errorf("%w: %s index must be a number, got %v", ErrInvalidAction, name, params[1])
		}
		return SetProgressionIndex{
			Progression: progression,
			Index:       index,
			Octave:      optionalInt(params, 2, theory.DefaultOctave),
		}, nil

	case NameIncrementProgression:
		if len(params) == 0 {
			return nil, fmt.Errorf("%w: %s requires progression name", ErrInvalidAction, name)
		}
		progression, ok := params[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s progression name must be a string, got %v", ErrInvalidAction, name, params[0])
		}
		return IncrementProgression{
			Progression: progression,
			Amount:      optionalInt(params, 1, 1),
			Octave:      optionalInt(params, 2, theory.DefaultOctave),
		}, nil
	}

	return nil, fmt.Errorf("%w: \"%s\"", ErrUnknownAction, name)
}

// Names lists every action accepted by Parse.
func Names() []string {
	return []string{
		NameToggleRepeater,
		NameTranspose,
		NameSetNotes,
		NameSetChord,
		NameSetProgressionIndex,
		NameIncrementProgression,
	}
}
