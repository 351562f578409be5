package theory

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownKey = errors.New("unknown key")

var (
	majorSteps = [7]int{0, 2, 4, 5, 7, 9, 11}
	minorSteps = [7]int{0, 2, 3, 5, 7, 8, 10}
)

// Keys holds diatonic scales for every spelling, "C" is C major and "Cm" is C minor.
// Generated once at init, never mutated afterwards.
var keys map[string][]string

func init() {
	keys = make(map[string][]string)
	roots := append(SharpNotations(), FlatNotations()...)
	for _, root := range roots {
		if _, ok := keys[root]; ok {
			continue
		}
		major, _ := KeySignature(root, true, nil)
		minor, _ := KeySignature(root, false, nil)
		keys[root] = major
		keys[root+"m"] = minor
	}
}

// Key returns a copy of precomputed scale for given key name.
func Key(name string) ([]string, bool) {
	scale, ok := keys[name]
	if !ok {
		return nil, false
	}
	return append([]string{}, scale...), true
}

func normalizeRoot(root string) string {
	root = strings.TrimSpace(root)
	if root == "" {
		return root
	}
	return strings.ToUpper(root[:1]) + root[1:]
}

// KeySignature produces 7-note diatonic scale starting on root.
// With octave set, notes before the chromatic wrap carry octave and the rest octave+1.
func KeySignature(root string, major bool, octave *int) ([]string, error) {
	root = normalizeRoot(root)
	if corrected, ok := oddNotations[root]; ok {
		root = corrected
	}

	var table [NotesPerOctave]string
	var start = -1
	for i, n := range sharpNotations {
		if n == root {
			table, start = sharpNotations, i
		}
	}
	if start < 0 {
		for i, n := range flatNotations {
			if n == root {
				table, start = flatNotations, i
			}
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: \"%s\"", ErrUnknownKey, root)
	}

	doubled := make([]string, 0, NotesPerOctave*2)
	for c := 0; c < NotesPerOctave*2; c++ {
		name := table[c%NotesPerOctave]
		if octave != nil {
			name = fmt.Sprintf("%s%d", name, *octave+c/NotesPerOctave)
		}
		doubled = append(doubled, name)
	}
	doubled = doubled[start:]

	steps := majorSteps
	if !major {
		steps = minorSteps
	}
	scale := make([]string, 0, len(steps))
	for _, s := range steps {
		scale = append(scale, doubled[s])
	}
	return scale, nil
}
