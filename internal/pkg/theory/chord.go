package theory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gethiox/strummer/internal/pkg/logger"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

var ErrUnknownChordRoot = errors.New("unknown chord root")

var (
	majorTriad = []int{0, 4, 7}
	minorTriad = []int{0, 3, 7}
)

// chordIntervals maps quality suffix to semitones from root.
var chordIntervals = map[string][]int{
	"":      majorTriad,
	"maj":   majorTriad,
	"M":     majorTriad,
	"m":     minorTriad,
	"min":   minorTriad,
	"dim":   {0, 3, 6},
	"aug":   {0, 4, 8},
	"+":     {0, 4, 8},
	"sus2":  {0, 2, 7},
	"sus4":  {0, 5, 7},
	"sus":   {0, 5, 7},
	"5":     {0, 7},
	"6":     {0, 4, 7, 9},
	"m6":    {0, 3, 7, 9},
	"7":     {0, 4, 7, 10},
	"maj7":  {0, 4, 7, 11},
	"M7":    {0, 4, 7, 11},
	"m7":    {0, 3, 7, 10},
	"min7":  {0, 3, 7, 10},
	"m7b5":  {0, 3, 6, 10},
	"dim7":  {0, 3, 6, 9},
	"mMaj7": {0, 3, 7, 11},
	"7sus4": {0, 5, 7, 10},
	"9":     {0, 4, 7, 10, 14},
	"maj9":  {0, 4, 7, 11, 14},
	"m9":    {0, 3, 7, 10, 14},
	"add9":  {0, 4, 7, 14},
	"madd9": {0, 3, 7, 14},
	"add11": {0, 4, 7, 17},
}

// ChordQualities lists every recognised quality suffix.
func ChordQualities() []string {
	qualities := make([]string, 0, len(chordIntervals))
	for q := range chordIntervals {
		qualities = append(qualities, q)
	}
	return qualities
}

// SplitChord separates root ("C", "F#", "Bb") from quality suffix.
func SplitChord(name string) (root, quality string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	root = strings.ToUpper(name[:1])
	rest := name[1:]
	if len(rest) > 0 && (rest[0] == '#' || rest[0] == 'b') {
		root += rest[:1]
		rest = rest[1:]
	}
	return root, rest
}

// ParseChord resolves chord name into ordered notes starting at given octave.
// Unknown quality falls back to major triad.
func ParseChord(name string, octave int) ([]Note, error) {
	root, quality := SplitChord(name)
	rootIdx, ok := IndexOfNotation(root)
	if !ok {
		return nil, fmt.Errorf("%w: \"%s\"", ErrUnknownChordRoot, name)
	}

	intervals, ok := chordIntervals[quality]
	if !ok {
		log.Info("unknown chord quality, using major triad", logger.Warning,
			zap.String("chord", name), zap.String("quality", quality))
		intervals = majorTriad
	}

	base := Note{Notation: root, Octave: octave}
	if _, odd := oddNotations[root]; odd {
		base = FromMidi(octave*NotesPerOctave+rootIdx, false)
	}
	notes := make([]Note, 0, len(intervals))
	for _, interval := range intervals {
		notes = append(notes, base.Transpose(interval))
	}
	return notes, nil
}
