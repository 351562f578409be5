package theory

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	NotesPerOctave = 12
	DefaultOctave  = 4
)

var ErrUnknownNotation = errors.New("unknown notation")

var (
	sharpNotations = [NotesPerOctave]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	flatNotations  = [NotesPerOctave]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

	// theoretically valid spellings that land on a natural pitch class
	oddNotations = map[string]string{
		"B#": "C",
		"Cb": "C",
		"E#": "F",
		"Fb": "F",
	}
)

var intervalToString = map[int]string{
	0:  "Perfect unison",
	1:  "Minor second",
	2:  "Major second",
	3:  "Minor third",
	4:  "Major third",
	5:  "Perfect fourth",
	6:  "Tritone",
	7:  "Perfect fifth",
	8:  "Minor sixth",
	9:  "Major sixth",
	10: "Minor seventh",
	11: "Major seventh",
	12: "Perfect octave",
}

// IntervalName returns a human-readable name of interval given in semitones.
func IntervalName(semitones int) string {
	name, ok := intervalToString[semitones]
	if !ok {
		return fmt.Sprintf("%d semitones", semitones)
	}
	return name
}

func SharpNotations() []string { return sharpNotations[:] }
func FlatNotations() []string  { return flatNotations[:] }

// Note is an immutable pitch description, transposition returns a new value.
type Note struct {
	Notation  string `json:"notation" yaml:"notation"`
	Octave    int    `json:"octave" yaml:"octave"`
	Secondary bool   `json:"secondary" yaml:"secondary"`
}

func (n Note) String() string {
	return fmt.Sprintf("%s%d", n.Notation, n.Octave)
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func floorDiv(a, b int) int {
	return int(math.Floor(float64(a) / float64(b)))
}

// IndexOfNotation resolves pitch class of either spelling, odd spellings are corrected first.
func IndexOfNotation(notation string) (int, bool) {
	for i, n := range sharpNotations {
		if n == notation {
			return i, true
		}
	}
	for i, n := range flatNotations {
		if n == notation {
			return i, true
		}
	}
	if corrected, ok := oddNotations[notation]; ok {
		return IndexOfNotation(corrected)
	}
	return -1, false
}

// NotationAtIndex returns notation for given pitch class, any integer is accepted.
func NotationAtIndex(index int, preferFlat bool) string {
	index = mod(index, NotesPerOctave)
	if preferFlat {
		return flatNotations[index]
	}
	return sharpNotations[index]
}

// MidiToNotation returns sharp spelling of pitch class of given note number.
func MidiToNotation(midi int) string {
	return NotationAtIndex(midi, false)
}

// FromMidi converts a flat note number (octave*12 + pitch class) back to a Note.
func FromMidi(midi int, preferFlat bool) Note {
	return Note{
		Notation: NotationAtIndex(midi, preferFlat),
		Octave:   floorDiv(midi, NotesPerOctave),
	}
}

func (n Note) prefersFlat() bool {
	return len(n.Notation) > 1 && strings.Contains(n.Notation[1:], "b")
}

// Midi returns octave*12 + pitch class, unknown notations count as C.
func (n Note) Midi() int {
	idx, ok := IndexOfNotation(n.Notation)
	if !ok {
		idx = 0
	}
	return n.Octave*NotesPerOctave + idx
}

// Transpose shifts the note keeping its sharp/flat spelling preference.
func (n Note) Transpose(semitones int) Note {
	if semitones == 0 {
		return n
	}
	t := FromMidi(n.Midi()+semitones, n.prefersFlat())
	t.Secondary = n.Secondary
	return t
}

// Frequency in Hz, A4 = 440.
func (n Note) Frequency() float64 {
	idx, ok := IndexOfNotation(n.Notation)
	if !ok {
		return 0
	}
	semitonesFromA4 := idx - 9 + (n.Octave-DefaultOctave)*NotesPerOctave
	return 440 * math.Pow(2, float64(semitonesFromA4)/NotesPerOctave)
}

var notationRegex = regexp.MustCompile(`^(?P<pitch>[a-gA-G][#b]?)(?P<octave>-?\d+)?$`)

// ParseNotation parses strings like "C", "c#3", "Bb-1", octave defaults to 4.
func ParseNotation(s string) (Note, error) {
	match := notationRegex.FindStringSubmatch(strings.TrimSpace(s))
	if len(match) == 0 {
		return Note{}, fmt.Errorf("%w: \"%s\"", ErrUnknownNotation, s)
	}

	pitch := strings.ToUpper(match[1][:1]) + match[1][1:]
	if _, ok := IndexOfNotation(pitch); !ok {
		return Note{}, fmt.Errorf("%w: \"%s\"", ErrUnknownNotation, s)
	}

	octave := DefaultOctave
	if match[2] != "" {
		o, err := strconv.Atoi(match[2])
		if err != nil {
			return Note{}, fmt.Errorf("parsing octave failed: %w", err)
		}
		octave = o
	}
	return Note{Notation: pitch, Octave: octave}, nil
}

func ParseNotes(notations []string) ([]Note, error) {
	notes := make([]Note, 0, len(notations))
	for _, s := range notations {
		n, err := ParseNotation(s)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// NotationToMidi parses the notation and returns its flat note number.
func NotationToMidi(s string) (int, error) {
	n, err := ParseNotation(s)
	if err != nil {
		return 0, err
	}
	return n.Midi(), nil
}

// Sort orders notes by octave, then by pitch class.
func Sort(notes []Note) []Note {
	sorted := make([]Note, len(notes))
	copy(sorted, notes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Midi() < sorted[j].Midi()
	})
	return sorted
}

// FillNoteSpread extends notes with secondary notes below and above,
// wrapping one octave every len(notes) synthetic notes.
func FillNoteSpread(notes []Note, lowerSpread, upperSpread int) []Note {
	if len(notes) == 0 {
		return []Note{}
	}

	var upper = make([]Note, 0, upperSpread)
	for c := 0; c < upperSpread; c++ {
		src := notes[c%len(notes)]
		upper = append(upper, Note{
			Notation:  src.Notation,
			Octave:    src.Octave + c/len(notes) + 1,
			Secondary: true,
		})
	}

	var lower = make([]Note, 0, lowerSpread)
	for c := 0; c < lowerSpread; c++ {
		src := notes[len(notes)-1-c%len(notes)]
		lower = append(lower, Note{
			Notation:  src.Notation,
			Octave:    src.Octave - c/len(notes) - 1,
			Secondary: true,
		})
	}

	result := make([]Note, 0, lowerSpread+len(notes)+upperSpread)
	result = append(result, lower...)
	result = append(result, notes...)
	result = append(result, upper...)
	return result
}
