package theory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNotation(t *testing.T) {
	for _, tc := range []struct {
		input    string
		expected Note
	}{
		{input: "C", expected: Note{Notation: "C", Octave: 4}},
		{input: "c#3", expected: Note{Notation: "C#", Octave: 3}},
		{input: "Bb-1", expected: Note{Notation: "Bb", Octave: -1}},
		{input: "g10", expected: Note{Notation: "G", Octave: 10}},
		{input: " E4 ", expected: Note{Notation: "E", Octave: 4}},
		{input: "B#2", expected: Note{Notation: "B#", Octave: 2}},
	} {
		t.Run(tc.input, func(t *testing.T) {
			n, err := ParseNotation(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, n)
		})
	}

	for _, input := range []string{"", "H4", "C##4", "4C", "Cx"} {
		t.Run("invalid "+input, func(t *testing.T) {
			_, err := ParseNotation(input)
			assert.ErrorIs(t, err, ErrUnknownNotation)
		})
	}
}

func TestIndexOfNotation(t *testing.T) {
	for _, tc := range []struct {
		notation string
		index    int
	}{
		{"C", 0}, {"C#", 1}, {"Db", 1}, {"Eb", 3}, {"F#", 6}, {"Gb", 6}, {"Bb", 10}, {"B", 11},
		{"B#", 0}, {"Cb", 0}, {"E#", 5}, {"Fb", 5},
	} {
		t.Run(tc.notation, func(t *testing.T) {
			idx, ok := IndexOfNotation(tc.notation)
			assert.True(t, ok)
			assert.Equal(t, tc.index, idx)
		})
	}

	_, ok := IndexOfNotation("X")
	assert.False(t, ok)
}

func TestMidiRoundTrip(t *testing.T) {
	for n := 0; n < NotesPerOctave; n++ {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			midi, err := NotationToMidi(MidiToNotation(n) + "4")
			require.NoError(t, err)
			assert.Equal(t, n, midi%NotesPerOctave)
		})
	}
}

func TestTranspose(t *testing.T) {
	for _, tc := range []struct {
		note      Note
		semitones int
		expected  Note
	}{
		{Note{Notation: "C", Octave: 4}, 0, Note{Notation: "C", Octave: 4}},
		{Note{Notation: "C", Octave: 4}, 7, Note{Notation: "G", Octave: 4}},
		{Note{Notation: "B", Octave: 4}, 1, Note{Notation: "C", Octave: 5}},
		{Note{Notation: "C", Octave: 4}, -1, Note{Notation: "B", Octave: 3}},
		{Note{Notation: "C", Octave: 4}, -13, Note{Notation: "B", Octave: 2}},
		{Note{Notation: "C#", Octave: 4}, 2, Note{Notation: "D#", Octave: 4}},
		{Note{Notation: "Db", Octave: 4}, 2, Note{Notation: "Eb", Octave: 4}},
		{Note{Notation: "E", Octave: 4, Secondary: true}, 12, Note{Notation: "E", Octave: 5, Secondary: true}},
	} {
		t.Run(fmt.Sprintf("%s%+d", tc.note, tc.semitones), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.note.Transpose(tc.semitones))
		})
	}
}

func TestFrequency(t *testing.T) {
	assert.InDelta(t, 440.0, Note{Notation: "A", Octave: 4}.Frequency(), 1e-9)
	assert.InDelta(t, 880.0, Note{Notation: "A", Octave: 5}.Frequency(), 1e-9)
	assert.InDelta(t, 261.6256, Note{Notation: "C", Octave: 4}.Frequency(), 1e-3)
}

func TestSort(t *testing.T) {
	notes := []Note{
		{Notation: "G", Octave: 4},
		{Notation: "C", Octave: 5},
		{Notation: "E", Octave: 4},
		{Notation: "A", Octave: 3},
	}
	sorted := Sort(notes)
	var names []string
	for _, n := range sorted {
		names = append(names, n.String())
	}
	assert.Equal(t, []string{"A3", "E4", "G4", "C5"}, names)
	assert.Equal(t, "G4", notes[0].String(), "input must stay untouched")
}

func TestFillNoteSpread(t *testing.T) {
	t.Run("single note", func(t *testing.T) {
		spread := FillNoteSpread([]Note{{Notation: "C", Octave: 4}}, 2, 2)
		assert.Equal(t, []Note{
			{Notation: "C", Octave: 3, Secondary: true},
			{Notation: "C", Octave: 2, Secondary: true},
			{Notation: "C", Octave: 4},
			{Notation: "C", Octave: 5, Secondary: true},
			{Notation: "C", Octave: 6, Secondary: true},
		}, spread)
	})

	t.Run("triad", func(t *testing.T) {
		triad := []Note{{Notation: "C", Octave: 4}, {Notation: "E", Octave: 4}, {Notation: "G", Octave: 4}}
		spread := FillNoteSpread(triad, 4, 4)
		require.Len(t, spread, 11)

		var names []string
		for _, n := range spread {
			names = append(names, n.String())
		}
		assert.Equal(t, []string{
			"G3", "E3", "C3", "G2",
			"C4", "E4", "G4",
			"C5", "E5", "G5", "C6",
		}, names)
		for i, n := range spread {
			assert.Equal(t, i < 4 || i > 6, n.Secondary, "index %d", i)
		}
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, FillNoteSpread(nil, 3, 3))
	})
}

func TestIntervalName(t *testing.T) {
	assert.Equal(t, "Perfect fifth", IntervalName(7))
	assert.Equal(t, "Perfect octave", IntervalName(12))
	assert.Equal(t, "14 semitones", IntervalName(14))
}
