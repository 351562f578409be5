package theory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(notes []Note) []string {
	var result []string
	for _, n := range notes {
		result = append(result, n.String())
	}
	return result
}

func TestParseChord(t *testing.T) {
	for _, tc := range []struct {
		chord    string
		octave   int
		expected []string
	}{
		{chord: "C", octave: 4, expected: []string{"C4", "E4", "G4"}},
		{chord: "Am", octave: 4, expected: []string{"A4", "C5", "E5"}},
		{chord: "F#m", octave: 3, expected: []string{"F#3", "A3", "C#4"}},
		{chord: "Bb", octave: 3, expected: []string{"Bb3", "D4", "F4"}},
		{chord: "Ebmaj7", octave: 4, expected: []string{"Eb4", "G4", "Bb4", "D5"}},
		{chord: "G7", octave: 2, expected: []string{"G2", "B2", "D3", "F3"}},
		{chord: "Bdim", octave: 4, expected: []string{"B4", "D5", "F5"}},
		{chord: "Dsus4", octave: 4, expected: []string{"D4", "G4", "A4"}},
		{chord: "Cadd9", octave: 4, expected: []string{"C4", "E4", "G4", "D5"}},
		{chord: "c5", octave: 4, expected: []string{"C4", "G4"}},
	} {
		t.Run(tc.chord, func(t *testing.T) {
			notes, err := ParseChord(tc.chord, tc.octave)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, names(notes))
		})
	}
}

func TestParseChordUnknownQualityFallsBackToMajor(t *testing.T) {
	notes, err := ParseChord("Cwhatever", 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"C4", "E4", "G4"}, names(notes))
}

func TestParseChordUnknownRoot(t *testing.T) {
	for _, chord := range []string{"", "H7", "Xm"} {
		_, err := ParseChord(chord, 4)
		assert.ErrorIs(t, err, ErrUnknownChordRoot, chord)
	}
}

func TestSplitChord(t *testing.T) {
	root, quality := SplitChord("Bbm7b5")
	assert.Equal(t, "Bb", root)
	assert.Equal(t, "m7b5", quality)

	root, quality = SplitChord("bm")
	assert.Equal(t, "B", root)
	assert.Equal(t, "m", quality)
}

func TestKeySignature(t *testing.T) {
	for _, tc := range []struct {
		root     string
		major    bool
		expected []string
	}{
		{root: "C", major: true, expected: []string{"C", "D", "E", "F", "G", "A", "B"}},
		{root: "A", major: false, expected: []string{"A", "B", "C", "D", "E", "F", "G"}},
		{root: "G", major: true, expected: []string{"G", "A", "B", "C", "D", "E", "F#"}},
		{root: "F", major: true, expected: []string{"F", "G", "A", "A#", "C", "D", "E"}},
		{root: "Bb", major: true, expected: []string{"Bb", "C", "D", "Eb", "F", "G", "A"}},
		{root: "e", major: false, expected: []string{"E", "F#", "G", "A", "B", "C", "D"}},
	} {
		t.Run(tc.root, func(t *testing.T) {
			scale, err := KeySignature(tc.root, tc.major, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, scale)
		})
	}

	t.Run("with octave", func(t *testing.T) {
		octave := 3
		scale, err := KeySignature("A", true, &octave)
		require.NoError(t, err)
		assert.Equal(t, []string{"A3", "B3", "C#4", "D4", "E4", "F#4", "G#4"}, scale)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := KeySignature("H", true, nil)
		assert.ErrorIs(t, err, ErrUnknownKey)
	})
}

func TestKeyLookup(t *testing.T) {
	scale, ok := Key("Dm")
	require.True(t, ok)
	assert.Equal(t, []string{"D", "E", "F", "G", "A", "A#", "C"}, scale)

	scale[0] = "mutated"
	again, _ := Key("Dm")
	assert.Equal(t, "D", again[0])

	_, ok = Key("Hm")
	assert.False(t, ok)
}
