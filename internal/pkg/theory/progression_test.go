package theory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressionIndexAlwaysInRange(t *testing.T) {
	var p Progression
	require.NoError(t, p.Load("c-major-pop"))

	for _, i := range []int{-9, -5, -4, -1, 0, 1, 3, 4, 7, 1001} {
		t.Run(fmt.Sprintf("set %d", i), func(t *testing.T) {
			got := p.SetIndex(i)
			assert.GreaterOrEqual(t, got, 0)
			assert.Less(t, got, 4)
			assert.Equal(t, ((i%4)+4)%4, got)
		})
	}

	p.SetIndex(0)
	for _, tc := range []struct {
		amount   int
		expected int
		chord    string
	}{
		{amount: 1, expected: 1, chord: "G"},
		{amount: -2, expected: 3, chord: "F"},
		{amount: -7, expected: 0, chord: "C"},
		{amount: 6, expected: 2, chord: "Am"},
	} {
		assert.Equal(t, tc.expected, p.Increment(tc.amount))
		chord, ok := p.Current()
		assert.True(t, ok)
		assert.Equal(t, tc.chord, chord)
	}
}

func TestProgressionUnknownKeepsState(t *testing.T) {
	var p Progression
	require.NoError(t, p.Load("a-minor-pop"))
	p.SetIndex(2)

	err := p.Load("nope")
	assert.ErrorIs(t, err, ErrUnknownProgression)
	assert.Equal(t, "a-minor-pop", p.Name())
	assert.Equal(t, 2, p.Index())
}

func TestProgressionEmpty(t *testing.T) {
	var p Progression
	assert.Equal(t, 0, p.SetIndex(5))
	assert.Equal(t, 0, p.Increment(-3))
	_, ok := p.Current()
	assert.False(t, ok)
	_, ok = p.ChordAt(2)
	assert.False(t, ok)
}

func TestProgressionInfo(t *testing.T) {
	var p Progression
	require.NoError(t, p.Load("jazz-ii-v-i-c"))
	p.Increment(1)

	info := p.Info()
	assert.Equal(t, "jazz-ii-v-i-c", info.Name)
	assert.Equal(t, 3, info.TotalChords)
	assert.Equal(t, 1, info.CurrentIndex)
	assert.Equal(t, "G7", info.CurrentChord)

	chord, _ := p.ChordAt(-1)
	assert.Equal(t, "Cmaj7", chord)

	p.Reset()
	assert.Equal(t, 0, p.Index())
}

func TestEveryProgressionChordParses(t *testing.T) {
	for _, name := range Progressions() {
		chords, ok := ProgressionChords(name)
		require.True(t, ok)
		for _, chord := range chords {
			_, err := ParseChord(chord, DefaultOctave)
			assert.NoError(t, err, "%s: %s", name, chord)
		}
	}
}
