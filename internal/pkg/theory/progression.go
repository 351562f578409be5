package theory

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gethiox/strummer/internal/pkg/logger"
	"go.uber.org/zap"
)

var ErrUnknownProgression = errors.New("unknown progression")

var progressions = map[string][]string{
	"c-major-pop":        {"C", "G", "Am", "F"},
	"g-major-pop":        {"G", "D", "Em", "C"},
	"d-major-pop":        {"D", "A", "Bm", "G"},
	"a-minor-pop":        {"Am", "F", "C", "G"},
	"e-minor-pop":        {"Em", "C", "G", "D"},
	"c-major-50s":        {"C", "Am", "F", "G"},
	"twelve-bar-blues-e": {"E7", "E7", "E7", "E7", "A7", "A7", "E7", "E7", "B7", "A7", "E7", "B7"},
	"jazz-ii-v-i-c":      {"Dm7", "G7", "Cmaj7"},
	"canon-d":            {"D", "A", "Bm", "F#m", "G", "D", "G", "A"},
	"andalusian-a":       {"Am", "G", "F", "E"},
}

// Progressions returns sorted names of every known progression.
func Progressions() []string {
	names := make([]string, 0, len(progressions))
	for name := range progressions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProgressionChords returns a copy of chord names for given progression.
func ProgressionChords(name string) ([]string, bool) {
	chords, ok := progressions[name]
	if !ok {
		return nil, false
	}
	return append([]string{}, chords...), true
}

// Progression tracks position within a loaded chord progression.
// It is not safe for concurrent use, callers serialize access.
type Progression struct {
	name   string
	chords []string
	index  int
}

type ProgressionInfo struct {
	Name         string   `json:"progression_name"`
	TotalChords  int      `json:"total_chords"`
	CurrentIndex int      `json:"current_index"`
	CurrentChord string   `json:"current_chord,omitempty"`
	Chords       []string `json:"chords"`
}

func (p *Progression) Name() string { return p.name }

// Load replaces the progression and rewinds to its first chord.
func (p *Progression) Load(name string) error {
	chords, ok := ProgressionChords(name)
	if !ok {
		return fmt.Errorf("%w: \"%s\"", ErrUnknownProgression, name)
	}
	p.name = name
	p.chords = chords
	p.index = 0
	log.Info("progression loaded", logger.Debug, zap.String("progression", name), zap.Int("chords", len(chords)))
	return nil
}

func (p *Progression) SetIndex(index int) int {
	if len(p.chords) == 0 {
		return 0
	}
	p.index = mod(index, len(p.chords))
	return p.index
}

func (p *Progression) Increment(amount int) int {
	if len(p.chords) == 0 {
		return 0
	}
	p.index = mod(p.index+amount, len(p.chords))
	return p.index
}

func (p *Progression) Index() int { return p.index }

func (p *Progression) Current() (string, bool) {
	if len(p.chords) == 0 {
		return "", false
	}
	return p.chords[p.index], true
}

func (p *Progression) ChordAt(index int) (string, bool) {
	if len(p.chords) == 0 {
		return "", false
	}
	return p.chords[mod(index, len(p.chords))], true
}

func (p *Progression) Reset() {
	p.index = 0
}

func (p *Progression) Info() ProgressionInfo {
	current, _ := p.Current()
	return ProgressionInfo{
		Name:         p.name,
		TotalChords:  len(p.chords),
		CurrentIndex: p.index,
		CurrentChord: current,
		Chords:       append([]string{}, p.chords...),
	}
}
