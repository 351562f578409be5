package scheduler

import (
	"time"

	"github.com/gethiox/strummer/internal/pkg/theory"
)

type RepeaterConfig struct {
	Active              bool    `yaml:"active" json:"active"`
	PressureMultiplier  float64 `yaml:"pressureMultiplier" json:"pressureMultiplier"`
	FrequencyMultiplier float64 `yaml:"frequencyMultiplier" json:"frequencyMultiplier"`
}

// Repeater re-fires the last strummed notes while the stylus stays down.
// It is driven by the sample loop and is not safe for concurrent use.
type Repeater struct {
	notes   []theory.Note
	holding bool
	last    time.Time
}

func (r *Repeater) Hold(notes []theory.Note, now time.Time) {
	r.notes = append(r.notes[:0], notes...)
	r.holding = true
	r.last = now
}

func (r *Repeater) Release() {
	r.notes = r.notes[:0]
	r.holding = false
}

func (r *Repeater) Holding() bool {
	return r.holding && len(r.notes) > 0
}

// Due reports notes to repeat when repeat interval derived from note duration elapsed.
func (r *Repeater) Due(now time.Time, duration time.Duration, velocity float64, cfg RepeaterConfig) ([]theory.Note, int, bool) {
	if !cfg.Active || !r.Holding() {
		return nil, 0, false
	}

	interval := duration
	if cfg.FrequencyMultiplier > 0 {
		interval = time.Duration(float64(duration) / cfg.FrequencyMultiplier)
	}
	if now.Sub(r.last) < interval {
		return nil, 0, false
	}

	repeatVelocity := int(velocity * cfg.PressureMultiplier)
	if repeatVelocity < 1 {
		repeatVelocity = 1
	}
	if repeatVelocity > 127 {
		repeatVelocity = 127
	}
	r.last = now
	return append([]theory.Note{}, r.notes...), repeatVelocity, true
}
