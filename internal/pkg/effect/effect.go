// Package effect maps normalized controller values onto musical parameter ranges.
package effect

import (
	"fmt"
	"math"
)

type Spread string

const (
	Direct  Spread = "direct"
	Inverse Spread = "inverse"
	Central Spread = "central"
)

var SupportedSpreads = map[Spread]bool{
	Direct:  true,
	Inverse: true,
	Central: true,
}

// Control names accepted as an effect source.
const (
	ControlYAxis    = "yaxis"
	ControlPressure = "pressure"
	ControlTiltX    = "tiltX"
	ControlTiltY    = "tiltY"
	ControlTiltXY   = "tiltXY"
)

var SupportedControls = map[string]bool{
	ControlYAxis:    true,
	ControlPressure: true,
	ControlTiltX:    true,
	ControlTiltY:    true,
	ControlTiltXY:   true,
}

type Config struct {
	Control    string  `yaml:"control" json:"control"`
	Min        float64 `yaml:"min" json:"min"`
	Max        float64 `yaml:"max" json:"max"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
	Curve      float64 `yaml:"curve" json:"curve"`
	Spread     Spread  `yaml:"spread" json:"spread"`
	Default    float64 `yaml:"default" json:"default"`
}

func (c Config) Validate() error {
	if c.Spread != "" && !SupportedSpreads[c.Spread] {
		return fmt.Errorf("unsupported spread: \"%s\"", c.Spread)
	}
	if c.Control != "" && !SupportedControls[c.Control] {
		return fmt.Errorf("unsupported control: \"%s\"", c.Control)
	}
	return nil
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}

// Curve maps value from [0,1] onto an exponential curve with fixed points at 0 and 1.
func Curve(value, curve float64) float64 {
	if value <= 0 {
		return 0
	}
	if value >= 1 {
		return 1
	}
	if curve == 1 || curve == 0 {
		return value
	}
	return (math.Exp(curve*value) - 1) / (math.Exp(curve) - 1)
}

// Apply transforms configured control input into the output range, missing control yields the default.
func Apply(cfg Config, inputs map[string]float64) float64 {
	if cfg.Control == "" {
		return cfg.Default
	}
	input, ok := inputs[cfg.Control]
	if !ok {
		return cfg.Default
	}

	curve := cfg.Curve
	if curve == 0 {
		curve = 1
	}
	scaled := clamp(input*cfg.Multiplier, 0, 1)

	switch cfg.Spread {
	case Central:
		distance := math.Abs(scaled-0.5) * 2
		return cfg.Max - Curve(distance, curve)*(cfg.Max-cfg.Min)
	case Inverse:
		return cfg.Max - Curve(scaled, curve)*(cfg.Max-cfg.Min)
	default:
		return cfg.Min + Curve(scaled, curve)*(cfg.Max-cfg.Min)
	}
}

// Sample is anything able to report decoded float values.
type Sample interface {
	Float(key string) (float64, bool)
}

// Inputs builds control map from decoded sample, tiltXY is derived when both tilts are present.
func Inputs(sample Sample) map[string]float64 {
	var inputs = make(map[string]float64, len(SupportedControls))
	if y, ok := sample.Float("y"); ok {
		inputs[ControlYAxis] = y
	}
	if p, ok := sample.Float("pressure"); ok {
		inputs[ControlPressure] = p
	}
	tx, okX := sample.Float("tiltX")
	ty, okY := sample.Float("tiltY")
	if okX {
		inputs[ControlTiltX] = tx
	}
	if okY {
		inputs[ControlTiltY] = ty
	}
	if okX && okY {
		inputs[ControlTiltXY] = math.Sqrt(tx*tx + ty*ty)
	}
	return inputs
}
