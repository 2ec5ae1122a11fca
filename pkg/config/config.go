// Package config holds the tunable options of the fire simulation pipeline.
// The struct tags are read by kong in the commands.
package config

import (
	"fmt"
	"time"

	"github.com/sudorandom/fire-stream/pkg/firefeed"
	"github.com/sudorandom/fire-stream/pkg/perturb"
)

// DefaultTickInterval is the playback cadence.
const DefaultTickInterval = time.Second

// Options are the named pipeline options.
type Options struct {
	TickInterval    time.Duration `help:"Cadence of step advance." default:"1s" env:"FIRE_TICK_INTERVAL"`
	Mode            perturb.Mode  `help:"Perturbation mode (spike or jitter)." enum:"spike,jitter" default:"spike" env:"FIRE_PERTURB_MODE"`
	SpikeStrength   float64       `help:"Spike magnitude scale in degrees." default:"0.0015" env:"FIRE_SPIKE_STRENGTH"`
	SpikeChance     float64       `help:"Per-vertex spike probability." default:"0.9" env:"FIRE_SPIKE_CHANCE"`
	JitterDistance  float64       `help:"Max jitter offset in degrees." default:"0.0003" env:"FIRE_JITTER_DISTANCE"`
	IntensityWindow int           `help:"Steps over which a polygon fades." default:"20" env:"FIRE_INTENSITY_WINDOW"`
}

// Default returns the options the pipeline uses when nothing is configured.
func Default() Options {
	return Options{
		TickInterval:    DefaultTickInterval,
		Mode:            perturb.Spike,
		SpikeStrength:   perturb.DefaultStrength,
		SpikeChance:     perturb.DefaultChance,
		JitterDistance:  perturb.DefaultDistance,
		IntensityWindow: firefeed.DefaultIntensityWindow,
	}
}

// Perturbation returns the perturbation engine parameters.
func (o Options) Perturbation() perturb.Config {
	return perturb.Config{
		Mode:     o.Mode,
		Strength: o.SpikeStrength,
		Chance:   o.SpikeChance,
		Distance: o.JitterDistance,
	}
}

// Validate checks every option.
func (o Options) Validate() error {
	if o.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", o.TickInterval)
	}
	if o.IntensityWindow <= 0 {
		return fmt.Errorf("intensity window must be positive, got %d", o.IntensityWindow)
	}
	return o.Perturbation().Validate()
}
