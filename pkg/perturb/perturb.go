// Package perturb roughens polygon rings so that regrown fire fronts look
// irregular. Every call re-rolls the offsets; results are never cached.
package perturb

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/paulmach/orb"
)

// Mode selects how vertices are displaced.
type Mode string

const (
	// Spike moves a random subset of vertices along a random bearing.
	Spike Mode = "spike"
	// Jitter moves every vertex by a small uniform offset on each axis.
	Jitter Mode = "jitter"
)

// Defaults, in coordinate degrees.
const (
	DefaultStrength = 0.0015
	DefaultChance   = 0.9
	DefaultDistance = 0.0003
)

// Source yields uniform floats in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Config holds the parameters of both modes; only those of Mode are used.
type Config struct {
	Mode     Mode
	Strength float64 // spike magnitude scale
	Chance   float64 // per-vertex spike probability
	Distance float64 // max jitter offset per axis
}

// DefaultConfig returns spike mode with the default parameters.
func DefaultConfig() Config {
	return Config{
		Mode:     Spike,
		Strength: DefaultStrength,
		Chance:   DefaultChance,
		Distance: DefaultDistance,
	}
}

// Validate reports parameters that would break the displacement bounds.
func (c Config) Validate() error {
	switch c.Mode {
	case Spike, Jitter:
	default:
		return fmt.Errorf("unknown perturbation mode %q", c.Mode)
	}
	if c.Strength < 0 {
		return fmt.Errorf("spike strength must not be negative, got %v", c.Strength)
	}
	if c.Chance < 0 || c.Chance > 1 {
		return fmt.Errorf("spike chance must be within [0, 1], got %v", c.Chance)
	}
	if c.Distance < 0 {
		return fmt.Errorf("jitter distance must not be negative, got %v", c.Distance)
	}
	return nil
}

// Engine applies one Config using one random source. It is safe for
// concurrent use.
type Engine struct {
	cfg Config

	mu  sync.Mutex
	src Source
}

// New returns an Engine. A nil src uses the math/rand global source.
func New(cfg Config, src Source) *Engine {
	if src == nil {
		src = globalSource{}
	}
	return &Engine{cfg: cfg, src: src}
}

// Config returns the engine's parameters.
func (e *Engine) Config() Config { return e.cfg }

// Perturb returns a displaced copy of ring with the same point count.
func (e *Engine) Perturb(ring orb.Ring) orb.Ring {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.Mode == Jitter {
		return Jitters(ring, e.cfg.Distance, e.src)
	}
	return Spikes(ring, e.cfg.Strength, e.cfg.Chance, e.src)
}

// Spikes displaces each vertex with probability chance along a random angle
// in [0, 2π) by strength × [0.5, 2.5). A closed input stays closed.
func Spikes(ring orb.Ring, strength, chance float64, src Source) orb.Ring {
	return displace(ring, func(p orb.Point) orb.Point {
		if src.Float64() >= chance {
			return p
		}
		angle := src.Float64() * 2 * math.Pi
		offset := strength * (0.5 + src.Float64()*2)
		return orb.Point{
			p[0] + math.Cos(angle)*offset,
			p[1] + math.Sin(angle)*offset,
		}
	})
}

// Jitters displaces every vertex by a uniform offset in [-distance, distance]
// on both axes. A closed input is re-closed with the displaced first point.
func Jitters(ring orb.Ring, distance float64, src Source) orb.Ring {
	return displace(ring, func(p orb.Point) orb.Point {
		return orb.Point{
			p[0] + (src.Float64()*2-1)*distance,
			p[1] + (src.Float64()*2-1)*distance,
		}
	})
}

func displace(ring orb.Ring, move func(orb.Point) orb.Point) orb.Ring {
	out := make(orb.Ring, len(ring))
	if len(ring) == 0 {
		return out
	}

	n := len(ring)
	closed := n > 1 && ring.Closed()
	if closed {
		n--
	}
	for i := 0; i < n; i++ {
		out[i] = move(ring[i])
	}
	if closed {
		out[n] = out[0]
	}
	return out
}
