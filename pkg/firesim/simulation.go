// Package firesim wires the dataset, the feature composer and the playback
// clock together and delivers one frame per tick to a render sink.
package firesim

import (
	"errors"
	"log"
	"sync/atomic"

	geojson "github.com/paulmach/go.geojson"
	"github.com/sudorandom/fire-stream/pkg/config"
	"github.com/sudorandom/fire-stream/pkg/dataset"
	"github.com/sudorandom/fire-stream/pkg/firefeed"
	"github.com/sudorandom/fire-stream/pkg/geometry"
	"github.com/sudorandom/fire-stream/pkg/perturb"
	"github.com/sudorandom/fire-stream/pkg/playback"
)

// ErrSinkUnavailable is returned by a Sink whose surface is not ready. The
// frame is dropped; the next tick delivers fresh data.
var ErrSinkUnavailable = errors.New("render sink unavailable")

// Frame is everything a sink needs to redraw one step.
type Frame struct {
	// Seq increases with every frame built by a Simulation. Sinks keep the
	// frame with the highest Seq.
	Seq        uint64                     `json:"seq"`
	Step       int                        `json:"step"`
	Time       string                     `json:"time"`
	Features   int                        `json:"features"`
	AreaKm2    float64                    `json:"area_km2"` // newest front only
	Collection *geojson.FeatureCollection `json:"collection"`
}

// Sink replaces everything it displays with the frame.
type Sink interface {
	SetData(frame *Frame) error
}

// Status is a snapshot of the playback state.
type Status struct {
	State    string `json:"state"`
	Step     int    `json:"step"`
	Steps    int    `json:"steps"`
	Interval string `json:"interval"`
}

// Simulation plays a series into a sink.
type Simulation struct {
	series   *dataset.Series
	composer *firefeed.Composer
	clock    *playback.Clock
	sink     Sink
	seq      atomic.Uint64
}

// New returns a stopped simulation. Invalid options fall back to defaults.
// sink may be nil, in which case frames are only built on request.
func New(series *dataset.Series, opts config.Options, sink Sink) *Simulation {
	if err := opts.Validate(); err != nil {
		log.Printf("[firesim] Invalid options (%v), using defaults", err)
		opts = config.Default()
	}
	s := &Simulation{
		series:   series,
		composer: firefeed.NewComposer(perturb.New(opts.Perturbation(), nil), opts.IntensityWindow),
		sink:     sink,
	}
	s.clock = playback.NewClock(opts.TickInterval, s.onTick)
	return s
}

// Series returns the simulated series.
func (s *Simulation) Series() *dataset.Series { return s.series }

// Window returns the intensity decay window.
func (s *Simulation) Window() int { return s.composer.Window() }

// Start renders the current step immediately and starts the clock.
func (s *Simulation) Start() {
	s.clock.Start(s.series)
	s.clock.Emit()
}

// Stop stops the clock. No frame reaches the sink after Stop returns.
func (s *Simulation) Stop() {
	s.clock.Stop()
}

// Seek jumps to step and renders it.
func (s *Simulation) Seek(step int) error {
	if err := s.clock.Seek(step); err != nil {
		return err
	}
	s.clock.Emit()
	return nil
}

// Status reports the clock state.
func (s *Simulation) Status() Status {
	return Status{
		State:    s.clock.State().String(),
		Step:     s.clock.Step(),
		Steps:    s.series.Len(),
		Interval: s.clock.Interval().String(),
	}
}

// Frame builds the frame for step without touching the clock or the sink.
func (s *Simulation) Frame(step int) *Frame {
	var records []dataset.Record
	if s.series != nil {
		records = s.series.Records
	}
	fc := s.composer.Build(records, step)
	return &Frame{
		Seq:        s.seq.Add(1),
		Step:       step,
		Time:       s.series.TimeAt(step),
		Features:   len(fc.Features),
		AreaKm2:    frontArea(records, step),
		Collection: fc,
	}
}

// frontArea is the unperturbed area of the newest fire front at step.
func frontArea(records []dataset.Record, step int) float64 {
	var front *dataset.Record
	for i := range records {
		if records[i].Step > step {
			break
		}
		front = &records[i]
	}
	if front == nil {
		return 0
	}
	area := 0.0
	for _, w := range front.PolygonsWKT {
		if ring, err := geometry.Decode(w); err == nil {
			area += geometry.AreaKm2(ring)
		}
	}
	return area
}

func (s *Simulation) onTick(step int) {
	if s.sink == nil {
		return
	}
	err := s.sink.SetData(s.Frame(step))
	switch {
	case err == nil, errors.Is(err, ErrSinkUnavailable):
	default:
		log.Printf("[firesim] Sink rejected step %d: %v", step, err)
	}
}
