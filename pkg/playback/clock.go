// Package playback drives the simulation step on a fixed cadence.
package playback

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sudorandom/fire-stream/pkg/dataset"
)

// State is the lifecycle state of a Clock.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// TickFunc receives the step a tick advanced to.
type TickFunc func(step int)

// Clock advances a step counter over a series, wrapping to 0 after the last
// step. Only one timer goroutine exists per clock; ticks never overlap.
type Clock struct {
	interval time.Duration
	onTick   TickFunc

	// tickMu makes advance-and-callback a single critical section.
	tickMu sync.Mutex

	mu     sync.Mutex
	state  State
	step   int
	length int
	series *dataset.Series
	stop   chan struct{}
	done   chan struct{}
}

// NewClock returns an idle clock. onTick may be nil.
func NewClock(interval time.Duration, onTick TickFunc) *Clock {
	if interval <= 0 {
		interval = time.Second
	}
	return &Clock{interval: interval, onTick: onTick}
}

// Start cancels any running timer and begins ticking over series. The step
// resets to 0 when series is a different series or its length changed. An
// empty series leaves the clock idle.
func (c *Clock) Start(series *dataset.Series) {
	for {
		c.Stop()
		c.mu.Lock()
		if c.state != Running {
			break
		}
		// A concurrent Start won the race; cancel its timer too.
		c.mu.Unlock()
	}
	defer c.mu.Unlock()

	if series != c.series || series.Len() != c.length {
		c.step = 0
	}
	c.series = series
	c.length = series.Len()

	if c.length == 0 {
		log.Printf("[playback] Series is empty, clock stays idle")
		c.state = Idle
		return
	}

	stop, done := make(chan struct{}), make(chan struct{})
	c.stop, c.done = stop, done
	c.state = Running
	go c.run(stop, done)
	log.Printf("[playback] Started: %d steps every %v", c.length, c.interval)
}

// Stop cancels the timer and returns after the timer goroutine has exited,
// so no tick fires once Stop returns. It must not be called from the tick
// callback.
func (c *Clock) Stop() {
	c.mu.Lock()
	if c.state != Running {
		c.mu.Unlock()
		return
	}
	close(c.stop)
	done := c.done
	c.stop, c.done = nil, nil
	c.state = Stopped
	c.mu.Unlock()

	<-done
	log.Printf("[playback] Stopped")
}

func (c *Clock) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Stop may have raced the ticker.
			select {
			case <-stop:
				return
			default:
			}
			c.Tick()
		}
	}
}

// Tick advances one step, wrapping to 0 at the end of the series, and runs
// the tick callback. With an empty series the step does not move.
func (c *Clock) Tick() int {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	c.mu.Lock()
	if c.length == 0 {
		step := c.step
		c.mu.Unlock()
		return step
	}
	if c.step+1 < c.length {
		c.step++
	} else {
		c.step = 0
	}
	step := c.step
	c.mu.Unlock()

	if c.onTick != nil {
		c.onTick(step)
	}
	return step
}

// Emit runs the tick callback for the current step without advancing. It
// shares the tick critical section.
func (c *Clock) Emit() int {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	c.mu.Lock()
	step, length := c.step, c.length
	c.mu.Unlock()

	if length > 0 && c.onTick != nil {
		c.onTick(step)
	}
	return step
}

// Seek moves the clock to step without running the callback.
func (c *Clock) Seek(step int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if step < 0 || step >= c.length {
		return fmt.Errorf("step %d out of range [0, %d)", step, c.length)
	}
	c.step = step
	return nil
}

// Step returns the current step.
func (c *Clock) Step() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// State returns the lifecycle state.
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Len returns the length of the series the clock was last started with.
func (c *Clock) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.length
}

// Interval returns the tick cadence.
func (c *Clock) Interval() time.Duration { return c.interval }
