package core

import (
	"time"

	"github.com/loov/hrtime"
)

type Clock struct {
	startTime time.Duration
	elapsed   time.Duration
	running   bool
}

func NewClock() *Clock {
	return &Clock{}
}

// Updates the provided clock. Should be called just before checking elapsed time.
// Has no effect on non-started clocks.
func (c *Clock) Update() {
	if c.running {
		c.elapsed = hrtime.Now() - c.startTime
	}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.startTime = hrtime.Now()
	c.elapsed = 0
	c.running = true
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.running = false
}

// Elapsed returns the seconds between Start and the last Update.
func (c *Clock) Elapsed() float64 {
	return c.elapsed.Seconds()
}

// FramePacer sleeps away the slack of frames that finish early.
type FramePacer struct {
	target     time.Duration
	frameStart time.Duration
}

// NewFramePacer returns a pacer for targetFPS frames per second. A zero
// target disables pacing.
func NewFramePacer(targetFPS uint32) *FramePacer {
	p := &FramePacer{}
	if targetFPS > 0 {
		p.target = time.Second / time.Duration(targetFPS)
	}
	return p
}

func (p *FramePacer) StartFrame() {
	p.frameStart = hrtime.Now()
}

// EndFrame sleeps for whatever is left of the target frame time and returns
// the duration of the frame work itself.
func (p *FramePacer) EndFrame() time.Duration {
	spent := hrtime.Now() - p.frameStart
	if p.target > 0 && spent < p.target {
		time.Sleep(p.target - spent)
	}
	return spent
}
