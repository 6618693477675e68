// Package carousel drives scroll-snap navigation for feeds rendered in
// carousel mode: overflow measurement, edge wraparound and autoplay.
package carousel

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Tolerance is how close to an edge, in pixels, counts as being at it.
const Tolerance = 2.0

// MinInterval is the shortest autoplay interval; anything below disables
// autoplay.
const MinInterval = 20 * time.Millisecond

type Direction int

const (
	Prev Direction = iota
	Next
)

func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "prev", "previous":
		return Prev, true
	case "next":
		return Next, true
	default:
		return Next, false
	}
}

func (d Direction) String() string {
	if d == Prev {
		return "prev"
	}
	return "next"
}

// Viewport is the scroll container. Widths are in pixels.
type Viewport interface {
	ScrollLeft() float64
	ScrollWidth() float64
	ClientWidth() float64
	FirstItemWidth() float64
	ScrollTo(left float64)
}

// Controls are the two navigation elements. SetDisabled must mutate the
// nodes directly rather than trigger a re-render.
type Controls interface {
	SetDisabled(disabled bool)
}

// Frames defers work to the next paint frame.
type Frames interface {
	Request(fn func()) (cancel func())
}

// Clock runs fn every d until stopped.
type Clock interface {
	Every(d time.Duration, fn func()) (stop func())
}

type Options struct {
	Autoplay bool
	Interval time.Duration
}

func (o Options) autoplayEnabled() bool {
	return o.Autoplay && o.Interval >= MinInterval
}

type Controller struct {
	mu          sync.Mutex
	viewport    Viewport
	controls    Controls
	frames      Frames
	clock       Clock
	opts        Options
	mounted     bool
	overflowing bool
	cancelFrame func()
	stopTimer   func()
	hovered     atomic.Bool
}

func NewController(viewport Viewport, controls Controls, opts Options) *Controller {
	return &Controller{
		viewport: viewport,
		controls: controls,
		frames:   TimerFrames{},
		clock:    SystemClock{},
		opts:     opts,
	}
}

// WithFrames replaces the frame scheduler. Call before Mount.
func (c *Controller) WithFrames(frames Frames) *Controller {
	c.frames = frames
	return c
}

// WithClock replaces the autoplay clock. Call before Mount.
func (c *Controller) WithClock(clock Clock) *Controller {
	c.clock = clock
	return c
}

// Mount puts the controls into their disabled default, schedules the
// first measurement and starts autoplay.
func (c *Controller) Mount() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mounted {
		return
	}
	c.mounted = true
	c.overflowing = false
	c.controls.SetDisabled(true)
	c.scheduleStabilizeLocked()
	c.startAutoplayLocked()
}

// Resize re-measures on the next frame. Content changes count as resizes.
func (c *Controller) Resize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.mounted {
		return
	}
	c.scheduleStabilizeLocked()
}

// Configure applies new options after the block was re-rendered. The
// controls go back to their disabled default until the next measurement
// and the autoplay timer restarts.
func (c *Controller) Configure(opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopAutoplayLocked()
	c.opts = opts
	if !c.mounted {
		return
	}
	c.overflowing = false
	c.controls.SetDisabled(true)
	c.scheduleStabilizeLocked()
	c.startAutoplayLocked()
}

func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mounted = false
	c.stopAutoplayLocked()
	if c.cancelFrame != nil {
		c.cancelFrame()
		c.cancelFrame = nil
	}
}

func (c *Controller) HoverEnter() { c.hovered.Store(true) }
func (c *Controller) HoverLeave() { c.hovered.Store(false) }

func (c *Controller) Hovered() bool { return c.hovered.Load() }

func (c *Controller) Overflowing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overflowing
}

// Scroll moves by one item in dir, wrapping to the opposite edge when
// already at the edge.
func (c *Controller) Scroll(dir Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	left := c.viewport.ScrollLeft()
	maxLeft := c.viewport.ScrollWidth() - c.viewport.ClientWidth()
	if maxLeft < 0 {
		maxLeft = 0
	}
	step := c.viewport.FirstItemWidth()
	if step <= 0 {
		step = c.viewport.ClientWidth()
	}

	var target float64
	switch dir {
	case Next:
		if left >= maxLeft-Tolerance {
			target = 0
		} else {
			target = min(left+step, maxLeft)
		}
	default:
		if left <= Tolerance {
			target = maxLeft
		} else {
			target = max(left-step, 0)
		}
	}

	c.viewport.ScrollTo(target)
}

func (c *Controller) scheduleStabilizeLocked() {
	if c.cancelFrame != nil {
		c.cancelFrame()
	}
	c.cancelFrame = c.frames.Request(c.stabilize)
}

// stabilize runs after layout and applies the measured state through the
// controls only.
func (c *Controller) stabilize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.mounted {
		return
	}
	c.cancelFrame = nil

	client := c.viewport.ClientWidth()
	overflowing := client > 0 && c.viewport.ScrollWidth() > client+Tolerance
	if overflowing == c.overflowing {
		return
	}
	c.overflowing = overflowing
	c.controls.SetDisabled(!overflowing)
	slog.Debug("Carousel overflow changed", "overflowing", overflowing)
}

func (c *Controller) startAutoplayLocked() {
	if !c.opts.autoplayEnabled() {
		return
	}
	c.stopTimer = c.clock.Every(c.opts.Interval, c.tick)
}

func (c *Controller) stopAutoplayLocked() {
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
}

// tick keeps firing while hovered; it just does nothing.
func (c *Controller) tick() {
	if c.hovered.Load() {
		return
	}
	c.Scroll(Next)
}
