// Package brightness drives the shared display backlight. A Controller owns
// a single brightness value and at most one fade goroutine writing it.
package brightness

import (
	"sync"
	"time"

	"github.com/fogleman/ease"
	logging "github.com/ipfs/go-log/v2"

	"github.com/matt-g-everett/ledpanel/util"
)

var log = logging.Logger("brightness")

// DefaultTick is the interval between two fade steps.
const DefaultTick = 2 * time.Millisecond

// An IntensitySink receives the drive level of the backlight-disable line
// in percent (0 is full brightness, 100 is dark).
type IntensitySink interface {
	SetIntensity(percent float64)
}

// Intensity maps a linear brightness value onto the backlight drive level.
// The cubic curve compensates for the non-linear response of the LEDs.
func Intensity(value float64) float64 {
	return (1 - ease.InCubic(util.Clamp(value, 0, 1))) * 100
}

type fade struct {
	rate float64
	stop chan struct{}
	done chan struct{}
}

// Controller holds the brightness value. Every state change first cancels
// and joins the running fade, so the sink never has two writers.
type Controller struct {
	sink IntensitySink
	tick time.Duration

	// mu serialises starting and cancelling fades.
	mu   sync.Mutex
	fade *fade

	// valueMu guards value and orders writes to the sink.
	valueMu sync.Mutex
	value   float64
}

// NewController creates a Controller writing to sink every tick while fading.
func NewController(sink IntensitySink, tick time.Duration) *Controller {
	if tick <= 0 {
		tick = DefaultTick
	}
	c := new(Controller)
	c.sink = sink
	c.tick = tick
	return c
}

// Value returns the current brightness in [0, 1].
func (c *Controller) Value() float64 {
	c.valueMu.Lock()
	defer c.valueMu.Unlock()
	return c.value
}

// Fading reports whether a fade is still running.
func (c *Controller) Fading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fade == nil {
		return false
	}
	select {
	case <-c.fade.done:
		return false
	default:
		return true
	}
}

// SetImmediate cancels any fade and sets value, clamped to [0, 1]. No write
// from the cancelled fade happens after SetImmediate returns.
func (c *Controller) SetImmediate(value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
	c.write(value)
}

// StartFade sets the brightness to initial and then lowers it by rate every
// tick until it reaches zero. A zero initial value or a non-positive rate
// degrades to SetImmediate(initial).
func (c *Controller) StartFade(rate, initial float64) {
	if initial == 0 || rate <= 0 {
		c.SetImmediate(initial)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
	c.write(initial)

	f := &fade{
		rate: rate,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	c.fade = f
	go c.run(f)
}

// Stop cancels a running fade, leaving the value where it is.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
}

func (c *Controller) cancelLocked() {
	if c.fade == nil {
		return
	}
	close(c.fade.stop)
	<-c.fade.done
	c.fade = nil
}

// run steps the fade on an absolute schedule so timer latency does not
// accumulate over a long fade.
func (c *Controller) run(f *fade) {
	defer close(f.done)

	start := time.Now()
	next := start.Add(c.tick)
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	steps := 0
	for {
		select {
		case <-f.stop:
			return
		case <-timer.C:
		}

		select {
		case <-f.stop:
			return
		default:
		}

		steps++
		if c.step(f.rate) <= 0 {
			log.Debugf("fade finished after %d steps in %v", steps, time.Since(start))
			return
		}

		next = next.Add(c.tick)
		timer.Reset(time.Until(next))
	}
}

func (c *Controller) step(rate float64) float64 {
	c.valueMu.Lock()
	defer c.valueMu.Unlock()

	c.value = util.Clamp(c.value-rate, 0, 1)
	c.sink.SetIntensity(Intensity(c.value))
	return c.value
}

func (c *Controller) write(value float64) {
	c.valueMu.Lock()
	defer c.valueMu.Unlock()

	c.value = util.Clamp(value, 0, 1)
	c.sink.SetIntensity(Intensity(c.value))
}
