// Package workflow holds the engine primitives shared by the wizards:
// countdown timers, one-shot timers, dialog exclusivity, async epochs and
// cancellable delays.
package workflow

import (
	"sync"
	"time"
)

// Countdown is a resend timer. Resend is enabled only once it reaches
// zero. After Cancel the expiry callback never fires.
type Countdown struct {
	mu        sync.Mutex
	duration  time.Duration
	deadline  time.Time
	timer     *time.Timer
	gen       uint64
	cancelled bool
	onExpire  func()
	now       func() time.Time
}

// NewCountdown starts a countdown of d. onExpire may be nil.
func NewCountdown(d time.Duration, onExpire func()) *Countdown {
	c := &Countdown{duration: d, onExpire: onExpire, now: time.Now}
	c.Restart()
	return c
}

// Restart rewinds the countdown to its full duration.
func (c *Countdown) Restart() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	c.cancelled = false
	c.deadline = c.now().Add(c.duration)

	gen := c.gen
	c.timer = time.AfterFunc(c.duration, func() {
		c.mu.Lock()
		fire := gen == c.gen && !c.cancelled
		cb := c.onExpire
		c.mu.Unlock()
		if fire && cb != nil {
			cb()
		}
	})
}

// Cancel stops the countdown for good.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
	}
}

func (c *Countdown) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// Remaining is the time left, never negative.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelled {
		return 0
	}
	left := c.deadline.Sub(c.now())
	if left < 0 {
		return 0
	}
	return left
}

// Seconds is Remaining rounded up to whole seconds, as displayed.
func (c *Countdown) Seconds() int {
	left := c.Remaining()
	return int((left + time.Second - 1) / time.Second)
}

// ResendEnabled is true only when the countdown has run down to zero.
func (c *Countdown) ResendEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.cancelled && !c.now().Before(c.deadline)
}
