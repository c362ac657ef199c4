package clock

import (
	"sync"
	"time"
)

// Clock is a monotonic elapsed-time source with a sleep primitive.
// Now returns the time elapsed since the clock was started.
type Clock interface {
	Now() time.Duration
	Sleep(d time.Duration)
}

var _ Clock = (*System)(nil)
var _ Clock = (*Manual)(nil)

// System is a Clock backed by the runtime monotonic clock.
type System struct {
	start time.Time
}

// NewSystem creates a System clock starting at zero now.
func NewSystem() *System {
	return &System{start: time.Now()}
}

// Now returns the time elapsed since NewSystem.
func (c *System) Now() time.Duration {
	return time.Since(c.start)
}

// Sleep blocks the calling goroutine for d.
func (c *System) Sleep(d time.Duration) {
	time.Sleep(d)
}

// Manual is a Clock that only moves when told to. Sleep advances it
// instead of blocking, which lets polling loops run deterministically in tests.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	onSleep func(now time.Duration)
}

// NewManual creates a Manual clock at zero.
func NewManual() *Manual {
	return &Manual{}
}

// Now returns the current manual time.
func (c *Manual) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Manual) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// Sleep advances the clock by d and then invokes the OnSleep hook, if any.
func (c *Manual) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now += d
	now := c.now
	hook := c.onSleep
	c.mu.Unlock()

	if hook != nil {
		hook(now)
	}
}

// OnSleep registers a hook called after every Sleep with the new time.
// Tests use it to change simulated inputs while a blocking loop waits.
func (c *Manual) OnSleep(hook func(now time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSleep = hook
}
