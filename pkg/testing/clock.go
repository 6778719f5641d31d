package testing

import (
	"sync"
	"time"
)

// clockEpoch is where every FakeClock starts.
var clockEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// FakeClock is the frame clock of a WidgetTester. PumpAndSettle advances
// it once per frame. All methods are safe for concurrent use.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a FakeClock starting at a fixed epoch.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: clockEpoch}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Elapsed returns the time advanced since the epoch.
func (c *FakeClock) Elapsed() time.Duration {
	return c.Now().Sub(clockEpoch)
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
