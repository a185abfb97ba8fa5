package core

import (
	"sync"
	"time"
)

// Clock is the time source for every suspension point: pulse waits,
// page write delays, dispense durations and the inter-cycle wait.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the wall-clock implementation
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// VirtualClock advances only when slept on (for testing/simulation).
// Sleep returns immediately after moving the clock forward; After moves the
// clock forward and returns an already-fired channel.
//
// There is a single timeline: sleeps from concurrent goroutines add up, so
// two axes moving together advance the clock by the sum of their move
// times rather than the longer one. Use it for ordering and totals, not
// for wall-time of concurrent motion.
type VirtualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewVirtualClock creates a clock starting at the Unix epoch
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{now: time.Unix(0, 0)}
}

// Now returns the current virtual time
func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the clock by d
func (c *VirtualClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// After advances the clock by d and returns a fired channel
func (c *VirtualClock) After(d time.Duration) <-chan time.Time {
	c.Sleep(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

// Elapsed returns the virtual time passed since start
func (c *VirtualClock) Elapsed() time.Duration {
	return c.Now().Sub(time.Unix(0, 0))
}
