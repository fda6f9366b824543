// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Stepping returns a SteppingClock starting at initial.
func Stepping(initial time.Time) *SteppingClock {
	return &SteppingClock{current: initial}
}

// SteppingClock is a deterministic Clock for tests. Time stands still
// except when a caller waits through After, in which case the clock
// jumps forward by the requested duration and the wait completes at
// once. Advance moves time explicitly (for example to simulate a child
// process running for a known duration).
//
// SteppingClock is safe for concurrent use.
type SteppingClock struct {
	mu      sync.Mutex
	current time.Time
	waits   []time.Duration
}

// Now returns the current fake time.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After records d, advances the clock by d (when positive), and returns
// a channel that already holds the new time.
func (c *SteppingClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.waits = append(c.waits, d)
	if d > 0 {
		c.current = c.current.Add(d)
	}
	channel := make(chan time.Time, 1)
	channel <- c.current
	return channel
}

// Since returns the fake time elapsed since t.
func (c *SteppingClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Advance moves the clock forward by d.
func (c *SteppingClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Waits returns a copy of every duration passed to After, in call order.
func (c *SteppingClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]time.Duration, len(c.waits))
	copy(result, c.waits)
	return result
}
