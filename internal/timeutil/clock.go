// Package timeutil lets components that consult the clock take it as a
// dependency, so tests and capture replays can drive time themselves.
package timeutil

import (
	"sync"
	"time"
)

// Clock is the time surface the feed supervisor and recorder depend on.
type Clock interface {
	// Now reports the current time.
	Now() time.Time

	// After waits for the duration to elapse and then sends the current
	// time on the returned channel.
	After(d time.Duration) <-chan time.Time
}

// RealClock passes through to the time package.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// MockClock is a manually controlled clock. Set and Advance move it, and
// Advance fires every channel handed out by After regardless of the
// requested duration, which keeps backoff tests free of real sleeping.
type MockClock struct {
	mu     sync.Mutex
	now    time.Time
	afters []chan time.Time
}

// NewMockClock creates a MockClock reading t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now reports the clock's current reading.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t without firing waiters.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d and fires every pending After
// channel with the new time.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	afters := c.afters
	c.afters = nil
	c.mu.Unlock()

	for _, ch := range afters {
		select {
		case ch <- now:
		default:
		}
	}
}

// After returns a channel that receives the mocked time on the next
// Advance call.
func (c *MockClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	c.afters = append(c.afters, ch)
	return ch
}

var (
	_ Clock = RealClock{}
	_ Clock = (*MockClock)(nil)
)
