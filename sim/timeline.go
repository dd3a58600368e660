// Package sim provides a deterministic virtual-time backend: a display whose
// refresh boundaries are computed rather than waited for, a keyboard fed from
// a schedule, and a seeded virtual participant.
//
// The trial engine cannot tell it apart from a real device. It is used by
// tests and by `flanker run --backend sim` for pipeline dry runs.
package sim

import (
	"sync"
	"time"
)

// Timeline is the virtual clock shared by a Display and a Keyboard.
type Timeline struct {
	mu     sync.Mutex
	start  time.Time
	now    time.Time
	period time.Duration
}

// NewTimeline creates a timeline starting at start with the given refresh rate.
func NewTimeline(start time.Time, frameRate int) *Timeline {
	if frameRate <= 0 {
		frameRate = 60
	}
	return &Timeline{
		start:  start,
		now:    start,
		period: time.Second / time.Duration(frameRate),
	}
}

// Now returns the current virtual instant.
func (t *Timeline) Now() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

// Period returns the refresh interval.
func (t *Timeline) Period() time.Duration {
	return t.period
}

// Advance moves the clock forward by d.
func (t *Timeline) Advance(d time.Duration) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d > 0 {
		t.now = t.now.Add(d)
	}
	return t.now
}

// AdvanceTo moves the clock forward to at. Earlier instants are ignored.
func (t *Timeline) AdvanceTo(at time.Time) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if at.After(t.now) {
		t.now = at
	}
	return t.now
}

// NextBoundary moves the clock to the next refresh boundary strictly after
// the current instant and returns it.
func (t *Timeline) NextBoundary() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.now.Sub(t.start)/t.period + 1
	t.now = t.start.Add(n * t.period)
	return t.now
}
