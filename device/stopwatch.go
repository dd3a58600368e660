package device

import "time"

// Stopwatch is the default Clock.
// It is not safe for concurrent use; the trial engine owns it exclusively.
type Stopwatch struct {
	zero  time.Time
	armed bool
}

// NewStopwatch creates an unarmed stopwatch.
func NewStopwatch() *Stopwatch {
	return &Stopwatch{}
}

// Arm implements Clock.
func (s *Stopwatch) Arm(at time.Time) {
	s.zero = at
	s.armed = true
}

// Armed implements Clock.
func (s *Stopwatch) Armed() bool {
	return s.armed
}

// Millis implements Clock.
// Instants before the arming point, or any instant on an unarmed clock,
// read as zero: a reaction time is never negative.
func (s *Stopwatch) Millis(at time.Time) int64 {
	if !s.armed {
		return 0
	}
	d := at.Sub(s.zero)
	if d < 0 {
		return 0
	}
	return d.Round(time.Millisecond).Milliseconds()
}

// Verify Stopwatch implements Clock.
var _ Clock = (*Stopwatch)(nil)
