package sim

import (
	"errors"
	"sync"
	"time"

	"github.com/justapithecus/flanker/device"
)

// Frame is a committed frame.
type Frame struct {
	Element device.Element
	At      time.Time
}

// ErrInjected is returned by injected device failures.
var ErrInjected = errors.New("sim: injected failure")

// Display is a virtual Surface. Commit advances the timeline to the next
// refresh boundary instead of blocking.
type Display struct {
	mu        sync.Mutex
	timeline  *Timeline
	staged    *device.Element
	frames    []Frame
	observers []func(Frame)

	// FailCommitAt makes the n-th Commit (1-based) fail. Zero disables.
	FailCommitAt int
	commits      int
}

// NewDisplay creates a display on the timeline.
func NewDisplay(tl *Timeline) *Display {
	return &Display{timeline: tl}
}

// Observe registers fn to be called after every commit.
func (d *Display) Observe(fn func(Frame)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, fn)
}

// Draw implements device.Surface.
func (d *Display) Draw(el device.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staged = &el
	return nil
}

// Commit implements device.Surface.
// Committing without a staged element repeats the previous frame.
func (d *Display) Commit() (time.Time, error) {
	d.mu.Lock()
	d.commits++
	if d.FailCommitAt > 0 && d.commits == d.FailCommitAt {
		d.mu.Unlock()
		return time.Time{}, ErrInjected
	}

	el := device.Blank()
	switch {
	case d.staged != nil:
		el = *d.staged
	case len(d.frames) > 0:
		el = d.frames[len(d.frames)-1].Element
	}
	d.staged = nil

	at := d.timeline.NextBoundary()
	f := Frame{Element: el, At: at}
	d.frames = append(d.frames, f)
	observers := append(([]func(Frame))(nil), d.observers...)
	d.mu.Unlock()

	for _, fn := range observers {
		fn(f)
	}
	return at, nil
}

// Frames returns every committed frame.
func (d *Display) Frames() []Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Frame(nil), d.frames...)
}

// CountKind returns the number of committed frames of the given kind.
func (d *Display) CountKind(kind device.ElementKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, f := range d.frames {
		if f.Element.Kind == kind {
			n++
		}
	}
	return n
}

// Reset discards the committed frame history.
func (d *Display) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = nil
	d.staged = nil
}

var _ device.Surface = (*Display)(nil)
