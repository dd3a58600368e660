// Package device defines the capabilities the trial engine consumes:
// a presentation surface, a timestamped key input and an onset clock.
//
// The engine never owns a window or an input driver. Backends (terminal,
// simulation) implement these interfaces in their own packages.
package device

import (
	"context"
	"time"

	"github.com/justapithecus/flanker/types"
)

// ElementKind discriminates drawable elements.
type ElementKind string

// Element kinds.
const (
	KindBlank    ElementKind = "blank"
	KindStimulus ElementKind = "stimulus"
	KindFeedback ElementKind = "feedback"
	KindFixation ElementKind = "fixation"
	KindText     ElementKind = "text"
	KindImage    ElementKind = "image"
)

// Element is a single visual element drawn on a Surface.
type Element struct {
	Kind ElementKind
	// Stimulus is set for KindStimulus.
	Stimulus *types.StimulusDefinition
	// Correct is set for KindFeedback.
	Correct bool
	// Text is set for KindText.
	Text string
	// Image is set for KindImage.
	Image string
}

// Blank returns the empty frame.
func Blank() Element { return Element{Kind: KindBlank} }

// Stimulus returns a stimulus frame.
func Stimulus(def types.StimulusDefinition) Element {
	return Element{Kind: KindStimulus, Stimulus: &def}
}

// Feedback returns a correct/incorrect feedback frame.
func Feedback(correct bool) Element { return Element{Kind: KindFeedback, Correct: correct} }

// Fixation returns the fixation dot frame.
func Fixation() Element { return Element{Kind: KindFixation} }

// Text returns a text screen.
func Text(msg string) Element { return Element{Kind: KindText, Text: msg} }

// Image returns an image screen.
func Image(ref string) Element { return Element{Kind: KindImage, Image: ref} }

// Surface presents visual frames.
type Surface interface {
	// Draw stages el for the next frame. Drawing is not visible until Commit.
	Draw(el Element) error

	// Commit makes the staged content visible. It blocks until the next refresh
	// boundary and returns the instant the frame became visible.
	Commit() (time.Time, error)
}

// KeyPress is a single key event with the instant it was detected.
type KeyPress struct {
	Key string
	At  time.Time
}

// InputSource reports key presses.
type InputSource interface {
	// Poll returns the presses of keys in the set since the last poll, ordered
	// by timestamp. Presses of other keys are discarded.
	Poll(keys []string) ([]KeyPress, error)

	// WaitFor blocks until a key in the set is pressed or timeout elapses.
	// Returns nil on timeout. Returns early the instant a key is detected.
	WaitFor(ctx context.Context, keys []string, timeout time.Duration) (*KeyPress, error)

	// ClearPending discards every buffered press.
	ClearPending() error
}

// Clock measures reaction times from stimulus onset.
type Clock interface {
	// Arm zeroes the clock at the given instant.
	Arm(at time.Time)

	// Armed reports whether Arm has been called.
	Armed() bool

	// Millis returns the time from the arming instant to at, rounded to the
	// nearest millisecond.
	Millis(at time.Time) int64
}
