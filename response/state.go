package response

import (
	"fmt"
	"time"
)

// State is a response window state.
type State int

const (
	// StateIdle is the state before the first poll.
	StateIdle State = iota
	// StatePresenting is the tick loop: the stimulus is on screen.
	StatePresenting
	// StateWaiting is the bounded wait after the stimulus was removed.
	StateWaiting
	// StateResolved is terminal: the outcome is known.
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePresenting:
		return "presenting"
	case StateWaiting:
		return "waiting"
	case StateResolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventKind identifies a traced window transition.
type EventKind string

// Event kinds.
const (
	// EventTrialStart is emitted by the trial engine before the window runs.
	EventTrialStart EventKind = "trial_start"
	// EventArmed marks the first stimulus commit; the clock is zeroed here.
	EventArmed EventKind = "armed"
	// EventTick marks a committed stimulus frame.
	EventTick EventKind = "tick"
	// EventKey marks the qualifying key that resolved the window.
	EventKey EventKind = "key"
	// EventBlank marks the committed blank frame that starts the wait.
	EventBlank EventKind = "blank"
	// EventResolved marks the terminal transition.
	EventResolved EventKind = "resolved"
)

// Event is one traced transition of a response window.
type Event struct {
	Kind       EventKind `msgpack:"kind" json:"kind"`
	State      string    `msgpack:"state" json:"state"`
	Phase      string    `msgpack:"phase,omitempty" json:"phase,omitempty"`
	Index      int       `msgpack:"index,omitempty" json:"index,omitempty"`
	StimulusID string    `msgpack:"stimulus_id,omitempty" json:"stimulus_id,omitempty"`
	Ticks      int       `msgpack:"ticks,omitempty" json:"ticks,omitempty"`
	Tick       int       `msgpack:"tick,omitempty" json:"tick,omitempty"`
	Key        string    `msgpack:"key,omitempty" json:"key,omitempty"`
	ElapsedMs  int64     `msgpack:"elapsed_ms,omitempty" json:"elapsed_ms,omitempty"`
	At         time.Time `msgpack:"at" json:"at"`
}

// Recorder receives window transitions.
// Implementations must not block; recording is best-effort.
type Recorder interface {
	Record(ev Event)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ev Event)

// Record implements Recorder.
func (f RecorderFunc) Record(ev Event) { f(ev) }

type nopRecorder struct{}

func (nopRecorder) Record(Event) {}
