// Package response implements the response window: the race between stimulus
// presentation and keyed input that resolves a single trial.
package response

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/flanker/device"
	"github.com/justapithecus/flanker/types"
)

// Config configures a response window.
type Config struct {
	// Keys are the reaction keys in tie-break order.
	Keys []string
	// AbortKey ends the session when observed on any poll.
	AbortKey string
	// MaxWait bounds the waiting phase after presentation.
	MaxWait time.Duration
}

// Validate checks the window configuration.
func (c Config) Validate() error {
	if len(c.Keys) == 0 {
		return &types.ConfigurationError{Field: "keys", Msg: "at least one reaction key is required"}
	}
	seen := make(map[string]struct{}, len(c.Keys)+1)
	for _, k := range append(append([]string(nil), c.Keys...), c.AbortKey) {
		if k == "" {
			return &types.ConfigurationError{Field: "keys", Msg: "key names must be non-empty"}
		}
		if k == types.NoResponse {
			return &types.ConfigurationError{Field: "keys", Msg: fmt.Sprintf("%q is reserved", k)}
		}
		if _, dup := seen[k]; dup {
			return &types.ConfigurationError{Field: "keys", Msg: fmt.Sprintf("duplicate key %q", k)}
		}
		seen[k] = struct{}{}
	}
	if c.MaxWait <= 0 {
		return &types.ConfigurationError{Field: "max_wait", Msg: "must be > 0"}
	}
	return nil
}

// Window races a stimulus presentation against keyed input.
//
// A window is reused across trials but runs one trial at a time.
// State transitions:
//
//	Idle -> Presenting -> Resolved
//	Idle -> Presenting -> Waiting -> Resolved
type Window struct {
	cfg      Config
	surface  device.Surface
	input    device.InputSource
	clock    device.Clock
	recorder Recorder

	pollKeys []string
	rank     map[string]int
	state    State
}

// Option configures a Window.
type Option func(*Window)

// WithRecorder traces every transition to rec.
func WithRecorder(rec Recorder) Option {
	return func(w *Window) {
		if rec != nil {
			w.recorder = rec
		}
	}
}

// NewWindow creates a response window.
func NewWindow(cfg Config, surface device.Surface, input device.InputSource, clock device.Clock, opts ...Option) (*Window, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if surface == nil || input == nil || clock == nil {
		return nil, errors.New("response window requires surface, input and clock")
	}

	w := &Window{
		cfg:      cfg,
		surface:  surface,
		input:    input,
		clock:    clock,
		recorder: nopRecorder{},
		rank:     make(map[string]int, len(cfg.Keys)+1),
	}
	w.pollKeys = append(append([]string(nil), cfg.Keys...), cfg.AbortKey)
	for i, k := range w.pollKeys {
		w.rank[k] = i
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// State returns the state reached by the most recent Run.
func (w *Window) State() State {
	return w.state
}

// Run presents plan and resolves the participant's response.
//
// The clock is armed at the instant the first stimulus frame is committed.
// Each tick polls before drawing, so a key observed during tick n suppresses
// frame n and every later frame. If presentation completes without a key, a
// blank frame is committed and the window waits up to MaxWait.
//
// Errors: *types.DeviceError on surface or input failure, types.ErrUserAbort
// when the abort key is observed, the context error on cancellation.
func (w *Window) Run(ctx context.Context, plan types.TrialPlan) (types.ResponseOutcome, error) {
	w.state = StateIdle
	armed := false
	stim := device.Stimulus(plan.Stimulus)

	w.transition(StatePresenting)
	for tick := 1; tick <= int(plan.Duration.Ticks); tick++ {
		if err := ctx.Err(); err != nil {
			return types.ResponseOutcome{}, err
		}

		presses, err := w.input.Poll(w.pollKeys)
		if err != nil {
			return types.ResponseOutcome{}, types.NewDeviceError("poll", err)
		}
		if kp := w.earliest(presses); kp != nil {
			if kp.Key == w.cfg.AbortKey {
				return types.ResponseOutcome{}, types.ErrUserAbort
			}
			var elapsed int64
			if armed {
				elapsed = w.clock.Millis(kp.At)
			}
			return w.resolve(kp, elapsed, tick), nil
		}

		if err := w.surface.Draw(stim); err != nil {
			return types.ResponseOutcome{}, types.NewDeviceError("draw", err)
		}
		at, err := w.surface.Commit()
		if err != nil {
			return types.ResponseOutcome{}, types.NewDeviceError("commit", err)
		}
		if !armed {
			w.clock.Arm(at)
			armed = true
			w.recorder.Record(Event{Kind: EventArmed, State: w.state.String(), Tick: tick, At: at})
		}
		w.recorder.Record(Event{Kind: EventTick, State: w.state.String(), Tick: tick, At: at})
	}

	if err := w.surface.Draw(device.Blank()); err != nil {
		return types.ResponseOutcome{}, types.NewDeviceError("draw", err)
	}
	at, err := w.surface.Commit()
	if err != nil {
		return types.ResponseOutcome{}, types.NewDeviceError("commit", err)
	}
	w.transition(StateWaiting)
	w.recorder.Record(Event{Kind: EventBlank, State: w.state.String(), At: at})

	kp, err := w.input.WaitFor(ctx, w.pollKeys, w.cfg.MaxWait)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.ResponseOutcome{}, ctxErr
		}
		return types.ResponseOutcome{}, types.NewDeviceError("wait", err)
	}
	if kp == nil {
		w.transition(StateResolved)
		out := types.NoResponseOutcome()
		w.recorder.Record(Event{Kind: EventResolved, State: w.state.String(), Key: out.Key, ElapsedMs: out.ElapsedMs, At: time.Now()})
		return out, nil
	}
	if kp.Key == w.cfg.AbortKey {
		return types.ResponseOutcome{}, types.ErrUserAbort
	}
	return w.resolve(kp, w.clock.Millis(kp.At), 0), nil
}

func (w *Window) resolve(kp *device.KeyPress, elapsed int64, tick int) types.ResponseOutcome {
	w.recorder.Record(Event{Kind: EventKey, State: w.state.String(), Tick: tick, Key: kp.Key, At: kp.At})
	w.transition(StateResolved)
	out := types.ResponseOutcome{Key: kp.Key, ElapsedMs: elapsed}
	w.recorder.Record(Event{Kind: EventResolved, State: w.state.String(), Key: out.Key, ElapsedMs: out.ElapsedMs, At: kp.At})
	return out
}

func (w *Window) transition(to State) {
	w.state = to
}

// earliest returns the qualifying press that resolves the window, or nil.
// The abort key wins over any reaction key in the same batch. Otherwise the
// earliest timestamp wins, ties broken by configured key order.
func (w *Window) earliest(presses []device.KeyPress) *device.KeyPress {
	var best *device.KeyPress
	for i := range presses {
		p := &presses[i]
		r, ok := w.rank[p.Key]
		if !ok {
			continue
		}
		if p.Key == w.cfg.AbortKey {
			return p
		}
		if best == nil || p.At.Before(best.At) || (p.At.Equal(best.At) && r < w.rank[best.Key]) {
			best = p
		}
	}
	return best
}
