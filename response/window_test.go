package response

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/justapithecus/flanker/device"
	"github.com/justapithecus/flanker/sim"
	"github.com/justapithecus/flanker/types"
)

// 50 Hz keeps frame arithmetic in whole milliseconds: one tick is 20ms.
const testRate = 50

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var s1 = types.StimulusDefinition{
	ID:       "zgdn_p",
	Image:    "images/zgdn_p.png",
	Correct:  types.SideRight,
	Category: types.CategoryCongruent,
}

type rig struct {
	tl      *sim.Timeline
	display *sim.Display
	kb      *sim.Keyboard
	window  *Window
	events  []Event
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{tl: sim.NewTimeline(epoch, testRate)}
	r.display = sim.NewDisplay(r.tl)
	r.kb = sim.NewKeyboard(r.tl)

	cfg := Config{Keys: []string{"left", "right"}, AbortKey: "f7", MaxWait: 4 * time.Second}
	w, err := NewWindow(cfg, r.display, r.kb, device.NewStopwatch(),
		WithRecorder(RecorderFunc(func(ev Event) { r.events = append(r.events, ev) })))
	if err != nil {
		t.Fatalf("NewWindow error: %v", err)
	}
	r.window = w
	return r
}

func plan(ticks types.Ticks) types.TrialPlan {
	return types.TrialPlan{Stimulus: s1, Duration: types.DurationOption{Ticks: ticks, Label: "x"}}
}

// tick returns the commit instant of stimulus frame n (1-based).
func tick(n int) time.Time {
	return epoch.Add(time.Duration(n) * 20 * time.Millisecond)
}

func TestWindow_KeyDuringPresentation(t *testing.T) {
	r := newRig(t)
	// pressed while frame 4 is up; observed at the tick 5 poll
	r.kb.Press("right", tick(4).Add(-time.Millisecond))

	out, err := r.window.Run(t.Context(), plan(9))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Key != "right" {
		t.Errorf("key = %q, want right", out.Key)
	}
	// armed at tick(1); key at tick(4)-1ms
	if out.ElapsedMs != 59 {
		t.Errorf("elapsed = %d, want 59", out.ElapsedMs)
	}
	if n := r.display.CountKind(device.KindStimulus); n != 4 {
		t.Errorf("stimulus frames = %d, want 4 (frame 5 onward suppressed)", n)
	}
	if n := r.display.CountKind(device.KindBlank); n != 0 {
		t.Errorf("blank frames = %d, want 0", n)
	}
	if r.window.State() != StateResolved {
		t.Errorf("state = %s, want resolved", r.window.State())
	}
}

func TestWindow_NoResponse(t *testing.T) {
	r := newRig(t)

	out, err := r.window.Run(t.Context(), plan(9))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out != types.NoResponseOutcome() {
		t.Errorf("outcome = %+v, want no response", out)
	}
	if n := r.display.CountKind(device.KindStimulus); n != 9 {
		t.Errorf("stimulus frames = %d, want 9", n)
	}
	if n := r.display.CountKind(device.KindBlank); n != 1 {
		t.Errorf("blank frames = %d, want 1", n)
	}
	// blank at tick(10), then the full wait
	if got := r.tl.Now(); !got.Equal(tick(10).Add(4 * time.Second)) {
		t.Errorf("timeline ended at %v", got.Sub(epoch))
	}
}

func TestWindow_KeyDuringWait(t *testing.T) {
	r := newRig(t)
	r.kb.Press("left", tick(10).Add(100*time.Millisecond))

	out, err := r.window.Run(t.Context(), plan(9))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Key != "left" || out.ElapsedMs != 280 {
		t.Errorf("outcome = %+v, want left/280", out)
	}
	// early return: the wait does not run to its limit
	if got := r.tl.Now(); !got.Equal(tick(10).Add(100 * time.Millisecond)) {
		t.Errorf("timeline ended at %v", got.Sub(epoch))
	}
}

func TestWindow_PreOnsetKey(t *testing.T) {
	r := newRig(t)
	r.kb.Press("left", epoch)

	out, err := r.window.Run(t.Context(), plan(9))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Key != "left" || out.ElapsedMs != 0 {
		t.Errorf("outcome = %+v, want left/0", out)
	}
	if len(r.display.Frames()) != 0 {
		t.Errorf("frames = %d, want 0", len(r.display.Frames()))
	}
}

func TestWindow_TieBreak(t *testing.T) {
	tests := []struct {
		name    string
		presses []device.KeyPress
		want    string
	}{
		{
			name: "equal timestamps use key order",
			presses: []device.KeyPress{
				{Key: "right", At: tick(2).Add(5 * time.Millisecond)},
				{Key: "left", At: tick(2).Add(5 * time.Millisecond)},
			},
			want: "left",
		},
		{
			name: "earliest wins",
			presses: []device.KeyPress{
				{Key: "left", At: tick(2).Add(9 * time.Millisecond)},
				{Key: "right", At: tick(2).Add(3 * time.Millisecond)},
			},
			want: "right",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			for _, p := range tt.presses {
				r.kb.Press(p.Key, p.At)
			}
			out, err := r.window.Run(t.Context(), plan(9))
			if err != nil {
				t.Fatalf("Run error: %v", err)
			}
			if out.Key != tt.want {
				t.Errorf("key = %q, want %q", out.Key, tt.want)
			}
		})
	}
}

func TestWindow_NonQualifyingKeysIgnored(t *testing.T) {
	r := newRig(t)
	r.kb.Press("space", tick(2))

	out, err := r.window.Run(t.Context(), plan(3))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Responded() {
		t.Errorf("outcome = %+v, want no response", out)
	}
}

func TestWindow_Abort(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
	}{
		{"during presentation", tick(2).Add(time.Millisecond)},
		{"during wait", tick(10).Add(time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			r.kb.Press("f7", tt.at)
			_, err := r.window.Run(t.Context(), plan(9))
			if !errors.Is(err, types.ErrUserAbort) {
				t.Errorf("error = %v, want ErrUserAbort", err)
			}
		})
	}
}

func TestWindow_AbortWinsOverReactionKey(t *testing.T) {
	r := newRig(t)
	r.kb.Press("left", tick(1).Add(time.Millisecond))
	r.kb.Press("f7", tick(1).Add(2*time.Millisecond))

	_, err := r.window.Run(t.Context(), plan(9))
	if !errors.Is(err, types.ErrUserAbort) {
		t.Errorf("error = %v, want ErrUserAbort", err)
	}
}

func TestWindow_DeviceErrors(t *testing.T) {
	t.Run("poll", func(t *testing.T) {
		r := newRig(t)
		r.kb.FailPoll = sim.ErrInjected
		_, err := r.window.Run(t.Context(), plan(9))
		if !types.IsDeviceError(err) || !errors.Is(err, sim.ErrInjected) {
			t.Errorf("error = %v, want DeviceError wrapping ErrInjected", err)
		}
	})

	t.Run("commit", func(t *testing.T) {
		r := newRig(t)
		r.display.FailCommitAt = 3
		_, err := r.window.Run(t.Context(), plan(9))
		var devErr *types.DeviceError
		if !errors.As(err, &devErr) || devErr.Op != "commit" {
			t.Errorf("error = %v, want commit DeviceError", err)
		}
	})
}

func TestWindow_Cancelled(t *testing.T) {
	r := newRig(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := r.window.Run(ctx, plan(9))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestWindow_TraceEvents(t *testing.T) {
	r := newRig(t)
	r.kb.Press("right", tick(2).Add(time.Millisecond))

	if _, err := r.window.Run(t.Context(), plan(9)); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	var kinds []EventKind
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind)
	}
	want := []EventKind{EventArmed, EventTick, EventTick, EventTick, EventKey, EventResolved}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
	if last := r.events[len(r.events)-1]; last.ElapsedMs != 21 {
		t.Errorf("resolved elapsed = %d, want 21", last.ElapsedMs)
	}
}

func TestWindow_ElapsedConsistency(t *testing.T) {
	r := newRig(t)
	p := sim.DefaultParticipantConfig()
	p.OmissionRate = 0.3
	sim.NewParticipant(p, 42, r.display, r.kb)

	for i := range 200 {
		out, err := r.window.Run(t.Context(), plan(types.Ticks(1+i%21)))
		if err != nil {
			t.Fatalf("trial %d: Run error: %v", i, err)
		}
		if out.Responded() && out.ElapsedMs < 0 {
			t.Errorf("trial %d: negative elapsed %d", i, out.ElapsedMs)
		}
		if !out.Responded() && out.ElapsedMs != types.TimedOut {
			t.Errorf("trial %d: no response with elapsed %d", i, out.ElapsedMs)
		}
		if out.ElapsedMs == types.TimedOut && out.Key != types.NoResponse {
			t.Errorf("trial %d: timed out with key %q", i, out.Key)
		}
		_ = r.kb.ClearPending()
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no keys", Config{AbortKey: "f7", MaxWait: time.Second}},
		{"duplicate", Config{Keys: []string{"left", "left"}, AbortKey: "f7", MaxWait: time.Second}},
		{"abort collides", Config{Keys: []string{"left", "f7"}, AbortKey: "f7", MaxWait: time.Second}},
		{"reserved", Config{Keys: []string{types.NoResponse}, AbortKey: "f7", MaxWait: time.Second}},
		{"no abort", Config{Keys: []string{"left"}, MaxWait: time.Second}},
		{"zero wait", Config{Keys: []string{"left"}, AbortKey: "f7"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); !types.IsConfigurationError(err) {
				t.Errorf("Validate = %v, want ConfigurationError", err)
			}
		})
	}
}
