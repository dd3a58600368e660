package runtime

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/justapithecus/flanker/device"
	"github.com/justapithecus/flanker/metrics"
	"github.com/justapithecus/flanker/policy"
	"github.com/justapithecus/flanker/response"
	"github.com/justapithecus/flanker/sim"
	"github.com/justapithecus/flanker/stimulus"
	"github.com/justapithecus/flanker/types"
)

// 50 Hz keeps frame arithmetic in whole milliseconds: one tick is 20ms.
const testRate = 50

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var testDurations = []types.DurationOption{
	{Ticks: 9, Label: "150"},
	{Ticks: 15, Label: "250"},
	{Ticks: 21, Label: "350"},
}

var testKeys = KeyMap{Left: "left", Right: "right"}

// fixedRand always returns the same index, modulo n.
type fixedRand int

func (r fixedRand) IntN(n int) int { return int(r) % n }

// countingPolicy counts Flush calls on a wrapped policy.
type countingPolicy struct {
	policy.Policy
	mu      sync.Mutex
	flushes int
}

func (p *countingPolicy) Flush(ctx context.Context) error {
	p.mu.Lock()
	p.flushes++
	p.mu.Unlock()
	return p.Policy.Flush(ctx)
}

func (p *countingPolicy) Flushes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushes
}

type rig struct {
	tl        *sim.Timeline
	display   *sim.Display
	kb        *sim.Keyboard
	sink      *policy.StubSink
	policy    *countingPolicy
	collector *metrics.Collector
	events    []response.Event
	engine    *TrialEngine
}

type rigOptions struct {
	rng stimulus.Rand
	// surface wraps the display when set.
	surface func(device.Surface) device.Surface
}

func newRig(t *testing.T, opts rigOptions) *rig {
	t.Helper()
	r := &rig{tl: sim.NewTimeline(epoch, testRate)}
	r.display = sim.NewDisplay(r.tl)
	r.kb = sim.NewKeyboard(r.tl)
	r.sink = policy.NewStubSink()
	r.collector = metrics.NewCollector("buffered", "sim", "stub", "sess-test")

	buffered, err := policy.NewBufferedPolicy(r.sink, policy.DefaultBufferedConfig())
	if err != nil {
		t.Fatalf("NewBufferedPolicy error: %v", err)
	}
	r.policy = &countingPolicy{Policy: buffered}

	rng := opts.rng
	if rng == nil {
		rng = rand.New(rand.NewPCG(7, 11))
	}
	planner, err := stimulus.NewPlanner(stimulus.DefaultCatalog(), testDurations, rng)
	if err != nil {
		t.Fatalf("NewPlanner error: %v", err)
	}

	var surface device.Surface = r.display
	if opts.surface != nil {
		surface = opts.surface(surface)
	}
	surface = NewCountingSurface(surface, r.collector)

	rec := response.RecorderFunc(func(ev response.Event) { r.events = append(r.events, ev) })
	window, err := response.NewWindow(response.Config{
		Keys:     testKeys.Ordered(),
		AbortKey: "f7",
		MaxWait:  4 * time.Second,
	}, surface, r.kb, device.NewStopwatch(), response.WithRecorder(rec))
	if err != nil {
		t.Fatalf("NewWindow error: %v", err)
	}

	r.engine = NewTrialEngine(planner, window, r.kb, testKeys,
		WithEngineRecorder(rec),
		WithEngineCollector(r.collector))
	return r
}

func (r *rig) runner(t *testing.T, cfg RunnerConfig) *ExperimentRunner {
	t.Helper()
	surface := NewCountingSurface(r.display, r.collector)
	runner, err := NewExperimentRunner(cfg, r.engine, surface, r.kb, r.policy, WithRunnerCollector(r.collector))
	if err != nil {
		t.Fatalf("NewExperimentRunner error: %v", err)
	}
	return runner
}

// attentive attaches a participant that always answers correctly.
func (r *rig) attentive(seed uint64) *sim.Participant {
	cfg := sim.DefaultParticipantConfig()
	cfg.Accuracy = 1
	cfg.OmissionRate = 0
	return sim.NewParticipant(cfg, seed, r.display, r.kb)
}

func defaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		AbortKey:         "f7",
		ContinueKeys:     []string{"space", "return"},
		ScreenTimeout:    time.Minute,
		FeedbackDuration: time.Second,
		InterTrialDelay:  time.Second,
		FixationTicks:    3,
	}
}

// tick returns the commit instant of frame n (1-based) from the epoch.
func tick(n int) time.Time {
	return epoch.Add(time.Duration(n) * 20 * time.Millisecond)
}
