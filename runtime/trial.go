package runtime

import (
	"context"

	"github.com/justapithecus/flanker/device"
	"github.com/justapithecus/flanker/log"
	"github.com/justapithecus/flanker/metrics"
	"github.com/justapithecus/flanker/response"
	"github.com/justapithecus/flanker/stimulus"
	"github.com/justapithecus/flanker/types"
)

// KeyMap binds response sides to key names.
type KeyMap struct {
	Left  string
	Right string
}

// KeyFor returns the key answering side.
func (k KeyMap) KeyFor(side types.Side) string {
	if side == types.SideRight {
		return k.Right
	}
	return k.Left
}

// Ordered returns the reaction keys in tie-break order.
func (k KeyMap) Ordered() []string {
	return []string{k.Left, k.Right}
}

// TrialEngine runs single trials: plan, clear stale input, race the window,
// score.
type TrialEngine struct {
	planner   *stimulus.Planner
	window    *response.Window
	input     device.InputSource
	keys      KeyMap
	recorder  response.Recorder
	logger    *log.Logger
	collector *metrics.Collector
}

// EngineOption configures a TrialEngine.
type EngineOption func(*TrialEngine)

// WithEngineRecorder traces trial starts to rec. Pass the same recorder to
// the window so the stream interleaves correctly.
func WithEngineRecorder(rec response.Recorder) EngineOption {
	return func(e *TrialEngine) { e.recorder = rec }
}

// WithEngineLogger logs each outcome at debug level.
func WithEngineLogger(l *log.Logger) EngineOption {
	return func(e *TrialEngine) { e.logger = l }
}

// WithEngineCollector counts trials.
func WithEngineCollector(c *metrics.Collector) EngineOption {
	return func(e *TrialEngine) { e.collector = c }
}

// NewTrialEngine creates a trial engine.
func NewTrialEngine(planner *stimulus.Planner, window *response.Window, input device.InputSource, keys KeyMap, opts ...EngineOption) *TrialEngine {
	e := &TrialEngine{
		planner: planner,
		window:  window,
		input:   input,
		keys:    keys,
		logger:  log.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunTrial runs one trial and returns its outcome.
// A trial without a response is a valid outcome, not an error.
func (e *TrialEngine) RunTrial(ctx context.Context, phase types.Phase, index int) (types.TrialOutcome, error) {
	plan := e.planner.Generate()

	if e.recorder != nil {
		e.recorder.Record(response.Event{
			Kind:       response.EventTrialStart,
			State:      response.StateIdle.String(),
			Phase:      string(phase),
			Index:      index,
			StimulusID: plan.Stimulus.ID,
			Ticks:      int(plan.Duration.Ticks),
		})
	}

	if err := e.input.ClearPending(); err != nil {
		return types.TrialOutcome{}, types.NewDeviceError("clear", err)
	}

	resp, err := e.window.Run(ctx, plan)
	if err != nil {
		return types.TrialOutcome{}, err
	}

	correct := resp.Responded() && resp.Key == e.keys.KeyFor(plan.Stimulus.Correct)
	outcome := types.TrialOutcome{
		Phase:         phase,
		Index:         index,
		Response:      resp,
		Correct:       correct,
		Category:      plan.Stimulus.Category,
		DurationLabel: plan.Duration.Label,
		StimulusID:    plan.Stimulus.ID,
	}

	e.collector.IncTrial(phase == types.PhaseTraining, resp.Responded(), correct)
	e.logger.Debug("trial resolved", map[string]any{
		"phase":      string(phase),
		"trial":      index,
		"stimulus":   plan.Stimulus.ID,
		"ticks":      int(plan.Duration.Ticks),
		"key":        resp.Key,
		"elapsed_ms": resp.ElapsedMs,
		"correct":    correct,
	})
	return outcome, nil
}
