// Package runtime implements flanker session orchestration: the trial engine,
// the experiment runner and outcome classification.
package runtime

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"

	"github.com/justapithecus/flanker/device"
	"github.com/justapithecus/flanker/log"
	"github.com/justapithecus/flanker/metrics"
	"github.com/justapithecus/flanker/policy"
	"github.com/justapithecus/flanker/types"
)

// flushTimeout bounds the final flush, which runs even when the session
// context is already cancelled.
const flushTimeout = 30 * time.Second

// Screens holds the optional non-trial screens of a session.
// A nil screen is skipped.
type Screens struct {
	// Instruction is shown before the training block.
	Instruction *device.Element
	// BeforeExperiment is shown between the training and main blocks.
	BeforeExperiment *device.Element
	// End is shown after the results are flushed.
	End *device.Element
}

// RunnerConfig configures an ExperimentRunner.
type RunnerConfig struct {
	// AbortKey ends the session from any wait.
	AbortKey string
	// ContinueKeys dismiss a screen.
	ContinueKeys []string
	// ScreenTimeout bounds how long a screen waits to be dismissed.
	ScreenTimeout time.Duration
	// FeedbackDuration is how long training feedback stays on screen.
	FeedbackDuration time.Duration
	// InterTrialDelay is the blank pause after each main trial.
	InterTrialDelay time.Duration
	// FixationTicks is the number of fixation frames before the main block.
	FixationTicks types.Ticks
	// Screens are the optional non-trial screens.
	Screens Screens
}

// Validate checks the runner configuration.
func (c RunnerConfig) Validate() error {
	if c.AbortKey == "" {
		return &types.ConfigurationError{Field: "keys.abort", Msg: "must be non-empty"}
	}
	if c.FeedbackDuration < 0 {
		return &types.ConfigurationError{Field: "feedback_duration", Msg: "must be >= 0"}
	}
	if c.InterTrialDelay < 0 {
		return &types.ConfigurationError{Field: "inter_trial_delay", Msg: "must be >= 0"}
	}
	if c.FixationTicks < 0 {
		return &types.ConfigurationError{Field: "fixation_ticks", Msg: "must be >= 0"}
	}
	if c.ScreenTimeout <= 0 && (c.Screens.Instruction != nil || c.Screens.BeforeExperiment != nil || c.Screens.End != nil) {
		return &types.ConfigurationError{Field: "screens.timeout", Msg: "must be > 0 when screens are configured"}
	}
	return nil
}

// ExperimentRunner drives a whole session: training block with feedback,
// main block, and the guaranteed flush of every collected outcome.
type ExperimentRunner struct {
	cfg       RunnerConfig
	engine    *TrialEngine
	surface   device.Surface
	input     device.InputSource
	sink      policy.Policy
	logger    *log.Logger
	collector *metrics.Collector
	log       *ResultLog
}

// RunnerOption configures an ExperimentRunner.
type RunnerOption func(*ExperimentRunner)

// WithRunnerLogger sets the session logger.
func WithRunnerLogger(l *log.Logger) RunnerOption {
	return func(r *ExperimentRunner) { r.logger = l }
}

// WithRunnerCollector sets the metrics collector.
func WithRunnerCollector(c *metrics.Collector) RunnerOption {
	return func(r *ExperimentRunner) { r.collector = c }
}

// NewExperimentRunner creates a runner.
func NewExperimentRunner(cfg RunnerConfig, engine *TrialEngine, surface device.Surface, input device.InputSource, sink policy.Policy, opts ...RunnerOption) (*ExperimentRunner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &ExperimentRunner{
		cfg:     cfg,
		engine:  engine,
		surface: surface,
		input:   input,
		sink:    sink,
		logger:  log.NewNop(),
		log:     NewResultLog(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Log returns the result log. It is complete once Run returns.
func (r *ExperimentRunner) Log() *ResultLog {
	return r.log
}

// Run executes the session and returns the result log.
//
// The sink is flushed exactly once on every exit path: normal completion,
// participant abort, device failure, context cancellation and panic. The log
// is returned on every path, including errors, and holds every outcome
// collected before the session ended.
func (r *ExperimentRunner) Run(ctx context.Context, training, main int) (_ *ResultLog, err error) {
	if training < 0 || main < 0 {
		return r.log, &types.ConfigurationError{Field: "trials", Msg: "trial counts must be >= 0"}
	}

	flushed := false
	defer func() {
		if !flushed {
			// panic unwinding: keep whatever we have
			_ = r.flush(ctx)
		}
	}()

	r.collector.IncSessionStarted()
	r.logger.Info("session started", map[string]any{
		"training_trials": training,
		"main_trials":     main,
	})

	err = r.runBlocks(ctx, training, main)

	flushed = true
	if flushErr := r.flush(ctx); flushErr != nil {
		err = multierr.Append(err, flushErr)
	}

	r.logEnd(err)

	if err == nil && r.cfg.Screens.End != nil {
		// The results are safe; an abort here changes nothing.
		if screenErr := r.showScreen(ctx, *r.cfg.Screens.End); screenErr != nil && !types.IsUserAbort(screenErr) {
			err = screenErr
		}
	}
	return r.log, err
}

func (r *ExperimentRunner) runBlocks(ctx context.Context, training, main int) error {
	if r.cfg.Screens.Instruction != nil {
		if err := r.showScreen(ctx, *r.cfg.Screens.Instruction); err != nil {
			return err
		}
	}

	for i := range training {
		out, err := r.engine.RunTrial(ctx, types.PhaseTraining, i)
		if err != nil {
			return err
		}
		if err := r.record(ctx, out); err != nil {
			return err
		}
		if err := r.checkAbort(); err != nil {
			return err
		}
		if err := r.present(device.Feedback(out.Correct)); err != nil {
			return err
		}
		if err := r.pause(ctx, r.cfg.FeedbackDuration); err != nil {
			return err
		}
	}

	if r.cfg.Screens.BeforeExperiment != nil {
		if err := r.showScreen(ctx, *r.cfg.Screens.BeforeExperiment); err != nil {
			return err
		}
	}

	// The trial clears pending input, so the abort key is polled on every
	// fixation frame and once more before the first stimulus.
	for range int(r.cfg.FixationTicks) {
		if err := r.checkAbort(); err != nil {
			return err
		}
		if err := r.present(device.Fixation()); err != nil {
			return err
		}
	}
	if err := r.checkAbort(); err != nil {
		return err
	}

	for i := range main {
		out, err := r.engine.RunTrial(ctx, types.PhaseMain, i)
		if err != nil {
			return err
		}
		if err := r.record(ctx, out); err != nil {
			return err
		}
		if err := r.present(device.Blank()); err != nil {
			return err
		}
		if err := r.pause(ctx, r.cfg.InterTrialDelay); err != nil {
			return err
		}
	}
	return nil
}

// record appends to the log first so an outcome is never lost to a sink error.
func (r *ExperimentRunner) record(ctx context.Context, out types.TrialOutcome) error {
	r.log.Append(out)
	if err := r.sink.Append(ctx, out); err != nil {
		return &SinkError{Op: "append", Err: err}
	}
	return nil
}

func (r *ExperimentRunner) flush(ctx context.Context) error {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()

	err := r.sink.Flush(flushCtx)
	stats := r.sink.Stats()
	r.collector.AbsorbPolicyStats(stats.TotalOutcomes, stats.OutcomesPersisted, stats.FlushCount, stats.Errors)
	if err != nil {
		r.logger.Error("result flush failed", map[string]any{
			"error":    err.Error(),
			"buffered": stats.Buffered,
		})
		return &SinkError{Op: "flush", Err: err}
	}
	r.logger.Info("results flushed", map[string]any{
		"outcomes":  r.log.Len(),
		"persisted": stats.OutcomesPersisted,
	})
	return nil
}

func (r *ExperimentRunner) present(el device.Element) error {
	if err := r.surface.Draw(el); err != nil {
		return types.NewDeviceError("draw", err)
	}
	if _, err := r.surface.Commit(); err != nil {
		return types.NewDeviceError("commit", err)
	}
	return nil
}

// checkAbort consumes pending input and reports whether the abort key is
// among it. Other keys are dropped.
func (r *ExperimentRunner) checkAbort() error {
	presses, err := r.input.Poll([]string{r.cfg.AbortKey})
	if err != nil {
		return types.NewDeviceError("poll", err)
	}
	if len(presses) > 0 {
		return types.ErrUserAbort
	}
	return nil
}

// pause holds the current frame for d. Only the abort key ends it early.
func (r *ExperimentRunner) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	kp, err := r.input.WaitFor(ctx, []string{r.cfg.AbortKey}, d)
	return r.waitResult(ctx, kp, err)
}

// showScreen presents el until a continue key, the abort key or the timeout.
func (r *ExperimentRunner) showScreen(ctx context.Context, el device.Element) error {
	if err := r.input.ClearPending(); err != nil {
		return types.NewDeviceError("clear", err)
	}
	if err := r.present(el); err != nil {
		return err
	}
	keys := append([]string{r.cfg.AbortKey}, r.cfg.ContinueKeys...)
	kp, err := r.input.WaitFor(ctx, keys, r.cfg.ScreenTimeout)
	if err := r.waitResult(ctx, kp, err); err != nil {
		return err
	}
	return r.present(device.Blank())
}

func (r *ExperimentRunner) waitResult(ctx context.Context, kp *device.KeyPress, err error) error {
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return types.NewDeviceError("wait", err)
	}
	if kp != nil && kp.Key == r.cfg.AbortKey {
		return types.ErrUserAbort
	}
	return nil
}

func (r *ExperimentRunner) logEnd(err error) {
	status := Classify(err)
	fields := map[string]any{
		"outcome":  string(status),
		"training": r.log.Count(types.PhaseTraining),
		"main":     r.log.Count(types.PhaseMain),
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	switch status {
	case types.OutcomeCompleted:
		r.collector.IncSessionCompleted()
		r.logger.Info("session completed", fields)
	case types.OutcomeAborted:
		r.collector.IncSessionAborted()
		r.logger.Warn("session aborted by participant", fields)
	case types.OutcomeInterrupted:
		r.collector.IncSessionInterrupted()
		r.logger.Warn("session interrupted", fields)
	default:
		if errors.As(err, new(*types.DeviceError)) {
			r.collector.IncDeviceError()
		}
		r.collector.IncSessionFailed()
		r.logger.Error("session failed", fields)
	}
}
