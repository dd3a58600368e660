package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/flanker/adapter"
	flankerconfig "github.com/justapithecus/flanker/cli/config"
	"github.com/justapithecus/flanker/device"
	"github.com/justapithecus/flanker/iox"
	"github.com/justapithecus/flanker/lode"
	"github.com/justapithecus/flanker/metrics"
	"github.com/justapithecus/flanker/policy"
	"github.com/justapithecus/flanker/response"
	"github.com/justapithecus/flanker/runtime"
	"github.com/justapithecus/flanker/screens"
	"github.com/justapithecus/flanker/stimulus"
	"github.com/justapithecus/flanker/terminal"
	"github.com/justapithecus/flanker/types"
)

// publishTimeout bounds the completion notification, which is sent even when
// the session was interrupted.
const publishTimeout = 30 * time.Second

// RunCommand returns the run command.
// This is the only command that presents trials and writes results.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a flanker session (training block, then main block)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to flanker.yaml or flanker.toml",
			},
			// Participant flags
			&cli.StringFlag{
				Name:  "participant-id",
				Usage: "Participant identifier (prompted on the terminal backend when omitted)",
			},
			&cli.StringFlag{
				Name:  "participant-sex",
				Usage: "Participant sex: M or F",
			},
			&cli.IntFlag{
				Name:  "participant-age",
				Usage: "Participant age in years",
			},
			// Experiment flags
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Presentation backend: terminal or sim",
			},
			&cli.IntFlag{
				Name:  "frame-rate",
				Usage: "Display refresh rate in Hz",
			},
			&cli.IntFlag{
				Name:  "training-trials",
				Usage: "Number of training trials (with feedback)",
			},
			&cli.IntFlag{
				Name:  "trials",
				Usage: "Number of main trials",
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Random seed for trial plans (random when omitted)",
			},
			// Output flags
			&cli.StringFlag{
				Name:  "results-dir",
				Usage: "Directory of the results CSV",
			},
			&cli.BoolFlag{
				Name:  "compress",
				Usage: "Write the results CSV zstd-compressed",
			},
			&cli.StringFlag{
				Name:  "sqlite",
				Usage: "Also write outcomes to this SQLite database",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a JSON session report to this path (- for stderr)",
			},
			&cli.StringFlag{
				Name:  "trace",
				Usage: "Write a response window trace to this path",
			},
			&cli.StringFlag{
				Name:  "log-dir",
				Usage: "Directory of the per-participant session log",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Session log level: debug, info, warn, error",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress result output",
			},
			// Policy flags
			&cli.StringFlag{
				Name:  "policy",
				Usage: "Result policy: strict, buffered, streaming or noop (dry run)",
			},
			&cli.IntFlag{
				Name:  "buffer-outcomes",
				Usage: "Max buffered outcomes (buffered policy)",
			},
			&cli.IntFlag{
				Name:  "flush-count",
				Usage: "Flush after N outcomes (streaming policy)",
			},
			&cli.DurationFlag{
				Name:  "flush-interval",
				Usage: "Flush every interval (streaming policy)",
			},
			// Lode storage flags
			&cli.StringFlag{
				Name:  "study",
				Usage: "Study name for dataset partitioning",
			},
			&cli.StringFlag{
				Name:  "storage-dataset",
				Usage: "Lode dataset name",
			},
			&cli.StringFlag{
				Name:  "storage-backend",
				Usage: "Lode storage backend: fs or s3",
			},
			&cli.StringFlag{
				Name:  "storage-path",
				Usage: "Lode storage path (fs: directory, s3: bucket/prefix)",
			},
			&cli.StringFlag{
				Name:  "storage-region",
				Usage: "AWS region for S3 backend (optional, uses default chain)",
			},
			&cli.StringFlag{
				Name:  "storage-endpoint",
				Usage: "Custom S3 endpoint for S3-compatible providers",
			},
			&cli.BoolFlag{
				Name:  "storage-s3-path-style",
				Usage: "Force path-style S3 addressing",
			},
			// Adapter flags
			&cli.StringFlag{
				Name:  "adapter",
				Usage: "Completion notification adapter: webhook or redis",
			},
			&cli.StringFlag{
				Name:  "adapter-url",
				Usage: "Webhook endpoint or Redis URL",
			},
			&cli.StringSliceFlag{
				Name:  "adapter-header",
				Usage: "Webhook header as key=value (repeatable)",
			},
			&cli.StringFlag{
				Name:  "adapter-channel",
				Usage: "Redis pub/sub channel",
			},
			&cli.DurationFlag{
				Name:  "adapter-timeout",
				Usage: "Per-attempt notification timeout",
			},
			&cli.IntFlag{
				Name:  "adapter-retries",
				Usage: "Notification retry attempts",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadRunConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), runtime.ExitCodeConfigError)
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	participant, err := resolveParticipant(ctx, c, cfg.Backend)
	if err != nil {
		if types.IsUserAbort(err) || errors.Is(err, context.Canceled) {
			return cli.Exit("participant entry cancelled", runtime.ExitCodeAborted)
		}
		return cli.Exit(fmt.Sprintf("invalid participant: %v", err), runtime.ExitCodeConfigError)
	}

	session := types.NewSession(participant, time.Now())
	seed := resolveSeed(cfg)

	logger, err := buildLogger(cfg, session)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create logger: %v", err), setupExitCode(err, runtime.ExitCodeConfigError))
	}
	defer iox.DiscardClose(logger)

	logger.Info("configuration loaded", map[string]any{
		"frame_rate":      cfg.FrameRate,
		"keys":            []string{cfg.Keys.Left, cfg.Keys.Right},
		"abort_key":       cfg.Keys.Abort,
		"durations":       durationLabels(cfg.Durations),
		"training_trials": cfg.TrainingTrials,
		"trials":          cfg.Trials,
		"backend":         cfg.Backend,
		"policy":          cfg.Policy.Name,
		"seed":            seed,
	})

	collector := metrics.NewCollector(cfg.Policy.Name, cfg.Backend, storageBackendName(cfg.Storage), session.ID)

	sinks, err := buildSinks(ctx, cfg, session, collector, rand.New(rand.NewPCG(seed, 0)))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create result sinks: %v", err), setupExitCode(err, runtime.ExitCodeSinkFailure))
	}

	pol, err := buildPolicy(cfg.Policy, sinks.sink, logger)
	if err != nil {
		_ = sinks.sink.Close()
		return cli.Exit(fmt.Sprintf("failed to create policy: %v", err), runtime.ExitCodeConfigError)
	}
	policyClosed := false
	defer func() {
		if !policyClosed {
			_ = pol.Close()
		}
	}()

	notifier, err := buildAdapter(cfg.Adapter)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid adapter config: %v", err), runtime.ExitCodeConfigError)
	}
	if notifier != nil {
		defer iox.DiscardClose(notifier)
	}

	set, err := screens.Load(screens.Config{
		Instruction:      cfg.Screens.Instruction,
		BeforeExperiment: cfg.Screens.BeforeExperiment,
		End:              cfg.Screens.End,
		Insert:           cfg.Screens.Insert,
	})
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfigError)
	}

	tw, err := openTrace(cfg.Trace, session, cfg.FrameRate, collector)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create trace: %v", err), runtime.ExitCodeConfigError)
	}
	closeTrace := sync.OnceFunc(func() {
		if tw == nil {
			return
		}
		if err := tw.Close(); err != nil {
			logger.Warn("trace close failed", map[string]any{"error": err.Error()})
		}
	})
	defer closeTrace()

	be, err := openBackend(ctx, cfg, session, seed, cancel)
	if err != nil {
		return cli.Exit(err.Error(), setupExitCode(err, runtime.ExitCodeDeviceError))
	}
	closeBackend := sync.OnceFunc(func() {
		if err := be.Close(); err != nil {
			logger.Warn("backend close failed", map[string]any{"error": err.Error()})
		}
	})
	defer closeBackend()

	surface := runtime.NewCountingSurface(be.surface, collector)

	planner, err := stimulus.NewPlanner(stimulus.DefaultCatalog(), cfg.Durations, rand.New(rand.NewPCG(seed, 1)))
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfigError)
	}

	keys := runtime.KeyMap{Left: cfg.Keys.Left, Right: cfg.Keys.Right}
	var windowOpts []response.Option
	engineOpts := []runtime.EngineOption{
		runtime.WithEngineLogger(logger),
		runtime.WithEngineCollector(collector),
	}
	if tw != nil {
		windowOpts = append(windowOpts, response.WithRecorder(tw))
		engineOpts = append(engineOpts, runtime.WithEngineRecorder(tw))
	}
	window, err := response.NewWindow(response.Config{
		Keys:     keys.Ordered(),
		AbortKey: cfg.Keys.Abort,
		MaxWait:  cfg.MaxWait.Duration,
	}, surface, be.input, device.NewStopwatch(), windowOpts...)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfigError)
	}
	engine := runtime.NewTrialEngine(planner, window, be.input, keys, engineOpts...)

	runner, err := runtime.NewExperimentRunner(runtime.RunnerConfig{
		AbortKey:         cfg.Keys.Abort,
		ContinueKeys:     cfg.Keys.Continue,
		ScreenTimeout:    cfg.Screens.Timeout.Duration,
		FeedbackDuration: cfg.FeedbackDuration.Duration,
		InterTrialDelay:  cfg.InterTrialDelay.Duration,
		FixationTicks:    types.Ticks(cfg.FixationTicks),
		Screens: runtime.Screens{
			Instruction:      set.Instruction,
			BeforeExperiment: set.BeforeExperiment,
			End:              set.End,
		},
	}, engine, surface, be.input, pol,
		runtime.WithRunnerLogger(logger),
		runtime.WithRunnerCollector(collector),
	)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfigError)
	}

	startTime := time.Now()
	resultLog, runErr := runner.Run(ctx, cfg.TrainingTrials, cfg.Trials)
	duration := time.Since(startTime)

	// Restore the terminal before anything is printed.
	closeBackend()
	closeTrace()

	stats := pol.Stats()
	var triggers map[policy.FlushTrigger]int64
	if sp, ok := pol.(*policy.StreamingPolicy); ok {
		triggers = sp.FlushTriggerStats()
	}
	policyClosed = true
	if err := pol.Close(); err != nil && runErr == nil {
		runErr = &runtime.SinkError{Op: "close", Err: err}
	}

	outcome := runtime.Outcome(runErr)
	finishCtx := context.WithoutCancel(ctx)

	if sinks.lode != nil {
		if err := sinks.lode.WriteSession(finishCtx, outcome.Status, collector.Snapshot(), time.Now()); err != nil {
			logger.Warn("session record write failed", map[string]any{"error": err.Error()})
		}
		if err := putResultsFile(finishCtx, sinks.lode, sinks.csvPath); err != nil {
			logger.Warn("results file upload failed", map[string]any{"error": err.Error()})
		}
	}

	if path := c.String("report"); path != "" {
		report := runtime.BuildSessionReport(runtime.ReportInput{
			Session:       session,
			Log:           resultLog,
			Err:           runErr,
			Duration:      duration,
			PolicyName:    cfg.Policy.Name,
			PolicyStats:   stats,
			FlushTriggers: triggers,
			Snapshot:      collector.Snapshot(),
			Results:       sinks.results,
		})
		if err := runtime.WriteSessionReport(report, path); err != nil {
			logger.Warn("report write failed", map[string]any{"error": err.Error()})
		} else {
			logger.Info("report written", map[string]any{"path": path})
		}
	}

	if notifier != nil {
		event := adapter.NewSessionCompletedEvent(session, cfg.Storage.Study, outcome.Status, sinks.results,
			resultLog.Count(types.PhaseTraining), resultLog.Count(types.PhaseMain), duration, time.Now())
		pubCtx, pubCancel := context.WithTimeout(finishCtx, publishTimeout)
		if err := notifier.Publish(pubCtx, event); err != nil {
			logger.Warn("completion notification failed", map[string]any{
				"adapter": cfg.Adapter.Type,
				"error":   err.Error(),
			})
		}
		pubCancel()
	}

	if !c.Bool("quiet") {
		printSessionResult(c.App.Writer, session, outcome, resultLog, stats, cfg.Policy.Name, sinks.results, duration)
	}

	if outcome.Status == types.OutcomeCompleted {
		return cli.Exit("", runtime.ExitCodeCompleted)
	}
	return cli.Exit(outcome.Message, runtime.ExitCodeFor(outcome.Status))
}

// loadRunConfig loads the config file (or the defaults), applies flag
// overrides and validates the result.
func loadRunConfig(c *cli.Context) (*flankerconfig.Config, error) {
	var cfg *flankerconfig.Config
	if path := c.String("config"); path != "" {
		loaded, err := flankerconfig.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		d := flankerconfig.Defaults()
		cfg = &d
	}
	if err := applyFlags(c, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides cfg with every explicitly set flag.
// CLI flags always win over config values.
func applyFlags(c *cli.Context, cfg *flankerconfig.Config) error {
	setString(c, "backend", &cfg.Backend)
	setInt(c, "frame-rate", &cfg.FrameRate)
	setInt(c, "training-trials", &cfg.TrainingTrials)
	setInt(c, "trials", &cfg.Trials)
	if c.IsSet("seed") {
		seed := c.Uint64("seed")
		cfg.Seed = &seed
	}

	setString(c, "results-dir", &cfg.Results.Dir)
	if c.IsSet("compress") {
		cfg.Results.Compress = c.Bool("compress")
	}
	setString(c, "sqlite", &cfg.Results.SQLite)
	setString(c, "trace", &cfg.Trace)
	setString(c, "log-dir", &cfg.Logging.Dir)
	setString(c, "log-level", &cfg.Logging.Level)

	setString(c, "policy", &cfg.Policy.Name)
	setInt(c, "buffer-outcomes", &cfg.Policy.BufferOutcomes)
	setInt(c, "flush-count", &cfg.Policy.FlushCount)
	if c.IsSet("flush-interval") {
		cfg.Policy.FlushInterval.Duration = c.Duration("flush-interval")
	}

	setString(c, "study", &cfg.Storage.Study)
	setString(c, "storage-dataset", &cfg.Storage.Dataset)
	setString(c, "storage-backend", &cfg.Storage.Backend)
	setString(c, "storage-path", &cfg.Storage.Path)
	setString(c, "storage-region", &cfg.Storage.Region)
	setString(c, "storage-endpoint", &cfg.Storage.Endpoint)
	if c.IsSet("storage-s3-path-style") {
		cfg.Storage.S3PathStyle = c.Bool("storage-s3-path-style")
	}

	setString(c, "adapter", &cfg.Adapter.Type)
	setString(c, "adapter-url", &cfg.Adapter.URL)
	setString(c, "adapter-channel", &cfg.Adapter.Channel)
	if c.IsSet("adapter-timeout") {
		cfg.Adapter.Timeout.Duration = c.Duration("adapter-timeout")
	}
	if c.IsSet("adapter-retries") {
		retries := c.Int("adapter-retries")
		cfg.Adapter.Retries = &retries
	}
	if headers := c.StringSlice("adapter-header"); len(headers) > 0 {
		parsed, err := parseHeaders(headers)
		if err != nil {
			return err
		}
		if cfg.Adapter.Headers == nil {
			cfg.Adapter.Headers = make(map[string]string, len(parsed))
		}
		for k, v := range parsed {
			cfg.Adapter.Headers[k] = v
		}
	}
	return nil
}

func setString(c *cli.Context, name string, dst *string) {
	if c.IsSet(name) {
		*dst = c.String(name)
	}
}

func setInt(c *cli.Context, name string, dst *int) {
	if c.IsSet(name) {
		*dst = c.Int(name)
	}
}

// parseHeaders parses key=value pairs.
func parseHeaders(pairs []string) (map[string]string, error) {
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, &types.ConfigurationError{
				Field: "adapter.headers",
				Msg:   fmt.Sprintf("malformed header %q (expected key=value)", pair),
			}
		}
		headers[k] = v
	}
	return headers, nil
}

// resolveParticipant takes the participant from flags. On the terminal
// backend an incomplete participant is asked for with a form.
func resolveParticipant(ctx context.Context, c *cli.Context, backend string) (types.Participant, error) {
	p := types.Participant{
		ID:  strings.TrimSpace(c.String("participant-id")),
		Sex: strings.ToUpper(strings.TrimSpace(c.String("participant-sex"))),
		Age: c.Int("participant-age"),
	}
	err := p.Validate()
	if err == nil || backend != flankerconfig.BackendTerminal {
		return p, err
	}
	return terminal.AskParticipant(ctx, p, c.App.Reader, c.App.Writer)
}

func resolveSeed(cfg *flankerconfig.Config) uint64 {
	if cfg.Seed != nil {
		return *cfg.Seed
	}
	return rand.Uint64()
}

// setupExitCode maps a setup failure to an exit code. Errors that are neither
// configuration nor device errors get fallback.
func setupExitCode(err error, fallback int) int {
	switch {
	case types.IsConfigurationError(err):
		return runtime.ExitCodeConfigError
	case types.IsDeviceError(err):
		return runtime.ExitCodeDeviceError
	default:
		return fallback
	}
}

func durationLabels(durations []types.DurationOption) []string {
	labels := make([]string, len(durations))
	for i, d := range durations {
		labels[i] = d.Label
	}
	return labels
}

func putResultsFile(ctx context.Context, fw lode.FileWriter, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	contentType := "text/csv"
	if strings.HasSuffix(path, ".zst") {
		contentType = "application/zstd"
	}
	return fw.PutFile(ctx, filepath.Base(path), contentType, data)
}

func printSessionResult(w io.Writer, session *types.Session, outcome *types.SessionOutcome, rl *runtime.ResultLog, stats policy.Stats, policyName string, paths []string, duration time.Duration) {
	fmt.Fprintf(w, "\nsession_id=%s, participant=%s, outcome=%s, duration=%s\n",
		session.ID,
		session.Participant.Code(),
		outcome.Status,
		duration.Round(time.Millisecond),
	)
	fmt.Fprintf(w, "policy=%s\n", policyName)

	fmt.Fprintf(w, "\n=== Session Result ===\n")
	fmt.Fprintf(w, "Session ID:   %s\n", session.ID)
	fmt.Fprintf(w, "Participant:  %s\n", session.Participant.Code())
	fmt.Fprintf(w, "Outcome:      %s\n", outcome.Status)
	fmt.Fprintf(w, "Message:      %s\n", outcome.Message)
	fmt.Fprintf(w, "Duration:     %s\n", duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Training:     %d\n", rl.Count(types.PhaseTraining))
	fmt.Fprintf(w, "Main:         %d\n", rl.Count(types.PhaseMain))

	if len(paths) > 0 {
		fmt.Fprintf(w, "\n=== Results ===\n")
		for _, p := range paths {
			fmt.Fprintf(w, "  - %s\n", p)
		}
	}

	fmt.Fprintf(w, "\n=== Policy Stats ===\n")
	fmt.Fprintf(w, "Outcomes Total:     %d\n", stats.TotalOutcomes)
	fmt.Fprintf(w, "Outcomes Persisted: %d\n", stats.OutcomesPersisted)
	fmt.Fprintf(w, "Buffered:           %d\n", stats.Buffered)
	fmt.Fprintf(w, "Flushes:            %d\n", stats.FlushCount)
	fmt.Fprintf(w, "Errors:             %d\n", stats.Errors)

	if rl.Count(types.PhaseMain) > 0 {
		s := metrics.Summarize(rl.Outcomes(), types.PhaseMain)
		fmt.Fprintf(w, "\n=== Main Block ===\n")
		fmt.Fprintf(w, "Accuracy:       %.1f%%\n", s.Overall.Accuracy*100)
		fmt.Fprintf(w, "Omissions:      %d\n", s.Overall.Omissions)
		fmt.Fprintf(w, "Mean RT:        %.0f ms\n", s.Overall.RT.Mean)
		fmt.Fprintf(w, "Flanker Effect: %.0f ms\n", s.FlankerEffectMs)
	}
}
