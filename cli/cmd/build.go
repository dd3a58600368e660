package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/justapithecus/flanker/adapter"
	redisadapter "github.com/justapithecus/flanker/adapter/redis"
	"github.com/justapithecus/flanker/adapter/webhook"
	flankerconfig "github.com/justapithecus/flanker/cli/config"
	"github.com/justapithecus/flanker/device"
	"github.com/justapithecus/flanker/lode"
	"github.com/justapithecus/flanker/log"
	"github.com/justapithecus/flanker/metrics"
	"github.com/justapithecus/flanker/policy"
	"github.com/justapithecus/flanker/results"
	"github.com/justapithecus/flanker/sim"
	"github.com/justapithecus/flanker/terminal"
	"github.com/justapithecus/flanker/trace"
	"github.com/justapithecus/flanker/types"
)

// logMaxAgeDays is the retention of rotated session logs.
const logMaxAgeDays = 90

// buildLogger creates the session logger.
// The terminal backend owns the screen, so only the sim backend logs to stderr.
func buildLogger(cfg *flankerconfig.Config, session *types.Session) (*log.Logger, error) {
	opts := log.Options{
		Level:      cfg.Logging.Level,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: logMaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}
	if cfg.Backend == flankerconfig.BackendSim {
		opts.Console = os.Stderr
	}
	if cfg.Logging.Dir != "" {
		opts.File = filepath.Join(cfg.Logging.Dir, session.Participant.Code()+".log")
	}
	return log.New(session, opts)
}

func storageBackendName(st flankerconfig.StorageConfig) string {
	if st.Backend == "" {
		return "local"
	}
	return st.Backend
}

// sinkSet is the fan-out of every results target of a session.
type sinkSet struct {
	sink policy.Sink
	// results lists every target, local CSV first.
	results []string
	csvPath string
	// lode is set when a Lode dataset is configured.
	lode *lode.LodeClient
}

// buildSinks opens the results CSV and the optional SQLite database and Lode
// dataset. Each target is instrumented so storage writes are counted.
func buildSinks(ctx context.Context, cfg *flankerconfig.Config, session *types.Session, collector *metrics.Collector, rng results.Rand) (*sinkSet, error) {
	csvSink, csvPath, err := results.CreateCSVFile(cfg.Results.Dir, session.Participant.Code(), rng, cfg.Results.Compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create results file: %w", err)
	}
	set := &sinkSet{csvPath: csvPath, results: []string{csvPath}}
	sinks := []policy.Sink{lode.NewInstrumentedSink(csvSink, collector)}

	if path := cfg.Results.SQLite; path != "" {
		db, err := results.OpenSQLite(ctx, path, session)
		if err != nil {
			_ = policy.NewMultiSink(sinks...).Close()
			return nil, fmt.Errorf("failed to open results database: %w", err)
		}
		sinks = append(sinks, lode.NewInstrumentedSink(db, collector))
		set.results = append(set.results, path)
	}

	if cfg.Storage.Backend != "" {
		lodeCfg := lode.ConfigFor(cfg.Storage.Dataset, cfg.Storage.Study, session)
		client, err := buildLodeClient(ctx, cfg.Storage, lodeCfg)
		if err != nil {
			_ = policy.NewMultiSink(sinks...).Close()
			return nil, fmt.Errorf("failed to create Lode client: %w", err)
		}
		set.lode = client
		sinks = append(sinks, lode.NewInstrumentedSink(lode.NewSink(lodeCfg, client), collector))
		set.results = append(set.results, fmt.Sprintf("%s://%s/%s", cfg.Storage.Backend, cfg.Storage.Path, lodeCfg.Dataset))
	}

	set.sink = policy.NewMultiSink(sinks...)
	return set, nil
}

// buildLodeClient creates a Lode client for the storage backend.
func buildLodeClient(ctx context.Context, st flankerconfig.StorageConfig, cfg lode.Config) (*lode.LodeClient, error) {
	switch st.Backend {
	case "fs":
		return lode.NewLodeClient(cfg, st.Path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(st.Path)
		return lode.NewLodeS3Client(ctx, cfg, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       st.Region,
			Endpoint:     st.Endpoint,
			UsePathStyle: st.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (must be fs or s3)", st.Backend)
	}
}

// buildPolicy wraps sink in the configured policy.
func buildPolicy(pc flankerconfig.PolicyConfig, sink policy.Sink, logger *log.Logger) (policy.Policy, error) {
	switch pc.Name {
	case flankerconfig.PolicyStrict:
		return policy.NewStrictPolicy(sink), nil
	case flankerconfig.PolicyBuffered:
		return policy.NewBufferedPolicy(sink, policy.BufferedConfig{
			MaxBufferOutcomes: pc.BufferOutcomes,
			Logger:            logger,
		})
	case flankerconfig.PolicyStreaming:
		return policy.NewStreamingPolicy(sink, policy.StreamingConfig{
			FlushCount:    pc.FlushCount,
			FlushInterval: pc.FlushInterval.Duration,
			Logger:        logger,
		})
	case flankerconfig.PolicyNoop:
		// Nothing reaches the sinks; results files keep their header only.
		if err := sink.Close(); err != nil {
			return nil, err
		}
		return policy.NewNoopPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown policy: %s", pc.Name)
	}
}

// openTrace creates the trace file. An empty path disables tracing and
// returns a nil writer.
func openTrace(path string, session *types.Session, frameRate int, collector *metrics.Collector) (*trace.Writer, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	tw, err := trace.NewWriter(f, session, frameRate)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	tw.OnFrame = collector.IncTraceFrame
	tw.OnError = func(error) { collector.IncTraceError() }
	return tw, nil
}

// backend is an opened presentation backend.
type backend struct {
	surface device.Surface
	input   device.InputSource
	closer  io.Closer
}

// Close releases the backend.
func (b *backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// openBackend opens the configured backend. onInterrupt is called when the
// terminal backend sees ctrl+c.
func openBackend(ctx context.Context, cfg *flankerconfig.Config, session *types.Session, seed uint64, onInterrupt func()) (*backend, error) {
	switch cfg.Backend {
	case flankerconfig.BackendSim:
		tl := sim.NewTimeline(session.StartedAt, cfg.FrameRate)
		display := sim.NewDisplay(tl)
		kb := sim.NewKeyboard(tl)

		pc := sim.DefaultParticipantConfig()
		pc.LeftKey = cfg.Keys.Left
		pc.RightKey = cfg.Keys.Right
		pc.ContinueKey = ""
		if len(cfg.Keys.Continue) > 0 {
			pc.ContinueKey = cfg.Keys.Continue[0]
		}
		pc.MeanRT = cfg.Sim.MeanRT.Duration
		pc.Accuracy = cfg.Sim.Accuracy
		pc.OmissionRate = cfg.Sim.OmissionRate
		sim.NewParticipant(pc, seed, display, kb)

		return &backend{surface: display, input: kb}, nil

	case flankerconfig.BackendTerminal:
		screen, err := terminal.Open(ctx, terminal.Config{
			FrameRate:   float64(cfg.FrameRate),
			AltScreen:   true,
			OnInterrupt: onInterrupt,
		})
		if err != nil {
			return nil, types.NewDeviceError("open", err)
		}
		return &backend{surface: screen, input: screen.Keyboard(), closer: screen}, nil

	default:
		return nil, &types.ConfigurationError{Field: "backend", Msg: fmt.Sprintf("unknown backend %q", cfg.Backend)}
	}
}

// buildAdapter creates the completion notifier. Returns nil when no adapter
// is configured.
func buildAdapter(ac flankerconfig.AdapterConfig) (adapter.Adapter, error) {
	switch ac.Type {
	case "":
		return nil, nil
	case "webhook":
		retries := webhook.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		a, err := webhook.New(webhook.Config{
			URL:     ac.URL,
			Headers: ac.Headers,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	case "redis":
		retries := redisadapter.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		a, err := redisadapter.New(redisadapter.Config{
			URL:     ac.URL,
			Channel: ac.Channel,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown adapter type: %s (must be webhook or redis)", ac.Type)
	}
}
