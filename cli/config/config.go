package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/justapithecus/flanker/stimulus"
	"github.com/justapithecus/flanker/types"
)

// Config represents a flanker.yaml (or flanker.toml) configuration file.
// Fields absent from the file keep their Defaults value.
// CLI flags always override config values.
type Config struct {
	FrameRate        int                    `yaml:"frame_rate" toml:"frame_rate"`
	Keys             KeysConfig             `yaml:"keys" toml:"keys"`
	MaxWait          Duration               `yaml:"max_wait" toml:"max_wait"`
	Durations        []types.DurationOption `yaml:"durations" toml:"durations"`
	TrainingTrials   int                    `yaml:"training_trials" toml:"training_trials"`
	Trials           int                    `yaml:"trials" toml:"trials"`
	FixationTicks    int                    `yaml:"fixation_ticks" toml:"fixation_ticks"`
	FeedbackDuration Duration               `yaml:"feedback_duration" toml:"feedback_duration"`
	InterTrialDelay  Duration               `yaml:"inter_trial_delay" toml:"inter_trial_delay"`
	Seed             *uint64                `yaml:"seed,omitempty" toml:"seed,omitempty"`
	Backend          string                 `yaml:"backend" toml:"backend"`
	Trace            string                 `yaml:"trace,omitempty" toml:"trace,omitempty"`
	Screens          ScreensConfig          `yaml:"screens" toml:"screens"`
	Results          ResultsConfig          `yaml:"results" toml:"results"`
	Storage          StorageConfig          `yaml:"storage" toml:"storage"`
	Policy           PolicyConfig           `yaml:"policy" toml:"policy"`
	Adapter          AdapterConfig          `yaml:"adapter" toml:"adapter"`
	Logging          LoggingConfig          `yaml:"logging" toml:"logging"`
	Sim              SimConfig              `yaml:"sim" toml:"sim"`
}

// KeysConfig names the reaction and control keys.
type KeysConfig struct {
	Left     string   `yaml:"left" toml:"left"`
	Right    string   `yaml:"right" toml:"right"`
	Abort    string   `yaml:"abort" toml:"abort"`
	Continue []string `yaml:"continue" toml:"continue"`
}

// ScreensConfig names the files of the non-trial screens.
type ScreensConfig struct {
	Instruction      string   `yaml:"instruction,omitempty" toml:"instruction,omitempty"`
	BeforeExperiment string   `yaml:"before_experiment,omitempty" toml:"before_experiment,omitempty"`
	End              string   `yaml:"end,omitempty" toml:"end,omitempty"`
	Insert           string   `yaml:"insert,omitempty" toml:"insert,omitempty"`
	Timeout          Duration `yaml:"timeout" toml:"timeout"`
}

// ResultsConfig configures the local results files.
type ResultsConfig struct {
	Dir      string `yaml:"dir" toml:"dir"`
	Compress bool   `yaml:"compress" toml:"compress"`
	SQLite   string `yaml:"sqlite,omitempty" toml:"sqlite,omitempty"`
}

// StorageConfig configures the optional Lode results dataset.
type StorageConfig struct {
	Dataset     string `yaml:"dataset" toml:"dataset"`
	Study       string `yaml:"study" toml:"study"`
	Backend     string `yaml:"backend,omitempty" toml:"backend,omitempty"`
	Path        string `yaml:"path,omitempty" toml:"path,omitempty"`
	Region      string `yaml:"region,omitempty" toml:"region,omitempty"`
	Endpoint    string `yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	S3PathStyle bool   `yaml:"s3_path_style,omitempty" toml:"s3_path_style,omitempty"`
}

// PolicyConfig selects how outcomes reach the sinks.
type PolicyConfig struct {
	Name           string   `yaml:"name" toml:"name"`
	BufferOutcomes int      `yaml:"buffer_outcomes" toml:"buffer_outcomes"`
	FlushCount     int      `yaml:"flush_count" toml:"flush_count"`
	FlushInterval  Duration `yaml:"flush_interval" toml:"flush_interval"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type" toml:"type"`
	URL     string            `yaml:"url" toml:"url"`
	Channel string            `yaml:"channel,omitempty" toml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" toml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty" toml:"retries,omitempty"`
}

// LoggingConfig configures the session log.
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
	// Dir holds one <participant>.log per participant. Empty disables the file.
	Dir        string `yaml:"dir" toml:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}

// SimConfig shapes the virtual participant of the sim backend.
type SimConfig struct {
	MeanRT       Duration `yaml:"mean_rt" toml:"mean_rt"`
	Accuracy     float64  `yaml:"accuracy" toml:"accuracy"`
	OmissionRate float64  `yaml:"omission_rate" toml:"omission_rate"`
}

// Backends.
const (
	BackendTerminal = "terminal"
	BackendSim      = "sim"
)

// Policy names.
const (
	PolicyStrict    = "strict"
	PolicyBuffered  = "buffered"
	PolicyStreaming = "streaming"
	// PolicyNoop discards outcomes. Used for dry runs.
	PolicyNoop = "noop"
)

// Defaults returns the standard experiment configuration: a 60 Hz display,
// left/right reaction keys, f7 to abort, 150/250/350 ms stimuli, a 4 s
// response wait and 1 s feedback and inter-trial pauses.
func Defaults() Config {
	return Config{
		FrameRate: 60,
		Keys: KeysConfig{
			Left:     "left",
			Right:    "right",
			Abort:    "f7",
			Continue: []string{"space", "return", "left", "right"},
		},
		MaxWait: Duration{4 * time.Second},
		Durations: []types.DurationOption{
			{Ticks: 9, Label: "150"},
			{Ticks: 15, Label: "250"},
			{Ticks: 21, Label: "350"},
		},
		TrainingTrials:   20,
		Trials:           100,
		FixationTicks:    60,
		FeedbackDuration: Duration{time.Second},
		InterTrialDelay:  Duration{time.Second},
		Backend:          BackendTerminal,
		Screens:          ScreensConfig{Timeout: Duration{10 * time.Minute}},
		Results:          ResultsConfig{Dir: "results"},
		Storage:          StorageConfig{Dataset: "flanker", Study: "default"},
		Policy:           PolicyConfig{Name: PolicyBuffered, BufferOutcomes: 1000},
		Logging:          LoggingConfig{Level: "info", Dir: "results", MaxSizeMB: 10, MaxBackups: 3},
		Sim: SimConfig{
			MeanRT:       Duration{420 * time.Millisecond},
			Accuracy:     0.95,
			OmissionRate: 0.02,
		},
	}
}

// Validate checks the configuration before any trial runs.
func (c *Config) Validate() error {
	if c.FrameRate <= 0 {
		return cfgErr("frame_rate", "must be > 0, got %d", c.FrameRate)
	}
	if err := c.Keys.validate(); err != nil {
		return err
	}
	if c.MaxWait.Duration <= 0 {
		return cfgErr("max_wait", "must be > 0")
	}
	if err := stimulus.ValidateDurations(c.Durations); err != nil {
		return err
	}
	for field, n := range map[string]int{
		"training_trials": c.TrainingTrials,
		"trials":          c.Trials,
		"fixation_ticks":  c.FixationTicks,
	} {
		if n < 0 {
			return cfgErr(field, "must be >= 0, got %d", n)
		}
	}
	if c.FeedbackDuration.Duration < 0 {
		return cfgErr("feedback_duration", "must be >= 0")
	}
	if c.InterTrialDelay.Duration < 0 {
		return cfgErr("inter_trial_delay", "must be >= 0")
	}
	if !slices.Contains([]string{BackendTerminal, BackendSim}, c.Backend) {
		return cfgErr("backend", "must be terminal or sim, got %q", c.Backend)
	}
	if c.Results.Dir == "" {
		return cfgErr("results.dir", "must be non-empty")
	}
	if !slices.Contains([]string{PolicyStrict, PolicyBuffered, PolicyStreaming, PolicyNoop}, c.Policy.Name) {
		return cfgErr("policy.name", "must be strict, buffered, streaming or noop, got %q", c.Policy.Name)
	}
	if c.Policy.Name == PolicyBuffered && c.Policy.BufferOutcomes <= 0 {
		return cfgErr("policy.buffer_outcomes", "must be > 0 for the buffered policy")
	}
	if c.Policy.Name == PolicyStreaming && c.Policy.FlushCount <= 0 && c.Policy.FlushInterval.Duration <= 0 {
		return cfgErr("policy", "streaming needs flush_count or flush_interval")
	}
	switch c.Storage.Backend {
	case "":
	case "fs", "s3":
		if c.Storage.Path == "" {
			return cfgErr("storage.path", "required when storage.backend is %s", c.Storage.Backend)
		}
	default:
		return cfgErr("storage.backend", "must be fs or s3, got %q", c.Storage.Backend)
	}
	switch c.Adapter.Type {
	case "":
	case "webhook", "redis":
		if c.Adapter.URL == "" {
			return cfgErr("adapter.url", "required when adapter.type is %s", c.Adapter.Type)
		}
	default:
		return cfgErr("adapter.type", "must be webhook or redis, got %q", c.Adapter.Type)
	}
	if c.Sim.Accuracy < 0 || c.Sim.Accuracy > 1 {
		return cfgErr("sim.accuracy", "must be within [0, 1]")
	}
	if c.Sim.OmissionRate < 0 || c.Sim.OmissionRate > 1 {
		return cfgErr("sim.omission_rate", "must be within [0, 1]")
	}
	return nil
}

func (k KeysConfig) validate() error {
	if k.Left == "" || k.Right == "" || k.Abort == "" {
		return cfgErr("keys", "left, right and abort must be set")
	}
	if k.Left == k.Right || k.Left == k.Abort || k.Right == k.Abort {
		return cfgErr("keys", "left, right and abort must differ")
	}
	if slices.Contains(k.Continue, k.Abort) {
		return cfgErr("keys.continue", "must not contain the abort key %q", k.Abort)
	}
	return nil
}

func cfgErr(field, format string, args ...any) error {
	return &types.ConfigurationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Duration wraps time.Duration for string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText parses a duration string. TOML decoding goes through here.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration in time.Duration notation.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
