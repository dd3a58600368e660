package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/flanker/types"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `frame_rate: 120
keys:
  left: z
  right: m
  abort: escape
  continue: [space]
max_wait: 2500ms
durations:
  - ticks: 12
    label: "100"
  - ticks: 24
    label: "200"
training_trials: 4
trials: 40
fixation_ticks: 30
feedback_duration: 500ms
inter_trial_delay: 750ms
seed: 42
backend: sim
trace: ./trace.msgpack

screens:
  instruction: images/instruction.png
  before_experiment: texts/before.txt
  end: texts/end.txt
  timeout: 2m

results:
  dir: ./out
  compress: true
  sqlite: ./out/flanker.db

storage:
  dataset: flanker
  study: pilot
  backend: s3
  path: lab-bucket/flanker
  region: eu-central-1
  endpoint: https://minio.lab.example.com
  s3_path_style: true

policy:
  name: streaming
  flush_count: 10
  flush_interval: 30s

adapter:
  type: webhook
  url: https://hooks.example.com/flanker
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 3

logging:
  level: debug
  dir: ./logs

sim:
  mean_rt: 380ms
  accuracy: 0.9
  omission_rate: 0.05
`
	path := writeTemp(t, "flanker.yaml", yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.FrameRate != 120 {
		t.Errorf("frame_rate: got %d, want 120", cfg.FrameRate)
	}
	assertEqual(t, "keys.left", cfg.Keys.Left, "z")
	assertEqual(t, "keys.right", cfg.Keys.Right, "m")
	assertEqual(t, "keys.abort", cfg.Keys.Abort, "escape")
	if len(cfg.Keys.Continue) != 1 || cfg.Keys.Continue[0] != "space" {
		t.Errorf("keys.continue: got %v", cfg.Keys.Continue)
	}
	if cfg.MaxWait.Duration != 2500*time.Millisecond {
		t.Errorf("max_wait: got %v", cfg.MaxWait.Duration)
	}
	if len(cfg.Durations) != 2 || cfg.Durations[1].Ticks != 24 || cfg.Durations[1].Label != "200" {
		t.Errorf("durations: got %v", cfg.Durations)
	}
	if cfg.TrainingTrials != 4 || cfg.Trials != 40 || cfg.FixationTicks != 30 {
		t.Errorf("counts: got %d/%d/%d", cfg.TrainingTrials, cfg.Trials, cfg.FixationTicks)
	}
	if cfg.Seed == nil || *cfg.Seed != 42 {
		t.Errorf("seed: got %v", cfg.Seed)
	}
	assertEqual(t, "backend", cfg.Backend, BackendSim)
	assertEqual(t, "screens.end", cfg.Screens.End, "texts/end.txt")
	if cfg.Screens.Timeout.Duration != 2*time.Minute {
		t.Errorf("screens.timeout: got %v", cfg.Screens.Timeout.Duration)
	}
	if !cfg.Results.Compress {
		t.Error("expected results.compress=true")
	}
	assertEqual(t, "storage.path", cfg.Storage.Path, "lab-bucket/flanker")
	if !cfg.Storage.S3PathStyle {
		t.Error("expected storage.s3_path_style=true")
	}
	assertEqual(t, "policy.name", cfg.Policy.Name, PolicyStreaming)
	if cfg.Policy.FlushInterval.Duration != 30*time.Second {
		t.Errorf("policy.flush_interval: got %v", cfg.Policy.FlushInterval.Duration)
	}
	assertEqual(t, "adapter.headers.Authorization", cfg.Adapter.Headers["Authorization"], "Bearer token123")
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Errorf("adapter.retries: got %v", cfg.Adapter.Retries)
	}
	assertEqual(t, "logging.level", cfg.Logging.Level, "debug")
	if cfg.Sim.Accuracy != 0.9 {
		t.Errorf("sim.accuracy: got %v", cfg.Sim.Accuracy)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_TOML(t *testing.T) {
	toml := `frame_rate = 75
max_wait = "3s"
trials = 12

[keys]
left = "a"
right = "l"

[[durations]]
ticks = 5
label = "67"

[policy]
name = "strict"

[sim]
mean_rt = "400ms"
accuracy = 1.0
`
	path := writeTemp(t, "flanker.toml", toml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.FrameRate != 75 || cfg.Trials != 12 {
		t.Errorf("got frame_rate %d, trials %d", cfg.FrameRate, cfg.Trials)
	}
	if cfg.MaxWait.Duration != 3*time.Second {
		t.Errorf("max_wait: got %v", cfg.MaxWait.Duration)
	}
	assertEqual(t, "keys.left", cfg.Keys.Left, "a")
	// keys absent from the file keep their default
	assertEqual(t, "keys.abort", cfg.Keys.Abort, "f7")
	if len(cfg.Durations) != 1 || cfg.Durations[0].Label != "67" {
		t.Errorf("durations: got %v", cfg.Durations)
	}
	if cfg.Sim.MeanRT.Duration != 400*time.Millisecond {
		t.Errorf("sim.mean_rt: got %v", cfg.Sim.MeanRT.Duration)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_TOMLUnknownKeyRejected(t *testing.T) {
	path := writeTemp(t, "flanker.toml", "frame_rate = 60\nbogus = 1\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoad_EmptyConfigKeepsDefaults(t *testing.T) {
	for _, content := range []string{"", "   \n\t\n", "# only a comment\n"} {
		path := writeTemp(t, "flanker.yaml", content)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q) failed: %v", content, err)
		}
		def := Defaults()
		if cfg.FrameRate != def.FrameRate || cfg.MaxWait != def.MaxWait || len(cfg.Durations) != 3 {
			t.Errorf("Load(%q) = %+v, want defaults", content, cfg)
		}
	}
}

func TestLoad_PartialKeysKeepDefaults(t *testing.T) {
	path := writeTemp(t, "flanker.yaml", "keys:\n  abort: q\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "keys.left", cfg.Keys.Left, "left")
	assertEqual(t, "keys.abort", cfg.Keys.Abort, "q")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/flanker.yaml")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "flanker.yaml", "frame_rate: [unterminated\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeTemp(t, "flanker.yaml", "frame_rate: 60\nbogus_key: should_fail\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "bogus_key") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_UnknownNestedKeyRejected(t *testing.T) {
	path := writeTemp(t, "flanker.yaml", "results:\n  dir: ./out\n  unknown_field: bad\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unknown_field") {
		t.Fatalf("expected unknown nested key error, got %v", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("FLANKER_TEST_RESULTS", "/data/flanker")
	path := writeTemp(t, "flanker.yaml", "results:\n  dir: ${FLANKER_TEST_RESULTS}\nstorage:\n  study: ${FLANKER_TEST_STUDY:-pilot}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "results.dir", cfg.Results.Dir, "/data/flanker")
	assertEqual(t, "storage.study", cfg.Storage.Study, "pilot")
}

func TestLoad_RetriesZeroDistinctFromNil(t *testing.T) {
	path := writeTemp(t, "flanker.yaml", "adapter:\n  type: redis\n  url: redis://localhost:6379\n  retries: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 0 {
		t.Errorf("expected retries=0, got %v", cfg.Adapter.Retries)
	}

	path = writeTemp(t, "flanker.yaml", "adapter:\n  type: redis\n  url: redis://localhost:6379\n")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries != nil {
		t.Errorf("expected nil retries when omitted, got %d", *cfg.Adapter.Retries)
	}
}

func TestDuration_InvalidFormat(t *testing.T) {
	path := writeTemp(t, "flanker.yaml", "max_wait: four seconds\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("expected invalid duration error, got %v", err)
	}
}

func TestDuration_EmptyIsZero(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if d.Duration != 0 {
		t.Errorf("got %v, want 0", d.Duration)
	}
}

func TestDefaults_ContinueKeys(t *testing.T) {
	cfg := Defaults()
	for _, k := range []string{"space", "return", cfg.Keys.Left, cfg.Keys.Right} {
		if !slices.Contains(cfg.Keys.Continue, k) {
			t.Errorf("keys.continue %v missing %q", cfg.Keys.Continue, k)
		}
	}
	if slices.Contains(cfg.Keys.Continue, cfg.Keys.Abort) {
		t.Errorf("keys.continue %v contains the abort key", cfg.Keys.Continue)
	}
}

func TestDefaults_Valid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults must validate: %v", err)
	}
	if cfg.FrameRate != 60 || cfg.MaxWait.Duration != 4*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	labels := []string{"150", "250", "350"}
	for i, d := range cfg.Durations {
		if d.Label != labels[i] {
			t.Errorf("duration %d label = %q, want %q", i, d.Label, labels[i])
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantField string
	}{
		{"zero frame rate", func(c *Config) { c.FrameRate = 0 }, "frame_rate"},
		{"same keys", func(c *Config) { c.Keys.Right = c.Keys.Left }, "keys"},
		{"missing abort", func(c *Config) { c.Keys.Abort = "" }, "keys"},
		{"abort continues", func(c *Config) { c.Keys.Continue = []string{"f7"} }, "keys.continue"},
		{"zero max wait", func(c *Config) { c.MaxWait = Duration{} }, "max_wait"},
		{"negative trials", func(c *Config) { c.Trials = -1 }, "trials"},
		{"negative training", func(c *Config) { c.TrainingTrials = -1 }, "training_trials"},
		{"negative fixation", func(c *Config) { c.FixationTicks = -1 }, "fixation_ticks"},
		{"negative feedback", func(c *Config) { c.FeedbackDuration = Duration{-time.Second} }, "feedback_duration"},
		{"unknown backend", func(c *Config) { c.Backend = "sdl" }, "backend"},
		{"empty results dir", func(c *Config) { c.Results.Dir = "" }, "results.dir"},
		{"unknown policy", func(c *Config) { c.Policy.Name = "lazy" }, "policy.name"},
		{"buffered without size", func(c *Config) { c.Policy.BufferOutcomes = 0 }, "policy.buffer_outcomes"},
		{"streaming without trigger", func(c *Config) { c.Policy.Name = PolicyStreaming }, "policy"},
		{"storage without path", func(c *Config) { c.Storage.Backend = "fs" }, "storage.path"},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "gcs" }, "storage.backend"},
		{"adapter without url", func(c *Config) { c.Adapter.Type = "webhook" }, "adapter.url"},
		{"unknown adapter", func(c *Config) { c.Adapter.Type = "kafka" }, "adapter.type"},
		{"accuracy above one", func(c *Config) { c.Sim.Accuracy = 1.5 }, "sim.accuracy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *types.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}

func TestValidate_Durations(t *testing.T) {
	cfg := Defaults()
	cfg.Durations = nil
	if err := cfg.Validate(); !types.IsConfigurationError(err) {
		t.Errorf("empty durations: got %v", err)
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
