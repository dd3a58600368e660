package lode

import (
	"fmt"
	"time"

	"github.com/justapithecus/flanker/metrics"
	"github.com/justapithecus/flanker/types"
)

// RecordKind discriminator values.
const (
	RecordKindOutcome = "trial_outcome"
	RecordKindSession = "session"
)

// hiveKeys is the partition layout shared by the write and read paths.
var hiveKeys = []string{"study", "participant", "day", "session_id", "phase"}

// sessionPhase is the phase partition value of session records.
const sessionPhase = "session"

// toOutcomeRecordMap converts a TrialOutcome to a map for Lode storage.
// Lode HiveLayout requires records as map[string]any.
// Training outcomes carry no elapsed_ms.
func toOutcomeRecordMap(o types.TrialOutcome, seq int64, cfg Config) map[string]any {
	m := map[string]any{
		"record_kind":    RecordKindOutcome,
		"seq":            seq,
		"trial":          o.Index,
		"stimulus_id":    o.StimulusID,
		"category":       string(o.Category),
		"duration_label": o.DurationLabel,
		"key":            o.Response.Key,
		"correct":        o.Correct,
		"phase":          string(o.Phase), // partition key
		"study":          cfg.Study,
		"participant":    cfg.Participant,
		"day":            cfg.Day,
		"session_id":     cfg.SessionID,
	}
	if ms, ok := o.ReportedElapsedMs(); ok {
		m["elapsed_ms"] = ms
	}
	return m
}

// toSessionRecordMap converts the final session state to a map for storage.
// Written to the phase=session partition.
func toSessionRecordMap(status types.OutcomeStatus, snap metrics.Snapshot, completedAt time.Time, cfg Config) map[string]any {
	return map[string]any{
		"record_kind":          RecordKindSession,
		"outcome":              string(status),
		"completed_at":         completedAt.UTC().Format(time.RFC3339Nano),
		"training_trials":      snap.TrainingTrials,
		"main_trials":          snap.MainTrials,
		"responses":            snap.Responses,
		"omissions":            snap.Omissions,
		"correct_trials":       snap.CorrectTrials,
		"device_errors":        snap.DeviceErrors,
		"frames_drawn":         snap.FramesDrawn,
		"outcomes_received":    snap.OutcomesReceived,
		"outcomes_persisted":   snap.OutcomesPersisted,
		"flush_count":          snap.FlushCount,
		"sink_errors":          snap.SinkErrors,
		"storage_write_ok":     snap.StorageWriteSuccess,
		"storage_write_failed": snap.StorageWriteFailure,
		"policy":               snap.Policy,
		"backend":              snap.Backend,
		"storage_backend":      snap.StorageBackend,
		"phase":                sessionPhase, // partition key
		"study":                cfg.Study,
		"participant":          cfg.Participant,
		"day":                  cfg.Day,
		"session_id":           cfg.SessionID,
	}
}

// fromOutcomeRecordMap converts a stored record back to a TrialOutcome.
// JSONL decoding yields float64 numbers, so numeric fields are converted.
func fromOutcomeRecordMap(m map[string]any) (types.TrialOutcome, error) {
	if m["record_kind"] != RecordKindOutcome {
		return types.TrialOutcome{}, fmt.Errorf("record_kind %v is not %s", m["record_kind"], RecordKindOutcome)
	}
	correct, _ := m["correct"].(bool)
	key := toString(m["key"])
	ms, reported := m["elapsed_ms"]
	return types.TrialOutcome{
		Phase: types.Phase(toString(m["phase"])),
		Index: int(toInt64(m["trial"])),
		Response: types.ResponseOutcome{
			Key:       key,
			ElapsedMs: types.ElapsedFromReport(key, toInt64(ms), reported && ms != nil),
		},
		Correct:       correct,
		Category:      types.Category(toString(m["category"])),
		DurationLabel: toString(m["duration_label"]),
		StimulusID:    toString(m["stimulus_id"]),
	}, nil
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 converts a decoded numeric value to int64.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
