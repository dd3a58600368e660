package reader

import (
	"errors"
	"math"
)

// ParseSessionRecord converts a Lode record (map[string]any) to a SessionRecord.
// Handles both int64 (direct writes) and float64 (JSON round-trips) for numeric fields.
func ParseSessionRecord(record map[string]any) (*SessionRecord, error) {
	if record == nil {
		return nil, errors.New("nil record")
	}
	if kind := toString(record["record_kind"]); kind != "session" {
		return nil, errors.New("not a session record: " + kind)
	}

	return &SessionRecord{
		SessionID:      toString(record["session_id"]),
		Study:          toString(record["study"]),
		Participant:    toString(record["participant"]),
		Day:            toString(record["day"]),
		Outcome:        toString(record["outcome"]),
		CompletedAt:    toString(record["completed_at"]),
		TrainingTrials: toInt64(record["training_trials"]),
		MainTrials:     toInt64(record["main_trials"]),
		Responses:      toInt64(record["responses"]),
		Omissions:      toInt64(record["omissions"]),
		CorrectTrials:  toInt64(record["correct_trials"]),
		DeviceErrors:   toInt64(record["device_errors"]),
		FramesDrawn:    toInt64(record["frames_drawn"]),
		Persisted:      toInt64(record["outcomes_persisted"]),
		Policy:         toString(record["policy"]),
		Backend:        toString(record["backend"]),
	}, nil
}

// toInt64 converts a numeric value to int64.
// Handles int64 (direct), float64 (JSON unmarshal), int, and nil.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(math.Round(n))
	case int:
		return int64(n)
	default:
		return 0
	}
}

// toString converts a value to string, returning "" for nil or non-string.
func toString(v any) string {
	s, _ := v.(string)
	return s
}
