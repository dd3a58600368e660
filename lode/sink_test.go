package lode

import (
	"testing"
	"time"

	"github.com/justapithecus/flanker/types"
)

func TestSink_WriteOutcomes(t *testing.T) {
	client := NewStubClient()
	sink := NewSink(testConfig("sess-123"), client)

	if err := sink.WriteOutcomes(t.Context(), testOutcomes()); err != nil {
		t.Fatalf("WriteOutcomes failed: %v", err)
	}

	if len(client.Outcomes) != 1 {
		t.Fatalf("expected 1 outcome record, got %d", len(client.Outcomes))
	}
	record := client.Outcomes[0]
	if record.Dataset != "flanker" {
		t.Errorf("Dataset = %q, want %q", record.Dataset, "flanker")
	}
	if record.SessionID != "sess-123" {
		t.Errorf("SessionID = %q, want %q", record.SessionID, "sess-123")
	}
	if len(record.Outcomes) != 3 {
		t.Errorf("len(Outcomes) = %d, want 3", len(record.Outcomes))
	}
}

func TestSink_Close(t *testing.T) {
	client := NewStubClient()
	sink := NewSink(testConfig("sess-123"), client)
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !client.Closed {
		t.Error("client should be closed")
	}
}

func TestDeriveDay(t *testing.T) {
	// 23:30 in UTC-5 is the next day in UTC
	loc := time.FixedZone("EST", -5*3600)
	got := DeriveDay(time.Date(2026, 3, 1, 23, 30, 0, 0, loc))
	if got != "2026-03-02" {
		t.Errorf("DeriveDay = %q, want 2026-03-02", got)
	}
}

func TestConfigFor(t *testing.T) {
	s := &types.Session{
		ID:          "sess-9",
		Participant: types.Participant{ID: "p07", Sex: "F", Age: 24},
		StartedAt:   completedAt,
	}
	cfg := ConfigFor("", "pilot", s)
	want := Config{
		Dataset:     DefaultDataset,
		Study:       "pilot",
		Participant: "p07F24",
		Day:         "2026-03-01",
		SessionID:   "sess-9",
	}
	if cfg != want {
		t.Errorf("ConfigFor = %+v, want %+v", cfg, want)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := testConfig("sess-1")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	cfg.Study = ""
	err := cfg.Validate()
	if !types.IsConfigurationError(err) {
		t.Errorf("Validate() = %v, want configuration error", err)
	}
}
