package policy_test

import (
	"errors"
	"testing"

	"github.com/justapithecus/flanker/policy"
)

func TestStrictPolicy_Append_ImmediateWrite(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink)

	if err := pol.Append(t.Context(), outcome(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sinkStats := sink.Stats()
	if sinkStats.OutcomesWritten != 1 {
		t.Errorf("expected 1 outcome written immediately, got %d", sinkStats.OutcomesWritten)
	}
	if sinkStats.Batches != 1 {
		t.Errorf("expected 1 batch, got %d", sinkStats.Batches)
	}

	stats := pol.Stats()
	if stats.TotalOutcomes != 1 || stats.OutcomesPersisted != 1 {
		t.Errorf("stats = %+v, want 1/1", stats)
	}
}

func TestStrictPolicy_SinkError(t *testing.T) {
	sink := policy.NewStubSink()
	sinkErr := errors.New("disk full")
	sink.SetError(sinkErr)
	pol := policy.NewStrictPolicy(sink)

	err := pol.Append(t.Context(), outcome(1))
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if stats := pol.Stats(); stats.Errors != 1 || stats.OutcomesPersisted != 0 {
		t.Errorf("stats = %+v, want 1 error, 0 persisted", stats)
	}
}

func TestStrictPolicy_FlushTwiceNoDuplicates(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink)

	for i := range 3 {
		if err := pol.Append(t.Context(), outcome(i)); err != nil {
			t.Fatal(err)
		}
	}
	for range 2 {
		if err := pol.Flush(t.Context()); err != nil {
			t.Fatal(err)
		}
	}

	if got := sink.Stats().OutcomesWritten; got != 3 {
		t.Errorf("written = %d, want 3", got)
	}
	if got := pol.Stats().FlushCount; got != 2 {
		t.Errorf("FlushCount = %d, want 2", got)
	}
}

func TestStrictPolicy_Close(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink)
	if err := pol.Close(); err != nil {
		t.Fatal(err)
	}
	if !sink.Stats().Closed {
		t.Error("sink should be closed")
	}
}
