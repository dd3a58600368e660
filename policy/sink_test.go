package policy_test

import (
	"errors"
	"testing"

	"github.com/justapithecus/flanker/policy"
	"github.com/justapithecus/flanker/types"
)

func TestMultiSink_FansOut(t *testing.T) {
	a, b := policy.NewStubSink(), policy.NewStubSink()
	m := policy.NewMultiSink(a, b)

	if err := m.WriteOutcomes(t.Context(), []types.TrialOutcome{outcome(0), outcome(1)}); err != nil {
		t.Fatal(err)
	}
	if a.Stats().OutcomesWritten != 2 || b.Stats().OutcomesWritten != 2 {
		t.Errorf("a=%d b=%d, want 2 each", a.Stats().OutcomesWritten, b.Stats().OutcomesWritten)
	}
}

func TestMultiSink_AttemptsAllAndCombinesErrors(t *testing.T) {
	a, b, c := policy.NewStubSink(), policy.NewStubSink(), policy.NewStubSink()
	errA := errors.New("a failed")
	errC := errors.New("c failed")
	a.SetError(errA)
	c.SetError(errC)
	m := policy.NewMultiSink(a, b, c)

	err := m.WriteOutcomes(t.Context(), []types.TrialOutcome{outcome(0)})
	if !errors.Is(err, errA) || !errors.Is(err, errC) {
		t.Errorf("error = %v, want both sink errors", err)
	}
	if b.Stats().OutcomesWritten != 1 {
		t.Error("healthy sink should still receive the batch")
	}

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	for i, s := range []*policy.StubSink{a, b, c} {
		if !s.Stats().Closed {
			t.Errorf("sink %d not closed", i)
		}
	}
}

func TestMultiSink_RetrySkipsPersisted(t *testing.T) {
	good, flaky := policy.NewStubSink(), policy.NewStubSink()
	flaky.SetError(errors.New("locked"))
	m := policy.NewMultiSink(good, flaky)
	batch := []types.TrialOutcome{outcome(0), outcome(1)}

	if err := m.WriteOutcomes(t.Context(), batch); err == nil {
		t.Fatal("expected error from flaky sink")
	}
	// retry with one new outcome appended, flaky still down
	batch = append(batch, outcome(2))
	if err := m.WriteOutcomes(t.Context(), batch); err == nil {
		t.Fatal("expected error from flaky sink")
	}
	if got := good.Stats().OutcomesWritten; got != 3 {
		t.Fatalf("good sink written = %d, want 3", got)
	}

	flaky.SetError(nil)
	if err := m.WriteOutcomes(t.Context(), batch); err != nil {
		t.Fatalf("recovered write error: %v", err)
	}
	if got := good.Stats().OutcomesWritten; got != 3 {
		t.Errorf("good sink written = %d, want 3", got)
	}
	if got := flaky.Stats().OutcomesWritten; got != 3 {
		t.Errorf("flaky sink written = %d, want 3", got)
	}

	// after a clean write the same indices are accepted again
	if err := m.WriteOutcomes(t.Context(), []types.TrialOutcome{outcome(0)}); err != nil {
		t.Fatal(err)
	}
	if got := good.Stats().OutcomesWritten; got != 4 {
		t.Errorf("good sink written = %d, want 4", got)
	}
}
