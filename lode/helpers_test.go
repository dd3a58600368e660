package lode

import (
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/flanker/types"
)

// sharedFactory returns a StoreFactory that always returns the given store.
// This allows write and read datasets to share the same in-memory state.
func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

func testConfig(sessionID string) Config {
	return Config{
		Dataset:     "flanker",
		Study:       "pilot",
		Participant: "p07F24",
		Day:         "2026-03-01",
		SessionID:   sessionID,
	}
}

func testOutcomes() []types.TrialOutcome {
	return []types.TrialOutcome{
		{
			Phase: types.PhaseTraining, Index: 0,
			Response:   types.ResponseOutcome{Key: "left", ElapsedMs: 402},
			Correct:    true,
			Category:   types.CategoryCongruent,
			StimulusID: "zgdn_l", DurationLabel: "150",
		},
		{
			Phase: types.PhaseMain, Index: 0,
			Response:   types.NoResponseOutcome(),
			Category:   types.CategoryNeutral,
			StimulusID: "neutr_p", DurationLabel: "350",
		},
		{
			Phase: types.PhaseMain, Index: 1,
			Response:   types.ResponseOutcome{Key: "left", ElapsedMs: 515},
			Correct:    false,
			Category:   types.CategoryIncongruent,
			StimulusID: "nzgdn_p", DurationLabel: "250",
		},
	}
}

// asReported drops the training reaction times no sink persists.
func asReported(in []types.TrialOutcome) []types.TrialOutcome {
	out := make([]types.TrialOutcome, len(in))
	for i, o := range in {
		if o.Phase == types.PhaseTraining && o.Response.Responded() {
			o.Response.ElapsedMs = 0
		}
		out[i] = o
	}
	return out
}

var completedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
