package policy_test

import (
	"github.com/justapithecus/flanker/types"
)

func outcome(i int) types.TrialOutcome {
	return types.TrialOutcome{
		Phase:         types.PhaseMain,
		Index:         i,
		Response:      types.ResponseOutcome{Key: "left", ElapsedMs: int64(400 + i)},
		Correct:       true,
		Category:      types.CategoryCongruent,
		DurationLabel: "250",
		StimulusID:    "zgdn_l",
	}
}
