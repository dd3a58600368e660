package sim

import "github.com/justapithecus/flanker/types"

func testStimulus() types.StimulusDefinition {
	return types.StimulusDefinition{
		ID:       "zgdn_p",
		Image:    "images/zgdn_p.png",
		Correct:  types.SideRight,
		Category: types.CategoryCongruent,
	}
}
