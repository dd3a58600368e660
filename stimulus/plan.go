package stimulus

import (
	"fmt"

	"github.com/justapithecus/flanker/types"
)

// Rand is the randomness capability used to draw trial plans.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	// IntN returns a uniform integer in [0, n).
	IntN(n int) int
}

// Planner draws a fresh TrialPlan for every trial.
type Planner struct {
	catalog   *Catalog
	durations []types.DurationOption
	rng       Rand
}

// NewPlanner creates a planner over the catalog and the allowed durations.
// Durations must be non-empty, have positive ticks and map ticks to labels
// injectively.
func NewPlanner(catalog *Catalog, durations []types.DurationOption, rng Rand) (*Planner, error) {
	if catalog == nil {
		return nil, &types.ConfigurationError{Field: "stimulus", Msg: "catalog is nil"}
	}
	if rng == nil {
		return nil, &types.ConfigurationError{Field: "seed", Msg: "randomness source is nil"}
	}
	if err := ValidateDurations(durations); err != nil {
		return nil, err
	}
	return &Planner{
		catalog:   catalog,
		durations: append([]types.DurationOption(nil), durations...),
		rng:       rng,
	}, nil
}

// Generate draws a stimulus and a duration, independently and uniformly.
// Nothing is cached between calls.
func (p *Planner) Generate() types.TrialPlan {
	return types.TrialPlan{
		Stimulus: p.catalog.At(p.rng.IntN(p.catalog.Len())),
		Duration: p.durations[p.rng.IntN(len(p.durations))],
	}
}

// Durations returns a copy of the allowed durations.
func (p *Planner) Durations() []types.DurationOption {
	return append([]types.DurationOption(nil), p.durations...)
}

// ValidateDurations checks that the tick to label mapping is total and
// injective: every option has positive ticks and a label, and no two options
// share a tick count or a label.
func ValidateDurations(durations []types.DurationOption) error {
	if len(durations) == 0 {
		return &types.ConfigurationError{Field: "durations", Msg: "must be non-empty"}
	}
	ticks := make(map[types.Ticks]struct{}, len(durations))
	labels := make(map[string]struct{}, len(durations))
	for i, d := range durations {
		if d.Ticks <= 0 {
			return &types.ConfigurationError{Field: "durations", Msg: fmt.Sprintf("entry %d: ticks must be > 0, got %d", i, d.Ticks)}
		}
		if d.Label == "" {
			return &types.ConfigurationError{Field: "durations", Msg: fmt.Sprintf("entry %d: label must be non-empty", i)}
		}
		if _, dup := ticks[d.Ticks]; dup {
			return &types.ConfigurationError{Field: "durations", Msg: fmt.Sprintf("duplicate ticks %d", d.Ticks)}
		}
		if _, dup := labels[d.Label]; dup {
			return &types.ConfigurationError{Field: "durations", Msg: fmt.Sprintf("duplicate label %q", d.Label)}
		}
		ticks[d.Ticks] = struct{}{}
		labels[d.Label] = struct{}{}
	}
	return nil
}

// LabelFor returns the label of the option with the given tick count.
func LabelFor(durations []types.DurationOption, ticks types.Ticks) (string, bool) {
	for _, d := range durations {
		if d.Ticks == ticks {
			return d.Label, true
		}
	}
	return "", false
}
