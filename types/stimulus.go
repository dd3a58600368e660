// Package types defines core domain types for the flanker experiment.
//
//nolint:revive // types is a common Go package naming convention
package types

import "fmt"

// Side is the response side a stimulus calls for.
type Side string

const (
	// SideLeft calls for the left reaction key.
	SideLeft Side = "left"
	// SideRight calls for the right reaction key.
	SideRight Side = "right"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

// Category is the flanker condition of a stimulus.
type Category string

const (
	// CategoryNeutral flanks the target with non-directional distractors.
	CategoryNeutral Category = "neutral"
	// CategoryCongruent flanks the target with distractors pointing the same way.
	CategoryCongruent Category = "congruent"
	// CategoryIncongruent flanks the target with distractors pointing the other way.
	CategoryIncongruent Category = "incongruent"
)

// Categories returns every category in report order.
func Categories() []Category {
	return []Category{CategoryNeutral, CategoryCongruent, CategoryIncongruent}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryNeutral, CategoryCongruent, CategoryIncongruent:
		return true
	default:
		return false
	}
}

// StimulusDefinition is one immutable row of the stimulus catalog.
type StimulusDefinition struct {
	// ID is the catalog identifier.
	ID string `json:"id" yaml:"id"`
	// Image is the image reference used by image-capable surfaces.
	Image string `json:"image" yaml:"image"`
	// Glyph is the text rendering used by text surfaces.
	Glyph string `json:"glyph" yaml:"glyph"`
	// Correct is the side the participant must answer.
	Correct Side `json:"correct" yaml:"correct"`
	// Category is the flanker condition.
	Category Category `json:"category" yaml:"category"`
}

// Ticks counts display refresh intervals.
// Presentation time is always expressed in Ticks; waiting time is always a
// time.Duration. The two are never converted into each other by the engine.
type Ticks int

// DurationOption is one allowed presentation length and its reported label.
type DurationOption struct {
	// Ticks is the number of refresh intervals the stimulus stays on screen.
	Ticks Ticks `json:"ticks" yaml:"ticks" toml:"ticks"`
	// Label is the millisecond label written to the results (e.g. "150").
	Label string `json:"label" yaml:"label" toml:"label"`
}

func (d DurationOption) String() string {
	return fmt.Sprintf("%d ticks (%s ms)", d.Ticks, d.Label)
}

// TrialPlan holds the randomized parameters of a single trial.
// A plan is created fresh for each trial and consumed once.
type TrialPlan struct {
	Stimulus StimulusDefinition
	Duration DurationOption
}
