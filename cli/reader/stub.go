package reader

import (
	"context"

	"github.com/justapithecus/flanker/types"
)

// StubReader returns fixed, shape-correct data for CLI tests.
type StubReader struct {
	// Outcomes are summarized by every Summary call.
	Outcomes []types.TrialOutcome
	// Err, when set, is returned by Summary.
	Err error
	// Sources records every Summary request.
	Sources []Source
}

// NewStubReader creates a stub reader over a small two-phase session.
func NewStubReader() *StubReader {
	return &StubReader{Outcomes: StubOutcomes()}
}

// Summary implements Reader.
func (s *StubReader) Summary(_ context.Context, src Source) (*SessionSummary, error) {
	s.Sources = append(s.Sources, src)
	if s.Err != nil {
		return nil, s.Err
	}
	if src.Kind == "" {
		src.Kind = DetectKind(src.Path)
	}
	return Summarize(src.Path, src.Kind, s.Outcomes), nil
}

// Catalog implements Reader.
func (s *StubReader) Catalog() []CatalogItem {
	return NewResultsReader().Catalog()
}

// StubOutcomes returns one training and four main trials.
func StubOutcomes() []types.TrialOutcome {
	return []types.TrialOutcome{
		{Phase: types.PhaseTraining, Index: 0, Response: types.ResponseOutcome{Key: "left", ElapsedMs: 512}, Correct: true, Category: types.CategoryNeutral, DurationLabel: "150", StimulusID: "neutr_l"},
		{Phase: types.PhaseMain, Index: 0, Response: types.ResponseOutcome{Key: "right", ElapsedMs: 430}, Correct: true, Category: types.CategoryCongruent, DurationLabel: "250", StimulusID: "zgdn_p"},
		{Phase: types.PhaseMain, Index: 1, Response: types.ResponseOutcome{Key: "left", ElapsedMs: 520}, Correct: true, Category: types.CategoryIncongruent, DurationLabel: "150", StimulusID: "nzgdn_l"},
		{Phase: types.PhaseMain, Index: 2, Response: types.ResponseOutcome{Key: "left", ElapsedMs: 470}, Correct: false, Category: types.CategoryIncongruent, DurationLabel: "350", StimulusID: "nzgdn_p"},
		{Phase: types.PhaseMain, Index: 3, Response: types.NoResponseOutcome(), Correct: false, Category: types.CategoryNeutral, DurationLabel: "250", StimulusID: "neutr_p"},
	}
}
