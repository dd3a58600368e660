package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lodelib "github.com/justapithecus/lode/lode"

	"github.com/justapithecus/flanker/lode"
	"github.com/justapithecus/flanker/metrics"
	"github.com/justapithecus/flanker/results"
	"github.com/justapithecus/flanker/stimulus"
	"github.com/justapithecus/flanker/types"
)

// ResultsReader reads persisted results from local files and Lode datasets.
type ResultsReader struct {
	// OpenDataset opens a Lode dataset for reading. Defaults to a filesystem
	// dataset rooted at Source.Path.
	OpenDataset func(ctx context.Context, src Source) (lodelib.Dataset, error)
}

// NewResultsReader creates a reader over the local filesystem.
func NewResultsReader() *ResultsReader {
	return &ResultsReader{OpenDataset: openFSDataset}
}

// DetectKind infers the source kind from a path.
func DetectKind(path string) SourceKind {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".csv"), strings.HasSuffix(lower, ".csv"+results.ZstdExt):
		return SourceCSV
	case strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"):
		return SourceSQLite
	default:
		return SourceLode
	}
}

// Summary reads the outcomes at src and summarizes them per phase.
func (r *ResultsReader) Summary(ctx context.Context, src Source) (*SessionSummary, error) {
	if src.Kind == "" {
		src.Kind = DetectKind(src.Path)
	}

	var (
		outcomes []types.TrialOutcome
		record   *SessionRecord
		err      error
	)
	switch src.Kind {
	case SourceCSV:
		outcomes, err = results.ReadFile(src.Path)
	case SourceSQLite:
		outcomes, err = results.ReadSQLite(ctx, src.Path, src.SessionID)
	case SourceLode:
		outcomes, record, err = r.readLode(ctx, src)
	default:
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}
	if err != nil {
		return nil, err
	}

	s := Summarize(src.Path, src.Kind, outcomes)
	s.SessionID = src.SessionID
	s.Session = record
	return s, nil
}

func (r *ResultsReader) readLode(ctx context.Context, src Source) ([]types.TrialOutcome, *SessionRecord, error) {
	open := r.OpenDataset
	if open == nil {
		open = openFSDataset
	}
	ds, err := open(ctx, src)
	if err != nil {
		return nil, nil, err
	}

	filter := lode.Filter{SessionID: src.SessionID, Participant: src.Participant}
	outcomes, err := lode.ReadOutcomes(ctx, ds, filter)
	if err != nil {
		return nil, nil, err
	}

	// the session record is absent when the session never finished
	raw, err := lode.QueryLatestSession(ctx, ds, filter)
	if errors.Is(err, lode.ErrNoSessionFound) {
		return outcomes, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	record, err := ParseSessionRecord(raw)
	if err != nil {
		return nil, nil, err
	}
	return outcomes, record, nil
}

func openFSDataset(_ context.Context, src Source) (lodelib.Dataset, error) {
	dataset := src.Dataset
	if dataset == "" {
		dataset = lode.DefaultDataset
	}
	return lode.NewReadDatasetFS(dataset, src.Path)
}

// Summarize builds a summary of outcomes. Phases without trials are omitted.
func Summarize(source string, kind SourceKind, outcomes []types.TrialOutcome) *SessionSummary {
	s := &SessionSummary{Source: source, Kind: kind, Trials: len(outcomes)}

	for _, o := range outcomes {
		switch o.Phase {
		case types.PhaseTraining:
			s.TrainingTrials++
		case types.PhaseMain:
			s.MainTrials++
		}
	}

	if s.TrainingTrials > 0 {
		sum := metrics.Summarize(outcomes, types.PhaseTraining)
		s.Training = &sum
	}
	if s.MainTrials > 0 {
		sum := metrics.Summarize(outcomes, types.PhaseMain)
		s.Main = &sum
	}
	return s
}

// Catalog lists the stimulus catalog.
func (r *ResultsReader) Catalog() []CatalogItem {
	defs := stimulus.DefaultCatalog().Definitions()
	items := make([]CatalogItem, 0, len(defs))
	for _, d := range defs {
		items = append(items, CatalogItem{
			ID:       d.ID,
			Glyph:    d.Glyph,
			Correct:  d.Correct,
			Category: d.Category,
			Image:    d.Image,
		})
	}
	return items
}
