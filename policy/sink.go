package policy

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"github.com/justapithecus/flanker/types"
)

// Sink abstracts persistence for policies.
// Implementations may write to a file, a database, a dataset, or stub for
// testing.
//
// Writes are batch-oriented so strict (batch of 1) and buffered policies share
// one interface.
type Sink interface {
	// WriteOutcomes persists a batch of outcomes.
	// Must preserve ordering within the batch.
	WriteOutcomes(ctx context.Context, outcomes []types.TrialOutcome) error

	// Close releases any resources held by the sink.
	Close() error
}

// MultiSink writes every batch to each of its sinks in order.
// All sinks are attempted; errors are combined.
//
// Policies retry a failed batch in full. While a failure is outstanding,
// MultiSink remembers which outcomes each sink already persisted and skips
// them on the retry, so a healthy sink never receives a row twice. Outcomes
// are identified by phase and trial index.
type MultiSink struct {
	sinks []Sink

	mu sync.Mutex
	// retrying is set while the last write returned an error.
	retrying bool
	// persisted holds, per sink, the outcomes written since the last fully
	// successful write.
	persisted []map[outcomeKey]struct{}
}

type outcomeKey struct {
	phase types.Phase
	index int
}

func keyOf(o types.TrialOutcome) outcomeKey {
	return outcomeKey{phase: o.Phase, index: o.Index}
}

// NewMultiSink fans writes out to sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	persisted := make([]map[outcomeKey]struct{}, len(sinks))
	for i := range persisted {
		persisted[i] = make(map[outcomeKey]struct{})
	}
	return &MultiSink{sinks: sinks, persisted: persisted}
}

// WriteOutcomes implements Sink.
func (m *MultiSink) WriteOutcomes(ctx context.Context, outcomes []types.TrialOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	for i, s := range m.sinks {
		batch := outcomes
		if m.retrying {
			batch = m.pendingFor(i, outcomes)
			if len(batch) == 0 {
				continue
			}
		}
		if werr := s.WriteOutcomes(ctx, batch); werr != nil {
			err = multierr.Append(err, werr)
			continue
		}
		for _, o := range batch {
			m.persisted[i][keyOf(o)] = struct{}{}
		}
	}

	m.retrying = err != nil
	if !m.retrying {
		for i := range m.persisted {
			clear(m.persisted[i])
		}
	}
	return err
}

// pendingFor returns the outcomes sink i has not persisted yet.
func (m *MultiSink) pendingFor(i int, outcomes []types.TrialOutcome) []types.TrialOutcome {
	done := m.persisted[i]
	if len(done) == 0 {
		return outcomes
	}
	out := make([]types.TrialOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if _, ok := done[keyOf(o)]; !ok {
			out = append(out, o)
		}
	}
	return out
}

// Close implements Sink.
func (m *MultiSink) Close() error {
	var err error
	for _, s := range m.sinks {
		err = multierr.Append(err, s.Close())
	}
	return err
}

// Len returns the number of fan-out targets.
func (m *MultiSink) Len() int {
	return len(m.sinks)
}

// StubSink is a test sink that records writes without persisting.
type StubSink struct {
	mu sync.Mutex

	// Written stores every outcome written, in order.
	Written []types.TrialOutcome
	// Batches is the number of WriteOutcomes calls.
	Batches int64
	// Closed indicates whether Close was called.
	Closed bool

	// ErrorOnWrite, if non-nil, is returned by WriteOutcomes.
	ErrorOnWrite error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// WriteOutcomes records the outcomes.
func (s *StubSink) WriteOutcomes(_ context.Context, outcomes []types.TrialOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}
	s.Batches++
	s.Written = append(s.Written, outcomes...)
	return nil
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// SetError sets the error returned by subsequent writes.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ErrorOnWrite = err
}

// Stats returns a snapshot of sink statistics.
func (s *StubSink) Stats() StubSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StubSinkStats{
		OutcomesWritten: int64(len(s.Written)),
		Batches:         s.Batches,
		Closed:          s.Closed,
	}
}

// Outcomes returns a copy of every written outcome.
func (s *StubSink) Outcomes() []types.TrialOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.TrialOutcome(nil), s.Written...)
}

// StubSinkStats is a snapshot of StubSink statistics.
type StubSinkStats struct {
	OutcomesWritten int64
	Batches         int64
	Closed          bool
}

var (
	_ Sink = (*MultiSink)(nil)
	_ Sink = (*StubSink)(nil)
)
