package policy

import (
	"context"

	"github.com/justapithecus/flanker/types"
)

// StrictPolicy implements synchronous, unbuffered persistence.
//
//   - No buffering: each outcome is written as soon as it is appended
//   - Backpressure: the trial loop blocks on sink latency
//   - Sink errors end the session
type StrictPolicy struct {
	sink  Sink
	stats *statsRecorder
}

// NewStrictPolicy creates a new strict policy writing to the given sink.
func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{sink: sink, stats: newStatsRecorder()}
}

// Append writes the outcome immediately.
func (p *StrictPolicy) Append(ctx context.Context, outcome types.TrialOutcome) error {
	p.stats.incTotal()

	if err := p.sink.WriteOutcomes(ctx, []types.TrialOutcome{outcome}); err != nil {
		p.stats.incErrors()
		return err
	}
	p.stats.incPersisted(1)
	return nil
}

// Flush is a no-op for strict policy (nothing is buffered).
func (p *StrictPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close closes the underlying sink.
func (p *StrictPolicy) Close() error {
	return p.sink.Close()
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}

// Verify StrictPolicy implements Policy.
var _ Policy = (*StrictPolicy)(nil)
