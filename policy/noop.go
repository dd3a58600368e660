package policy

import (
	"context"

	"github.com/justapithecus/flanker/types"
)

// NoopPolicy accepts every outcome without persisting it.
// Used for dry runs where only the session report matters.
type NoopPolicy struct {
	stats *statsRecorder
}

// NewNoopPolicy creates a new no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{stats: newStatsRecorder()}
}

// Append counts the outcome as persisted.
func (p *NoopPolicy) Append(_ context.Context, _ types.TrialOutcome) error {
	p.stats.incTotal()
	p.stats.incPersisted(1)
	return nil
}

// Flush is a no-op.
func (p *NoopPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close is a no-op.
func (p *NoopPolicy) Close() error {
	return nil
}

// Stats returns the policy statistics.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}

// Verify NoopPolicy implements Policy.
var _ Policy = (*NoopPolicy)(nil)
