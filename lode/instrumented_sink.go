package lode

import (
	"context"

	"github.com/justapithecus/flanker/metrics"
	"github.com/justapithecus/flanker/policy"
	"github.com/justapithecus/flanker/types"
)

// InstrumentedSink wraps a policy.Sink and records write metrics.
// Each WriteOutcomes call increments storage write success or failure on the
// collector. It wraps any sink, not only Lode ones.
type InstrumentedSink struct {
	inner     policy.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteOutcomes delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) WriteOutcomes(ctx context.Context, outcomes []types.TrialOutcome) error {
	err := s.inner.WriteOutcomes(ctx, outcomes)
	if err != nil {
		s.collector.IncStorageWriteFailure()
	} else {
		s.collector.IncStorageWriteSuccess()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

// Verify InstrumentedSink implements policy.Sink.
var _ policy.Sink = (*InstrumentedSink)(nil)
