// Package policy defines how trial outcomes reach persistent storage.
//
// A Policy is the result sink seen by the experiment runner. It decides when
// outcomes are written (immediately, on flush, or in periodic batches) and
// delegates the write itself to a Sink.
//
// Trial outcomes are never dropped. A policy that cannot persist an outcome
// returns an error and the session ends.
package policy

import (
	"context"
	"sync"

	"github.com/justapithecus/flanker/types"
)

// Policy is the result sink interface.
type Policy interface {
	// Append accepts one completed trial outcome.
	// Returns error if the outcome cannot be accepted (ends the session).
	Append(ctx context.Context, outcome types.TrialOutcome) error

	// Flush persists every accepted outcome not yet written.
	// Flush is idempotent: calling it again writes nothing already written.
	Flush(ctx context.Context) error

	// Close releases policy resources and closes the sink.
	Close() error

	// Stats returns an atomic snapshot of policy counters.
	Stats() Stats
}

// Stats represents policy observability counters.
type Stats struct {
	// TotalOutcomes is the number of outcomes appended.
	TotalOutcomes int64
	// OutcomesPersisted is the number of outcomes written to the sink.
	OutcomesPersisted int64
	// Buffered is the number of outcomes awaiting a flush.
	Buffered int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the count of sink errors encountered.
	Errors int64
}

// statsRecorder is an internal helper for thread-safe stats management.
//
// Lock discipline:
//   - StrictPolicy and NoopPolicy use the locking methods
//   - BufferedPolicy and StreamingPolicy use the Locked methods only while
//     holding their own mu, so buffer state and counters change together
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{}
}

func (r *statsRecorder) incTotal() {
	r.mu.Lock()
	r.stats.TotalOutcomes++
	r.mu.Unlock()
}

func (r *statsRecorder) incPersisted(n int64) {
	r.mu.Lock()
	r.stats.OutcomesPersisted += n
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// --- Locked methods ---
// Caller must hold the owning policy's mu.

func (r *statsRecorder) incTotalLocked() {
	r.stats.TotalOutcomes++
}

func (r *statsRecorder) incPersistedLocked(n int64) {
	r.stats.OutcomesPersisted += n
}

func (r *statsRecorder) incErrorsLocked() {
	r.stats.Errors++
}

func (r *statsRecorder) incFlushLocked() {
	r.stats.FlushCount++
}

// snapshotLocked returns a snapshot with the given buffered count.
func (r *statsRecorder) snapshotLocked(buffered int) Stats {
	s := r.stats
	s.Buffered = int64(buffered)
	return s
}
