package policy

import (
	"context"
	"errors"
	"sync"

	"github.com/justapithecus/flanker/log"
	"github.com/justapithecus/flanker/types"
)

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// MaxBufferOutcomes is the maximum number of outcomes held in memory.
	// When the buffer is full, Append flushes before accepting more.
	MaxBufferOutcomes int

	// Logger is an optional logger for policy observability.
	// If nil, no logging is emitted.
	Logger *log.Logger
}

// DefaultBufferedConfig returns sensible defaults for buffered policy.
// The default holds a full block of trials in memory.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{MaxBufferOutcomes: 1000}
}

// ErrBufferFull is returned when the buffer is full and cannot be drained.
var ErrBufferFull = errors.New("buffer full: cannot accept trial outcome")

// ErrInvalidConfig is returned when BufferedConfig is invalid.
var ErrInvalidConfig = errors.New("invalid config: MaxBufferOutcomes must be > 0")

// BufferedPolicy holds outcomes in memory and writes them in one batch on
// flush. This keeps disk I/O out of the trial loop.
//
// Flush semantics are at-least-once per batch and exactly-once per flush
// sequence: a failed write keeps the buffer for retry, a successful write
// clears it, so repeated flushes never duplicate a row.
type BufferedPolicy struct {
	sink   Sink
	config BufferedConfig
	logger *log.Logger

	mu     sync.Mutex // guards buffer state and stats
	buffer []types.TrialOutcome
	stats  *statsRecorder

	// flushMu serializes sink writes.
	flushMu sync.Mutex
}

// NewBufferedPolicy creates a new buffered policy.
func NewBufferedPolicy(sink Sink, config BufferedConfig) (*BufferedPolicy, error) {
	if config.MaxBufferOutcomes <= 0 {
		return nil, ErrInvalidConfig
	}
	return &BufferedPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]types.TrialOutcome, 0, min(config.MaxBufferOutcomes, 512)),
		stats:  newStatsRecorder(),
	}, nil
}

// Append buffers the outcome.
// A full buffer is flushed first; if that flush fails the outcome is refused.
func (p *BufferedPolicy) Append(ctx context.Context, outcome types.TrialOutcome) error {
	p.mu.Lock()
	full := len(p.buffer) >= p.config.MaxBufferOutcomes
	p.mu.Unlock()

	if full {
		if err := p.Flush(ctx); err != nil {
			p.mu.Lock()
			p.stats.incErrorsLocked()
			p.mu.Unlock()
			p.logBufferOverflow(err)
			return errors.Join(ErrBufferFull, err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.incTotalLocked()
	p.buffer = append(p.buffer, outcome)
	return nil
}

// Flush writes every buffered outcome to the sink.
// On failure the buffer is preserved for the next attempt.
func (p *BufferedPolicy) Flush(ctx context.Context) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	p.stats.incFlushLocked()
	batch := p.buffer
	p.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := p.sink.WriteOutcomes(ctx, batch); err != nil {
		p.mu.Lock()
		p.stats.incErrorsLocked()
		p.mu.Unlock()
		p.logFlushFailure(len(batch), err)
		return err
	}

	p.mu.Lock()
	p.stats.incPersistedLocked(int64(len(batch)))
	// Appends during the write land after the flushed prefix.
	p.buffer = append(make([]types.TrialOutcome, 0, cap(p.buffer)), p.buffer[len(batch):]...)
	p.mu.Unlock()
	return nil
}

// Close flushes remaining outcomes and closes the sink.
func (p *BufferedPolicy) Close() error {
	// Best-effort flush on close
	_ = p.Flush(context.Background())
	return p.sink.Close()
}

// Stats returns an atomic snapshot of policy statistics.
func (p *BufferedPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.snapshotLocked(len(p.buffer))
}

func (p *BufferedPolicy) logBufferOverflow(err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("buffer overflow", map[string]any{
		"error":  err.Error(),
		"policy": "buffered",
	})
}

func (p *BufferedPolicy) logFlushFailure(n int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("flush failed", map[string]any{
		"outcomes": n,
		"error":    err.Error(),
		"policy":   "buffered",
	})
}

// Verify BufferedPolicy implements Policy.
var _ Policy = (*BufferedPolicy)(nil)
