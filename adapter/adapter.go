// Package adapter defines the notification boundary for finished sessions.
//
// Adapters publish a session completion event to downstream systems, such as
// a lab dashboard or a scheduling service. The experiment owns adapter
// lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/flanker/types"
)

// EventTypeSessionCompleted is the event_type of every published event.
const EventTypeSessionCompleted = "session_completed"

// SessionCompletedEvent is the payload published when a session finishes.
type SessionCompletedEvent struct {
	FormatVersion  string   `json:"format_version"`
	EventType      string   `json:"event_type"` // always "session_completed"
	SessionID      string   `json:"session_id"`
	Study          string   `json:"study"`
	Participant    string   `json:"participant"`
	Day            string   `json:"day"`
	Outcome        string   `json:"outcome"` // completed, aborted, etc.
	Results        []string `json:"results"`
	Timestamp      string   `json:"timestamp"` // RFC 3339
	TrainingTrials int      `json:"training_trials"`
	MainTrials     int      `json:"main_trials"`
	DurationMs     int64    `json:"duration_ms"`
}

// NewSessionCompletedEvent builds the event for a finished session.
func NewSessionCompletedEvent(s *types.Session, study string, status types.OutcomeStatus, results []string, training, main int, duration time.Duration, at time.Time) *SessionCompletedEvent {
	return &SessionCompletedEvent{
		FormatVersion:  types.TraceFormatVersion,
		EventType:      EventTypeSessionCompleted,
		SessionID:      s.ID,
		Study:          study,
		Participant:    s.Participant.Code(),
		Day:            s.Day(),
		Outcome:        string(status),
		Results:        results,
		Timestamp:      at.UTC().Format(time.RFC3339),
		TrainingTrials: training,
		MainTrials:     main,
		DurationMs:     duration.Milliseconds(),
	}
}

// Adapter publishes session completion events to a downstream system.
// Implementations must be safe for single-use per session.
type Adapter interface {
	// Publish sends a session completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *SessionCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// BaseBackoff is the wait before the first retry. It doubles on every retry.
var BaseBackoff = 500 * time.Millisecond

// ErrPermanent marks an error that must not be retried.
var ErrPermanent = errors.New("non-retriable")

// Retry calls fn up to 1+retries times with exponential backoff between
// attempts. It stops early when fn returns an error wrapping ErrPermanent or
// when ctx ends. name prefixes every returned error.
func Retry(ctx context.Context, name string, retries int, fn func(ctx context.Context) error) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		// no backoff before the first attempt
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * BaseBackoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrPermanent) {
			return fmt.Errorf("%s: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
