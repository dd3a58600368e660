// Package lode persists trial outcomes to a Lode dataset.
//
// Records are Hive-partitioned by study, participant, day, session and phase,
// on the local filesystem or S3.
package lode

import (
	"context"
	"sync"
	"time"

	"github.com/justapithecus/flanker/policy"
	"github.com/justapithecus/flanker/types"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "flanker"

// DeriveDay computes the partition day from the session start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds Lode sink configuration.
// All partition keys are required.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Study is the partition key for the experiment name.
	Study string
	// Participant is the participant code.
	Participant string
	// Day is the partition key derived from session start (YYYY-MM-DD UTC).
	Day string
	// SessionID is the partition key for the session.
	SessionID string
}

// ConfigFor derives a Config from a session.
func ConfigFor(dataset, study string, s *types.Session) Config {
	if dataset == "" {
		dataset = DefaultDataset
	}
	return Config{
		Dataset:     dataset,
		Study:       study,
		Participant: s.Participant.Code(),
		Day:         DeriveDay(s.StartedAt),
		SessionID:   s.ID,
	}
}

// Client abstracts the Lode storage client.
type Client interface {
	// WriteOutcomes writes a batch of trial outcomes.
	// Must preserve ordering within the batch.
	WriteOutcomes(ctx context.Context, dataset, sessionID string, outcomes []types.TrialOutcome) error

	// Close releases client resources.
	Close() error
}

// Sink is a Lode-backed implementation of policy.Sink.
type Sink struct {
	config Config
	client Client
}

// NewSink creates a new Lode sink.
func NewSink(config Config, client Client) *Sink {
	return &Sink{
		config: config,
		client: client,
	}
}

// WriteOutcomes implements policy.Sink.
func (s *Sink) WriteOutcomes(ctx context.Context, outcomes []types.TrialOutcome) error {
	return s.client.WriteOutcomes(ctx, s.config.Dataset, s.config.SessionID, outcomes)
}

// Close implements policy.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}

// Verify Sink implements policy.Sink.
var _ policy.Sink = (*Sink)(nil)

// StubClient is a test client that accepts writes without persisting.
type StubClient struct {
	mu       sync.Mutex
	Outcomes []StubOutcomeRecord
	Closed   bool
}

// StubOutcomeRecord is a recorded outcome write for testing.
type StubOutcomeRecord struct {
	Dataset   string
	SessionID string
	Outcomes  []types.TrialOutcome
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteOutcomes implements Client.
func (c *StubClient) WriteOutcomes(_ context.Context, dataset, sessionID string, outcomes []types.TrialOutcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Outcomes = append(c.Outcomes, StubOutcomeRecord{
		Dataset:   dataset,
		SessionID: sessionID,
		Outcomes:  outcomes,
	})
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

// Verify StubClient implements Client.
var _ Client = (*StubClient)(nil)
