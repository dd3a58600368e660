package lode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/flanker/metrics"
	"github.com/justapithecus/flanker/types"
)

// LodeClient is a real Lode-backed implementation of Client.
// Uses Lode's HiveLayout with partition keys:
// study/participant/day/session_id/phase.
type LodeClient struct {
	dataset lode.Dataset
	config  Config

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error

	mu  sync.Mutex // guards seq
	seq int64      // outcomes written so far, across batches
}

// NewLodeClient creates a new Lode client with filesystem storage.
// The root parameter is the base directory for Hive-partitioned storage.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a new Lode client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return newClient(ds, cfg, factory), nil
}

func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *LodeClient {
	return &LodeClient{
		dataset:      ds,
		config:       cfg,
		storeFactory: factory,
	}
}

// Validate checks that every partition key is set.
func (c Config) Validate() error {
	for _, kv := range [][2]string{
		{"dataset", c.Dataset},
		{"study", c.Study},
		{"participant", c.Participant},
		{"day", c.Day},
		{"session_id", c.SessionID},
	} {
		if kv[1] == "" {
			return &types.ConfigurationError{Field: "storage." + kv[0], Msg: "must be non-empty"}
		}
	}
	return nil
}

// WriteOutcomes writes a batch of trial outcomes to Lode.
// Each record carries a seq that is cumulative across batches so readers can
// restore session order. The seq only advances after a successful write.
func (c *LodeClient) WriteOutcomes(ctx context.Context, _, _ string, outcomes []types.TrialOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]any, 0, len(outcomes))
	for i, o := range outcomes {
		records = append(records, toOutcomeRecordMap(o, c.seq+int64(i), c.config))
	}

	if _, err := c.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath())
	}
	c.seq += int64(len(outcomes))
	return nil
}

// WriteSession writes the final session record to the phase=session partition.
func (c *LodeClient) WriteSession(ctx context.Context, status types.OutcomeStatus, snap metrics.Snapshot, completedAt time.Time) error {
	record := toSessionRecordMap(status, snap, completedAt, c.config)
	if _, err := c.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath())
	}
	return nil
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

func (c *LodeClient) partitionPath() string {
	return fmt.Sprintf("%s/study=%s/participant=%s/day=%s/session_id=%s",
		c.config.Dataset, c.config.Study, c.config.Participant, c.config.Day, c.config.SessionID)
}

// Verify LodeClient implements Client.
var _ Client = (*LodeClient)(nil)
