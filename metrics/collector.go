// Package metrics provides per-session metrics collection and the behavioural
// summary of a trial block.
//
// The Collector accumulates operational counters during a single session.
// Result sink counters are absorbed from policy.Stats at session end rather
// than recorded live, avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all session counters.
type Snapshot struct {
	// Session lifecycle
	SessionsStarted     int64
	SessionsCompleted   int64
	SessionsAborted     int64
	SessionsInterrupted int64
	SessionsFailed      int64

	// Trials
	TrainingTrials int64
	MainTrials     int64
	Responses      int64
	Omissions      int64
	CorrectTrials  int64

	// Devices
	DeviceErrors int64
	FramesDrawn  int64

	// Result sink (absorbed from policy.Stats at session end)
	OutcomesReceived  int64
	OutcomesPersisted int64
	FlushCount        int64
	SinkErrors        int64

	// Storage (per call, not per row)
	StorageWriteSuccess int64
	StorageWriteFailure int64

	// Trace
	TraceFrames int64
	TraceErrors int64

	// Dimensions (informational, set at construction)
	Policy         string
	Backend        string
	StorageBackend string
	SessionID      string
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex
	s  Snapshot
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(policy, backend, storageBackend, sessionID string) *Collector {
	return &Collector{s: Snapshot{
		Policy:         policy,
		Backend:        backend,
		StorageBackend: storageBackend,
		SessionID:      sessionID,
	}}
}

func (c *Collector) update(fn func(s *Snapshot)) {
	if c == nil {
		return
	}
	c.mu.Lock()
	fn(&c.s)
	c.mu.Unlock()
}

// --- Session lifecycle ---

// IncSessionStarted records a session start.
func (c *Collector) IncSessionStarted() { c.update(func(s *Snapshot) { s.SessionsStarted++ }) }

// IncSessionCompleted records a session that ran every planned trial.
func (c *Collector) IncSessionCompleted() { c.update(func(s *Snapshot) { s.SessionsCompleted++ }) }

// IncSessionAborted records a participant abort.
func (c *Collector) IncSessionAborted() { c.update(func(s *Snapshot) { s.SessionsAborted++ }) }

// IncSessionInterrupted records a signal interrupt.
func (c *Collector) IncSessionInterrupted() {
	c.update(func(s *Snapshot) { s.SessionsInterrupted++ })
}

// IncSessionFailed records a device, configuration or sink failure.
func (c *Collector) IncSessionFailed() { c.update(func(s *Snapshot) { s.SessionsFailed++ }) }

// --- Trials ---

// IncTrial records one resolved trial.
func (c *Collector) IncTrial(training, responded, correct bool) {
	c.update(func(s *Snapshot) {
		if training {
			s.TrainingTrials++
		} else {
			s.MainTrials++
		}
		if responded {
			s.Responses++
		} else {
			s.Omissions++
		}
		if correct {
			s.CorrectTrials++
		}
	})
}

// --- Devices ---

// IncDeviceError records a display or input failure.
func (c *Collector) IncDeviceError() { c.update(func(s *Snapshot) { s.DeviceErrors++ }) }

// AddFramesDrawn records committed frames.
func (c *Collector) AddFramesDrawn(n int64) { c.update(func(s *Snapshot) { s.FramesDrawn += n }) }

// --- Storage ---

// IncStorageWriteSuccess records a successful storage write (per call).
func (c *Collector) IncStorageWriteSuccess() {
	c.update(func(s *Snapshot) { s.StorageWriteSuccess++ })
}

// IncStorageWriteFailure records a failed storage write (per call).
func (c *Collector) IncStorageWriteFailure() {
	c.update(func(s *Snapshot) { s.StorageWriteFailure++ })
}

// --- Trace ---

// IncTraceFrame records a written trace frame.
func (c *Collector) IncTraceFrame() { c.update(func(s *Snapshot) { s.TraceFrames++ }) }

// IncTraceError records a failed trace write.
func (c *Collector) IncTraceError() { c.update(func(s *Snapshot) { s.TraceErrors++ }) }

// --- Result sink (absorbed from policy.Stats) ---

// AbsorbPolicyStats copies result sink counters into the collector.
// Called once after the session with the final policy stats snapshot.
func (c *Collector) AbsorbPolicyStats(received, persisted, flushes, errors int64) {
	c.update(func(s *Snapshot) {
		s.OutcomesReceived = received
		s.OutcomesPersisted = persisted
		s.FlushCount = flushes
		s.SinkErrors = errors
	})
}

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}
