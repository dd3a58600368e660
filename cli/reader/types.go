// Package reader provides the read-side data access layer for the flanker CLI.
//
// This package isolates every read of persisted results from the session
// runtime. Read-only commands (summary, catalog) use it exclusively.
package reader

import (
	"github.com/justapithecus/flanker/metrics"
	"github.com/justapithecus/flanker/types"
)

// SourceKind names a persisted results format.
type SourceKind string

// Source kinds.
const (
	SourceCSV    SourceKind = "csv"
	SourceSQLite SourceKind = "sqlite"
	SourceLode   SourceKind = "lode"
)

// Source locates persisted results.
type Source struct {
	Kind SourceKind
	// Path is the CSV file, the SQLite database or the Lode filesystem root.
	Path string
	// SessionID selects one session (sqlite, lode). Empty selects every session.
	SessionID string
	// Participant filters Lode results by participant code.
	Participant string
	// Dataset is the Lode dataset name.
	Dataset string
}

// SessionRecord is the end-of-session record stored next to the outcomes.
type SessionRecord struct {
	SessionID      string `json:"session_id"`
	Study          string `json:"study"`
	Participant    string `json:"participant"`
	Day            string `json:"day"`
	Outcome        string `json:"outcome"`
	CompletedAt    string `json:"completed_at"`
	TrainingTrials int64  `json:"training_trials"`
	MainTrials     int64  `json:"main_trials"`
	Responses      int64  `json:"responses"`
	Omissions      int64  `json:"omissions"`
	CorrectTrials  int64  `json:"correct_trials"`
	DeviceErrors   int64  `json:"device_errors"`
	FramesDrawn    int64  `json:"frames_drawn"`
	Persisted      int64  `json:"outcomes_persisted"`
	Policy         string `json:"policy"`
	Backend        string `json:"backend"`
}

// SessionSummary is the behavioural summary of persisted results.
type SessionSummary struct {
	Source         string           `json:"source"`
	Kind           SourceKind       `json:"kind"`
	SessionID      string           `json:"session_id,omitempty"`
	Trials         int              `json:"trials"`
	TrainingTrials int              `json:"training_trials"`
	MainTrials     int              `json:"main_trials"`
	Training       *metrics.Summary `json:"training,omitempty"`
	Main           *metrics.Summary `json:"main,omitempty"`
	Session        *SessionRecord   `json:"session,omitempty"`
}

// CatalogItem is one stimulus of the catalog listing.
type CatalogItem struct {
	ID       string         `json:"id"`
	Glyph    string         `json:"glyph"`
	Correct  types.Side     `json:"correct"`
	Category types.Category `json:"category"`
	Image    string         `json:"image"`
}
