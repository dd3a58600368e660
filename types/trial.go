package types

import "strconv"

// NoResponse is the key recorded when no qualifying key arrived.
const NoResponse = "no_key"

// TimedOut is the elapsed-time sentinel recorded alongside NoResponse.
const TimedOut int64 = -1

// SuppressedRT is written in place of the reaction time of training trials.
const SuppressedRT = "-"

// Phase identifies the block a trial belongs to.
type Phase string

const (
	// PhaseTraining trials are followed by feedback and are not scored.
	PhaseTraining Phase = "training"
	// PhaseMain trials are scored and get no feedback.
	PhaseMain Phase = "main"
)

// ResponseOutcome is the resolved result of a response window.
type ResponseOutcome struct {
	// Key is the pressed reaction key, or NoResponse.
	Key string `json:"key"`
	// ElapsedMs is the time from stimulus onset, or TimedOut.
	ElapsedMs int64 `json:"elapsed_ms"`
}

// Responded reports whether a qualifying key was pressed.
func (r ResponseOutcome) Responded() bool {
	return r.Key != NoResponse
}

// NoResponseOutcome returns the outcome of a window that timed out.
func NoResponseOutcome() ResponseOutcome {
	return ResponseOutcome{Key: NoResponse, ElapsedMs: TimedOut}
}

// TrialOutcome is the immutable record of one completed trial.
type TrialOutcome struct {
	Phase         Phase           `json:"phase"`
	Index         int             `json:"index"`
	Response      ResponseOutcome `json:"response"`
	Correct       bool            `json:"correct"`
	Category      Category        `json:"category"`
	DurationLabel string          `json:"duration_label"`
	StimulusID    string          `json:"stimulus_id"`
}

// ReportedRT returns the reaction time as written to the results table.
// Training trials report SuppressedRT regardless of the measured time.
func (o TrialOutcome) ReportedRT() string {
	if o.Phase == PhaseTraining {
		return SuppressedRT
	}
	return strconv.FormatInt(o.Response.ElapsedMs, 10)
}

// ReportedElapsedMs returns the reaction time as persisted by every result
// sink. Training trials report none.
func (o TrialOutcome) ReportedElapsedMs() (int64, bool) {
	if o.Phase == PhaseTraining {
		return 0, false
	}
	return o.Response.ElapsedMs, true
}

// ElapsedFromReport rebuilds ResponseOutcome.ElapsedMs from a persisted
// reaction time. A missing value reads back as 0, or TimedOut when no key
// was pressed.
func ElapsedFromReport(key string, ms int64, ok bool) int64 {
	switch {
	case key == NoResponse:
		return TimedOut
	case !ok:
		return 0
	default:
		return ms
	}
}

// ResultHeader is the fixed header row of the results table.
var ResultHeader = []string{
	"phase",
	"trial",
	"key",
	"reaction_time",
	"correct",
	"stimulus_type",
	"stimulus_duration",
}

// Row renders the outcome in ResultHeader column order.
func (o TrialOutcome) Row() []string {
	return []string{
		string(o.Phase),
		strconv.Itoa(o.Index),
		o.Response.Key,
		o.ReportedRT(),
		strconv.FormatBool(o.Correct),
		string(o.Category),
		o.DurationLabel,
	}
}
