package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/justapithecus/flanker/metrics"
	"github.com/justapithecus/flanker/policy"
	"github.com/justapithecus/flanker/types"
)

// SessionReport is the structured JSON report written by --report.
type SessionReport struct {
	SessionID   string              `json:"session_id"`
	Participant string              `json:"participant"`
	Outcome     types.OutcomeStatus `json:"outcome"`
	Message     string              `json:"message"`
	ExitCode    int                 `json:"exit_code"`
	DurationMs  int64               `json:"duration_ms"`

	TrainingTrials int `json:"training_trials"`
	MainTrials     int `json:"main_trials"`

	Results  []string          `json:"results,omitempty"`
	Policy   *ReportPolicy     `json:"policy"`
	Metrics  *metrics.Snapshot `json:"metrics"`
	Training *metrics.Summary  `json:"training,omitempty"`
	Main     *metrics.Summary  `json:"main,omitempty"`
}

// ReportPolicy holds policy stats in the report.
type ReportPolicy struct {
	Name              string           `json:"name"`
	OutcomesReceived  int64            `json:"outcomes_received"`
	OutcomesPersisted int64            `json:"outcomes_persisted"`
	Buffered          int64            `json:"buffered"`
	Flushes           int64            `json:"flushes"`
	Errors            int64            `json:"errors"`
	FlushTriggers     map[string]int64 `json:"flush_triggers,omitempty"`
}

// ReportInput gathers what BuildSessionReport needs.
type ReportInput struct {
	Session     *types.Session
	Log         *ResultLog
	Err         error
	Duration    time.Duration
	PolicyName  string
	PolicyStats policy.Stats
	// FlushTriggers is set for the streaming policy.
	FlushTriggers map[policy.FlushTrigger]int64
	Snapshot      metrics.Snapshot
	// Results lists the locations the outcomes were written to.
	Results []string
}

// BuildSessionReport composes a SessionReport.
func BuildSessionReport(in ReportInput) *SessionReport {
	outcome := Outcome(in.Err)
	report := &SessionReport{
		Outcome:    outcome.Status,
		Message:    outcome.Message,
		ExitCode:   ExitCodeFor(outcome.Status),
		DurationMs: in.Duration.Milliseconds(),
		Results:    in.Results,
		Policy: &ReportPolicy{
			Name:              in.PolicyName,
			OutcomesReceived:  in.PolicyStats.TotalOutcomes,
			OutcomesPersisted: in.PolicyStats.OutcomesPersisted,
			Buffered:          in.PolicyStats.Buffered,
			Flushes:           in.PolicyStats.FlushCount,
			Errors:            in.PolicyStats.Errors,
		},
		Metrics: &in.Snapshot,
	}
	if in.Session != nil {
		report.SessionID = in.Session.ID
		report.Participant = in.Session.Participant.Code()
	}
	if len(in.FlushTriggers) > 0 {
		report.Policy.FlushTriggers = make(map[string]int64, len(in.FlushTriggers))
		for k, v := range in.FlushTriggers {
			report.Policy.FlushTriggers[string(k)] = v
		}
	}
	if in.Log != nil {
		outcomes := in.Log.Outcomes()
		report.TrainingTrials = in.Log.Count(types.PhaseTraining)
		report.MainTrials = in.Log.Count(types.PhaseMain)
		if report.TrainingTrials > 0 {
			s := metrics.Summarize(outcomes, types.PhaseTraining)
			report.Training = &s
		}
		if report.MainTrials > 0 {
			s := metrics.Summarize(outcomes, types.PhaseMain)
			report.Main = &s
		}
	}
	return report
}

// WriteSessionReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteSessionReport(report *SessionReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeSessionReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeSessionReportTo writes report JSON to any writer (for testing).
func writeSessionReportTo(report *SessionReport, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report *SessionReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
