package runtime

import "github.com/justapithecus/flanker/types"

// ResultLog is the ordered, append-only record of a session's trial outcomes.
// It is owned by the ExperimentRunner and is not safe for concurrent use.
type ResultLog struct {
	outcomes []types.TrialOutcome
}

// NewResultLog creates an empty result log.
func NewResultLog() *ResultLog {
	return &ResultLog{}
}

// Append adds an outcome at the end of the log.
func (l *ResultLog) Append(o types.TrialOutcome) {
	l.outcomes = append(l.outcomes, o)
}

// Len returns the number of outcomes.
func (l *ResultLog) Len() int {
	return len(l.outcomes)
}

// Outcomes returns a copy of the outcomes in append order.
func (l *ResultLog) Outcomes() []types.TrialOutcome {
	return append([]types.TrialOutcome(nil), l.outcomes...)
}

// Count returns the number of outcomes of the given phase.
func (l *ResultLog) Count(phase types.Phase) int {
	n := 0
	for _, o := range l.outcomes {
		if o.Phase == phase {
			n++
		}
	}
	return n
}

// Rows renders the log as a table: the fixed header, then one row per outcome.
func (l *ResultLog) Rows() [][]string {
	rows := make([][]string, 0, len(l.outcomes)+1)
	rows = append(rows, append([]string(nil), types.ResultHeader...))
	for _, o := range l.outcomes {
		rows = append(rows, o.Row())
	}
	return rows
}
