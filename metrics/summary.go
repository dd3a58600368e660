package metrics

import (
	"math"
	"slices"

	"github.com/justapithecus/flanker/types"
)

// RTStats describes a reaction time distribution in milliseconds.
type RTStats struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean_ms"`
	SD     float64 `json:"sd_ms"`
	Median float64 `json:"median_ms"`
	Min    int64   `json:"min_ms"`
	Max    int64   `json:"max_ms"`
}

// Cell summarizes the trials of one condition.
//
// An omission is a trial without a response. A commission is a response with
// the wrong key. Reaction time statistics use correct responses only.
type Cell struct {
	Label          string  `json:"label"`
	Trials         int     `json:"trials"`
	Responses      int     `json:"responses"`
	Correct        int     `json:"correct"`
	Omissions      int     `json:"omissions"`
	Commissions    int     `json:"commissions"`
	Accuracy       float64 `json:"accuracy"`
	OmissionRate   float64 `json:"omission_rate"`
	CommissionRate float64 `json:"commission_rate"`
	RT             RTStats `json:"rt"`
}

// Summary is the behavioural summary of one phase.
type Summary struct {
	Phase      types.Phase `json:"phase"`
	Overall    Cell        `json:"overall"`
	ByCategory []Cell      `json:"by_category"`
	ByDuration []Cell      `json:"by_duration"`
	// FlankerEffectMs is the incongruent minus congruent mean correct RT.
	// Zero when either condition has no correct responses.
	FlankerEffectMs float64 `json:"flanker_effect_ms"`
}

// Summarize computes the summary of the outcomes of the given phase.
// Training outcomes never contribute reaction times: they are not reported.
func Summarize(outcomes []types.TrialOutcome, phase types.Phase) Summary {
	var selected []types.TrialOutcome
	for _, o := range outcomes {
		if o.Phase == phase {
			selected = append(selected, o)
		}
	}
	withRT := phase == types.PhaseMain

	s := Summary{Phase: phase, Overall: cell("all", selected, withRT)}

	for _, cat := range types.Categories() {
		var sub []types.TrialOutcome
		for _, o := range selected {
			if o.Category == cat {
				sub = append(sub, o)
			}
		}
		s.ByCategory = append(s.ByCategory, cell(string(cat), sub, withRT))
	}

	var labels []string
	for _, o := range selected {
		if !slices.Contains(labels, o.DurationLabel) {
			labels = append(labels, o.DurationLabel)
		}
	}
	slices.Sort(labels)
	for _, label := range labels {
		var sub []types.TrialOutcome
		for _, o := range selected {
			if o.DurationLabel == label {
				sub = append(sub, o)
			}
		}
		s.ByDuration = append(s.ByDuration, cell(label, sub, withRT))
	}

	congruent, incongruent := s.ByCategory[1].RT, s.ByCategory[2].RT
	if congruent.N > 0 && incongruent.N > 0 {
		s.FlankerEffectMs = incongruent.Mean - congruent.Mean
	}
	return s
}

func cell(label string, outcomes []types.TrialOutcome, withRT bool) Cell {
	c := Cell{Label: label, Trials: len(outcomes)}
	var rts []int64
	for _, o := range outcomes {
		switch {
		case !o.Response.Responded():
			c.Omissions++
		case o.Correct:
			c.Responses++
			c.Correct++
			if withRT {
				rts = append(rts, o.Response.ElapsedMs)
			}
		default:
			c.Responses++
			c.Commissions++
		}
	}
	if c.Trials > 0 {
		c.Accuracy = float64(c.Correct) / float64(c.Trials)
		c.OmissionRate = float64(c.Omissions) / float64(c.Trials)
	}
	if c.Responses > 0 {
		c.CommissionRate = float64(c.Commissions) / float64(c.Responses)
	}
	c.RT = ComputeRTStats(rts)
	return c
}

// ComputeRTStats returns the distribution of rts.
// SD is the population standard deviation; a single sample has SD 0.
func ComputeRTStats(rts []int64) RTStats {
	if len(rts) == 0 {
		return RTStats{}
	}
	sorted := slices.Clone(rts)
	slices.Sort(sorted)

	var sum float64
	for _, rt := range sorted {
		sum += float64(rt)
	}
	mean := sum / float64(len(sorted))

	var sq float64
	for _, rt := range sorted {
		d := float64(rt) - mean
		sq += d * d
	}

	n := len(sorted)
	median := float64(sorted[n/2])
	if n%2 == 0 {
		median = float64(sorted[n/2-1]+sorted[n/2]) / 2
	}

	return RTStats{
		N:      n,
		Mean:   mean,
		SD:     math.Sqrt(sq / float64(n)),
		Median: median,
		Min:    sorted[0],
		Max:    sorted[n-1],
	}
}
