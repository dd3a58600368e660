package lode

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/flanker/types"
)

// ErrNoOutcomesFound is returned when no outcome records match the filter.
var ErrNoOutcomesFound = errors.New("no trial outcome records found")

// ErrNoSessionFound is returned when no session record matches the filter.
var ErrNoSessionFound = errors.New("no session records found")

// Filter narrows a dataset query. Empty fields match everything.
type Filter struct {
	SessionID   string
	Participant string
}

func (f Filter) matchesSnapshot(snap *lode.DatasetSnapshot) bool {
	return snapshotMatchesFilter(snap, "session_id", f.SessionID) &&
		snapshotMatchesFilter(snap, "participant", f.Participant)
}

// Manifest path filtering is a coarse pre-filter; record fields are
// authoritative.
func (f Filter) matchesRecord(m map[string]any) bool {
	if f.SessionID != "" && toString(m["session_id"]) != f.SessionID {
		return false
	}
	if f.Participant != "" && toString(m["participant"]) != f.Participant {
		return false
	}
	return true
}

// ReadOutcomes returns every trial outcome matching the filter, in session
// order (session id, then write sequence).
func ReadOutcomes(ctx context.Context, ds lode.Dataset, f Filter) ([]types.TrialOutcome, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	type keyed struct {
		session string
		seq     int64
		outcome types.TrialOutcome
	}
	var found []keyed
	for _, snap := range snapshots {
		if !f.matchesSnapshot(snap) {
			continue
		}
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || record["record_kind"] != RecordKindOutcome || !f.matchesRecord(record) {
				continue
			}
			o, err := fromOutcomeRecordMap(record)
			if err != nil {
				return nil, err
			}
			found = append(found, keyed{toString(record["session_id"]), toInt64(record["seq"]), o})
		}
	}
	if len(found) == 0 {
		return nil, ErrNoOutcomesFound
	}

	slices.SortStableFunc(found, func(a, b keyed) int {
		if a.session != b.session {
			if a.session < b.session {
				return -1
			}
			return 1
		}
		return int(a.seq - b.seq)
	})
	out := make([]types.TrialOutcome, len(found))
	for i, k := range found {
		out[i] = k.outcome
	}
	return out, nil
}

// QueryLatestSession finds the most recent session record matching the filter.
// Returns the raw record map or ErrNoSessionFound.
func QueryLatestSession(ctx context.Context, ds lode.Dataset, f Filter) (map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	// Iterate in reverse (latest first); snapshots are ordered by creation time
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatchesFilter(snap, "phase", sessionPhase) || !f.matchesSnapshot(snap) {
			continue
		}
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}
		for _, item := range data {
			record, ok := item.(map[string]any)
			if ok && record["record_kind"] == RecordKindSession && f.matchesRecord(record) {
				return record, nil
			}
		}
	}
	return nil, ErrNoSessionFound
}
