package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/klauspost/compress/zstd"

	"github.com/justapithecus/flanker/iox"
	"github.com/justapithecus/flanker/types"
)

// ReadCSV parses a results table written by CSVSink.
//
// The table carries no stimulus id, and training rows carry no reaction time:
// a training response reads back with ElapsedMs 0, a training timeout with
// types.TimedOut.
func ReadCSV(r io.Reader) ([]types.TrialOutcome, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(types.ResultHeader)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("results table is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !slices.Equal(header, types.ResultHeader) {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	var out []types.TrialOutcome
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		o, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, o)
	}
}

func parseRow(rec []string) (types.TrialOutcome, error) {
	phase := types.Phase(rec[0])
	if phase != types.PhaseTraining && phase != types.PhaseMain {
		return types.TrialOutcome{}, fmt.Errorf("unknown phase %q", rec[0])
	}
	index, err := strconv.Atoi(rec[1])
	if err != nil {
		return types.TrialOutcome{}, fmt.Errorf("trial: %w", err)
	}
	key := rec[2]

	var ms int64
	reported := rec[3] != types.SuppressedRT
	if reported && key != types.NoResponse {
		ms, err = strconv.ParseInt(rec[3], 10, 64)
		if err != nil {
			return types.TrialOutcome{}, fmt.Errorf("reaction_time: %w", err)
		}
	}
	elapsed := types.ElapsedFromReport(key, ms, reported)

	correct, err := strconv.ParseBool(rec[4])
	if err != nil {
		return types.TrialOutcome{}, fmt.Errorf("correct: %w", err)
	}
	category := types.Category(rec[5])
	if !category.Valid() {
		return types.TrialOutcome{}, fmt.Errorf("unknown stimulus_type %q", rec[5])
	}

	return types.TrialOutcome{
		Phase:         phase,
		Index:         index,
		Response:      types.ResponseOutcome{Key: key, ElapsedMs: elapsed},
		Correct:       correct,
		Category:      category,
		DurationLabel: rec[6],
	}, nil
}

// ReadFile reads a results file, decompressing .zst files.
func ReadFile(path string) ([]types.TrialOutcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open results: %w", err)
	}
	defer iox.DiscardClose(f)

	var r io.Reader = f
	if IsCompressed(path) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	return ReadCSV(r)
}
