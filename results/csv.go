// Package results writes the results table of a session.
//
// CSVSink writes the classic per-participant CSV file, optionally zstd
// compressed. SQLiteSink appends outcomes to a lab-wide database. Both
// implement policy.Sink.
package results

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/justapithecus/flanker/iox"
	"github.com/justapithecus/flanker/policy"
	"github.com/justapithecus/flanker/types"
)

// ZstdExt is appended to compressed results files.
const ZstdExt = ".zst"

// Rand draws the random file-name suffix.
type Rand interface {
	IntN(n int) int
}

// FileName returns the results file name for a participant code and a
// suffix in [100, 999]: <code>_<suffix>_beh.csv.
func FileName(code string, suffix int) string {
	return fmt.Sprintf("%s_%d_beh.csv", code, suffix)
}

// CSVSink writes outcomes as CSV rows under types.ResultHeader.
// The header is written before the first row. Every WriteOutcomes call
// flushes the CSV writer so rows reach the file before the call returns.
type CSVSink struct {
	mu      sync.Mutex
	w       *csv.Writer
	buf     *bufio.Writer
	closers []io.Closer
	header  bool
	closed  bool
	rows    int64
	// err is the first write failure; it is sticky.
	err error
}

// NewCSVSink writes CSV to w. If compress is set, output is zstd encoded.
// Close closes w.
func NewCSVSink(w io.WriteCloser, compress bool) (*CSVSink, error) {
	s := &CSVSink{closers: []io.Closer{w}}
	var out io.Writer = w
	if compress {
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		// encoder closes before the file
		s.closers = append([]io.Closer{enc}, s.closers...)
		out = enc
	}
	s.buf = bufio.NewWriter(out)
	s.w = csv.NewWriter(s.buf)
	return s, nil
}

// CreateCSVFile creates dir if needed and opens a new results file named
// after the participant code with a random suffix in [100, 999]. An existing
// file is never overwritten; another suffix is drawn instead.
func CreateCSVFile(dir, code string, rng Rand, compress bool) (*CSVSink, string, error) {
	if code == "" {
		return nil, "", &types.ConfigurationError{Field: "participant", Msg: "participant code is empty"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create results dir: %w", err)
	}

	const attempts = 16
	for range attempts {
		name := FileName(code, 100+rng.IntN(900))
		if compress {
			name += ZstdExt
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("create results file: %w", err)
		}
		sink, err := NewCSVSink(f, compress)
		if err != nil {
			iox.DiscardClose(f)
			return nil, "", err
		}
		return sink, path, nil
	}
	return nil, "", fmt.Errorf("no free results file name for %s in %s", code, dir)
}

// WriteOutcomes implements policy.Sink.
//
// A batch is encoded in memory and written in one piece. If writing to the
// file fails, the file may hold part of the batch; the sink then fails every
// later write with the same error rather than append the batch again.
func (s *CSVSink) WriteOutcomes(_ context.Context, outcomes []types.TrialOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("csv sink is closed")
	}
	if s.err != nil {
		return s.err
	}

	var batch bytes.Buffer
	cw := csv.NewWriter(&batch)
	if !s.header {
		_ = cw.Write(types.ResultHeader)
	}
	for _, o := range outcomes {
		_ = cw.Write(o.Row())
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}

	if _, err := s.buf.Write(batch.Bytes()); err != nil {
		s.err = fmt.Errorf("write rows: %w", err)
		return s.err
	}
	if err := s.buf.Flush(); err != nil {
		s.err = fmt.Errorf("flush rows: %w", err)
		return s.err
	}
	s.header = true
	s.rows += int64(len(outcomes))
	return nil
}

// Rows returns the number of data rows written.
func (s *CSVSink) Rows() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Close writes the header if no row was ever written, then closes the
// compressor and the underlying writer.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if !s.header {
		errs = append(errs, s.w.Write(types.ResultHeader))
		s.header = true
	}
	s.w.Flush()
	errs = append(errs, s.w.Error(), s.buf.Flush(), iox.CloseAll(s.closers...))
	return errors.Join(errs...)
}

// Verify CSVSink implements policy.Sink.
var _ policy.Sink = (*CSVSink)(nil)

// IsCompressed reports whether path names a zstd compressed results file.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, ZstdExt)
}
