package trace

import (
	"bufio"
	"io"
	"sync"

	"github.com/justapithecus/flanker/response"
	"github.com/justapithecus/flanker/types"
)

// Writer records window transitions to a trace stream.
// It implements response.Recorder. Recording never fails the trial: the first
// write error is retained and every later record is skipped.
type Writer struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	seq    int64
	err    error

	// OnFrame, if set, is called after each successfully buffered frame.
	OnFrame func()
	// OnError, if set, is called once with the first write error.
	OnError func(error)
}

// NewWriter writes the header frame and returns a Writer.
// If w is an io.Closer it is closed by Close.
func NewWriter(w io.Writer, session *types.Session, frameRate int) (*Writer, error) {
	tw := &Writer{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		tw.closer = c
	}
	h := Header{
		Type:          HeaderType,
		FormatVersion: types.TraceFormatVersion,
		FrameRate:     frameRate,
	}
	if session != nil {
		h.SessionID = session.ID
		h.Participant = session.Participant.Code()
		h.StartedAt = session.StartedAt
	}
	if err := EncodeFrame(tw.w, h); err != nil {
		return nil, err
	}
	return tw, nil
}

// Record implements response.Recorder.
func (t *Writer) Record(ev response.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}
	t.seq++
	if err := EncodeFrame(t.w, Record{Type: EventType, Seq: t.seq, Event: ev}); err != nil {
		t.err = err
		if t.OnError != nil {
			t.OnError(err)
		}
		return
	}
	if t.OnFrame != nil {
		t.OnFrame()
	}
}

// Frames returns the number of event frames recorded.
func (t *Writer) Frames() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

// Err returns the first write error, if any.
func (t *Writer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Close flushes buffered frames and closes the underlying writer.
func (t *Writer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	err := t.w.Flush()
	if t.closer != nil {
		if cerr := t.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err == nil {
		err = t.err
	}
	return err
}

var _ response.Recorder = (*Writer)(nil)
