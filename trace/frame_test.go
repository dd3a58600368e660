package trace

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/justapithecus/flanker/response"
	"github.com/justapithecus/flanker/types"
)

func TestFrameDecoder_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2026, 3, 1, 9, 0, 0, 20_000_000, time.UTC)
	rec := Record{Type: EventType, Seq: 1, Event: response.Event{Kind: response.EventArmed, State: "presenting", Tick: 1, At: at}}
	if err := EncodeFrame(&buf, rec); err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}

	payload, err := NewFrameDecoder(&buf).ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	frame, err := DecodeFrame(payload)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	got, ok := frame.(*Record)
	if !ok {
		t.Fatalf("frame type = %T, want *Record", frame)
	}
	if got.Kind != response.EventArmed || got.Tick != 1 || !got.At.Equal(at) {
		t.Errorf("decoded = %+v", got)
	}
}

func TestFrameDecoder_Errors(t *testing.T) {
	tooLarge := make([]byte, LengthPrefixSize)
	binary.BigEndian.PutUint32(tooLarge, MaxPayloadSize+1)

	truncated := make([]byte, LengthPrefixSize+2)
	binary.BigEndian.PutUint32(truncated, 10)

	tests := []struct {
		name  string
		input []byte
		kind  FrameErrorKind
	}{
		{"partial prefix", []byte{0, 0}, FrameErrorPartial},
		{"too large", tooLarge, FrameErrorTooLarge},
		{"truncated payload", truncated, FrameErrorPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrameDecoder(bytes.NewReader(tt.input)).ReadFrame()
			var frameErr *FrameError
			if !errors.As(err, &frameErr) || frameErr.Kind != tt.kind {
				t.Fatalf("error = %v, want kind %d", err, tt.kind)
			}
			if !IsFatalFrameError(err) {
				t.Error("expected fatal frame error")
			}
		})
	}
}

func TestFrameDecoder_CleanEOF(t *testing.T) {
	_, err := NewFrameDecoder(bytes.NewReader(nil)).ReadFrame()
	if err != io.EOF {
		t.Errorf("error = %v, want io.EOF", err)
	}
}

func TestDecodeFrame_UnknownType(t *testing.T) {
	var buf bytes.Buffer
	_ = EncodeFrame(&buf, map[string]string{"type": "mystery"})
	payload, _ := NewFrameDecoder(&buf).ReadFrame()

	_, err := DecodeFrame(payload)
	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorDecode {
		t.Errorf("error = %v, want decode error", err)
	}
	if IsFatalFrameError(err) {
		t.Error("decode errors are not fatal")
	}
}

type closeBuffer struct {
	bytes.Buffer
	closed bool
}

func (c *closeBuffer) Close() error {
	c.closed = true
	return nil
}

func TestWriter_ReadAll(t *testing.T) {
	out := &closeBuffer{}
	session := &types.Session{
		ID:          "sess-1",
		Participant: types.Participant{ID: "p01", Sex: "M", Age: 30},
		StartedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	frames := 0
	w, err := NewWriter(out, session, 60)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	w.OnFrame = func() { frames++ }

	w.Record(response.Event{Kind: response.EventTrialStart, Phase: "main", Index: 1, StimulusID: "zgdn_p", Ticks: 15})
	w.Record(response.Event{Kind: response.EventResolved, Key: "right", ElapsedMs: 412})
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !out.closed {
		t.Error("underlying writer not closed")
	}
	if frames != 2 || w.Frames() != 2 {
		t.Errorf("frames = %d/%d, want 2", frames, w.Frames())
	}

	stream, err := ReadAll(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if stream.Header.SessionID != "sess-1" || stream.Header.Participant != "p01M30" || stream.Header.FrameRate != 60 {
		t.Errorf("header = %+v", stream.Header)
	}
	if len(stream.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(stream.Records))
	}
	if stream.Records[1].Seq != 2 || stream.Records[1].ElapsedMs != 412 {
		t.Errorf("record[1] = %+v", stream.Records[1])
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestWriter_RetainsFirstError(t *testing.T) {
	// Frames are buffered, so the write error surfaces on Close.
	w, err := NewWriter(failWriter{}, nil, 60)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	w.Record(response.Event{Kind: response.EventTick})
	if err := w.Close(); err == nil {
		t.Error("expected flush error on Close")
	}
}

func TestReadAll_EventBeforeHeader(t *testing.T) {
	var buf bytes.Buffer
	_ = EncodeFrame(&buf, Record{Type: EventType, Seq: 1})
	if _, err := ReadAll(&buf); err == nil {
		t.Error("expected error for headerless stream")
	}
}
