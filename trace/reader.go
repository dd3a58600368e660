package trace

import (
	"errors"
	"fmt"
	"io"
)

// Stream is a fully decoded trace.
type Stream struct {
	Header  *Header
	Records []Record
}

// ReadAll decodes every frame of a trace stream.
// A stream without a header, or with the header anywhere but first, is rejected.
func ReadAll(r io.Reader) (*Stream, error) {
	dec := NewFrameDecoder(r)
	s := &Stream{}
	for {
		payload, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s, err
		}
		frame, err := DecodeFrame(payload)
		if err != nil {
			return s, err
		}
		switch f := frame.(type) {
		case *Header:
			if s.Header != nil || len(s.Records) > 0 {
				return s, &FrameError{Kind: FrameErrorDecode, Msg: "unexpected header frame"}
			}
			s.Header = f
		case *Record:
			if s.Header == nil {
				return s, &FrameError{Kind: FrameErrorDecode, Msg: "event frame before header"}
			}
			s.Records = append(s.Records, *f)
		}
	}
	if s.Header == nil {
		return s, fmt.Errorf("trace stream is empty")
	}
	return s, nil
}
