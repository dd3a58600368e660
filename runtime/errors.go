package runtime

import (
	"errors"
	"fmt"
)

// SinkError reports that trial outcomes could not be persisted.
type SinkError struct {
	// Op is the failed operation ("append" or "flush").
	Op  string
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("result sink %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *SinkError) Unwrap() error {
	return e.Err
}

// IsSinkError reports whether err is (or wraps) a SinkError.
func IsSinkError(err error) bool {
	var sinkErr *SinkError
	return errors.As(err, &sinkErr)
}
