package types

import (
	"errors"
	"fmt"
)

// ErrUserAbort is returned when the participant presses the abort key.
// It is a clean early termination, not a failure.
var ErrUserAbort = errors.New("session aborted by participant")

// ConfigurationError reports a malformed or missing parameter.
// It is raised before any trial runs.
type ConfigurationError struct {
	// Field is the offending configuration key.
	Field string
	// Msg describes the problem.
	Msg string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Msg
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Msg)
}

// DeviceError reports a failure of the display surface or the input channel.
// A device error ends the session; collected results are still flushed.
type DeviceError struct {
	// Op is the failed operation (e.g. "commit", "poll").
	Op string
	// Err is the underlying error.
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// NewDeviceError wraps err as a device failure of op.
// Returns nil if err is nil.
func NewDeviceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DeviceError{Op: op, Err: err}
}

// IsConfigurationError reports whether err is a configuration error.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsDeviceError reports whether err is a device error.
func IsDeviceError(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr)
}

// IsUserAbort reports whether err is (or wraps) ErrUserAbort.
func IsUserAbort(err error) bool {
	return errors.Is(err, ErrUserAbort)
}
