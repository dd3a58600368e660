package runtime

import (
	"context"
	"errors"

	"github.com/justapithecus/flanker/types"
)

// Process exit codes.
const (
	ExitCodeCompleted   = 0 // every planned trial ran
	ExitCodeAborted     = 1 // participant abort or signal
	ExitCodeDeviceError = 2 // display or input failure
	ExitCodeConfigError = 3 // invalid configuration or arguments
	ExitCodeSinkFailure = 4 // results could not be persisted
)

// Classify maps the error returned by ExperimentRunner.Run to a session status.
//
// Precedence, highest first:
//  1. sink failure (results may be lost, always reported)
//  2. device error
//  3. configuration error
//  4. participant abort
//  5. context cancellation or deadline (signal)
//
// A nil error is a completed session. Anything else is treated as a device
// error since no other failure source exists inside a session.
func Classify(err error) types.OutcomeStatus {
	switch {
	case err == nil:
		return types.OutcomeCompleted
	case IsSinkError(err):
		return types.OutcomeSinkFailure
	case types.IsDeviceError(err):
		return types.OutcomeDeviceError
	case types.IsConfigurationError(err):
		return types.OutcomeConfigError
	case types.IsUserAbort(err):
		return types.OutcomeAborted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.OutcomeInterrupted
	default:
		return types.OutcomeDeviceError
	}
}

// ExitCodeFor returns the process exit code of a session status.
func ExitCodeFor(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomeCompleted:
		return ExitCodeCompleted
	case types.OutcomeAborted, types.OutcomeInterrupted:
		return ExitCodeAborted
	case types.OutcomeDeviceError:
		return ExitCodeDeviceError
	case types.OutcomeConfigError:
		return ExitCodeConfigError
	case types.OutcomeSinkFailure:
		return ExitCodeSinkFailure
	default:
		return ExitCodeDeviceError
	}
}

// Outcome builds the session outcome for err.
func Outcome(err error) *types.SessionOutcome {
	status := Classify(err)
	out := &types.SessionOutcome{Status: status}
	switch {
	case err == nil:
		out.Message = "session completed"
	case status == types.OutcomeAborted:
		out.Message = "session aborted by participant"
	case status == types.OutcomeInterrupted:
		out.Message = "session interrupted"
	default:
		out.Message = err.Error()
	}
	return out
}
