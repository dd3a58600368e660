package types

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Participant holds the metadata collected before a session.
type Participant struct {
	// ID is the participant identifier entered by the experimenter.
	ID string `json:"id"`
	// Sex is "M" or "F".
	Sex string `json:"sex"`
	// Age is the age in years.
	Age int `json:"age"`
}

// Code returns the participant code used in file names: id + sex + age.
func (p Participant) Code() string {
	return p.ID + p.Sex + strconv.Itoa(p.Age)
}

// Validate checks the participant fields:
//   - id must be non-empty
//   - sex must be M or F
//   - age must be positive
func (p Participant) Validate() error {
	if p.ID == "" {
		return &ConfigurationError{Field: "participant.id", Msg: "must be non-empty"}
	}
	if p.Sex != "M" && p.Sex != "F" {
		return &ConfigurationError{Field: "participant.sex", Msg: fmt.Sprintf("must be M or F, got %q", p.Sex)}
	}
	if p.Age <= 0 {
		return &ConfigurationError{Field: "participant.age", Msg: fmt.Sprintf("must be > 0, got %d", p.Age)}
	}
	return nil
}

// Session identifies a single experiment session.
type Session struct {
	// ID is globally unique per session.
	ID string `json:"session_id"`
	// Participant is the participant taking the session.
	Participant Participant `json:"participant"`
	// StartedAt is the wall-clock session start.
	StartedAt time.Time `json:"started_at"`
}

// NewSession creates a session with a fresh random identifier.
func NewSession(p Participant, startedAt time.Time) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Participant: p,
		StartedAt:   startedAt,
	}
}

// Validate checks the session identity.
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session_id must be non-empty")
	}
	return s.Participant.Validate()
}

// Day returns the UTC partition day of the session start (YYYY-MM-DD).
func (s *Session) Day() string {
	return s.StartedAt.UTC().Format("2006-01-02")
}

// OutcomeStatus is the final status of a session.
type OutcomeStatus string

const (
	// OutcomeCompleted indicates every planned trial ran.
	OutcomeCompleted OutcomeStatus = "completed"
	// OutcomeAborted indicates the participant pressed the abort key.
	OutcomeAborted OutcomeStatus = "aborted"
	// OutcomeInterrupted indicates the process was signalled mid-session.
	OutcomeInterrupted OutcomeStatus = "interrupted"
	// OutcomeDeviceError indicates the display or input failed.
	OutcomeDeviceError OutcomeStatus = "device_error"
	// OutcomeConfigError indicates invalid configuration.
	OutcomeConfigError OutcomeStatus = "config_error"
	// OutcomeSinkFailure indicates the results could not be persisted.
	OutcomeSinkFailure OutcomeStatus = "sink_failure"
)

// SessionOutcome is the final outcome of a session.
type SessionOutcome struct {
	// Status is the outcome classification.
	Status OutcomeStatus
	// Message is a human-readable description.
	Message string
}
