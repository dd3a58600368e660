package types //nolint:revive // types is a valid package name

import (
	"errors"
	"testing"
	"time"
)

func TestParticipant_Code(t *testing.T) {
	p := Participant{ID: "p07", Sex: "F", Age: 23}
	if got := p.Code(); got != "p07F23" {
		t.Errorf("Code() = %q, want %q", got, "p07F23")
	}
}

func TestParticipant_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       Participant
		wantErr bool
	}{
		{"valid", Participant{ID: "a", Sex: "M", Age: 30}, false},
		{"missing id", Participant{Sex: "M", Age: 30}, true},
		{"bad sex", Participant{ID: "a", Sex: "X", Age: 30}, true},
		{"zero age", Participant{ID: "a", Sex: "F"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsConfigurationError(err) {
				t.Errorf("expected ConfigurationError, got %T", err)
			}
		})
	}
}

func TestNewSession(t *testing.T) {
	start := time.Date(2026, 3, 1, 23, 30, 0, 0, time.FixedZone("CET", 3600))
	s := NewSession(Participant{ID: "a", Sex: "M", Age: 30}, start)

	if s.ID == "" {
		t.Fatal("session ID should be set")
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if got := s.Day(); got != "2026-03-01" {
		t.Errorf("Day() = %q, want 2026-03-01", got)
	}

	other := NewSession(s.Participant, start)
	if other.ID == s.ID {
		t.Error("session IDs should be unique")
	}
}

func TestErrorClassification(t *testing.T) {
	devErr := NewDeviceError("commit", errors.New("vsync lost"))
	wrapped := errors.Join(errors.New("trial 3"), devErr)

	if !IsDeviceError(wrapped) {
		t.Error("wrapped device error should be classified")
	}
	if IsConfigurationError(wrapped) {
		t.Error("device error must not classify as configuration error")
	}
	if NewDeviceError("poll", nil) != nil {
		t.Error("NewDeviceError(nil) should return nil")
	}
	if !IsUserAbort(errors.Join(errors.New("x"), ErrUserAbort)) {
		t.Error("wrapped ErrUserAbort should be classified")
	}

	var de *DeviceError
	if !errors.As(devErr, &de) || de.Op != "commit" {
		t.Errorf("errors.As failed or wrong op: %v", devErr)
	}
	if got := devErr.Error(); got != "device error: commit: vsync lost" {
		t.Errorf("Error() = %q", got)
	}
}
