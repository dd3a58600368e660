package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/flanker/types"
)

func testSession() *types.Session {
	return &types.Session{
		ID:          "sess-1",
		Participant: types.Participant{ID: "p01", Sex: "F", Age: 24},
		StartedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestLogger_SessionFields(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(testSession(), &buf)
	l.Info("session started", map[string]any{"trials": 96})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v (%s)", err, buf.String())
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("session_id = %v", entry["session_id"])
	}
	if entry["participant"] != "p01F24" {
		t.Errorf("participant = %v", entry["participant"])
	}
	if entry["message"] != "session started" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestNew_FileAndConsole(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "results", "p01F24.log")

	l, err := New(testSession(), Options{Level: "info", Console: &console, File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	l.Debug("hidden", nil)
	l.Warn("abort", map[string]any{"trial": 3})
	if err := l.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"abort"`) {
		t.Errorf("file log missing entry: %s", data)
	}
	if strings.Contains(string(data), "hidden") || strings.Contains(console.String(), "hidden") {
		t.Error("debug entry should be filtered at info level")
	}
	if !strings.Contains(console.String(), `"abort"`) {
		t.Errorf("console missing entry: %s", console.String())
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(nil, Options{Level: "loud", Console: &bytes.Buffer{}})
	if !types.IsConfigurationError(err) {
		t.Errorf("error = %v, want ConfigurationError", err)
	}
}

func TestNew_NoOutputsIsNop(t *testing.T) {
	l, err := New(nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("dropped", nil)
	if err := l.Close(); err != nil {
		t.Errorf("Close error: %v", err)
	}
}
