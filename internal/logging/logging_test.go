package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewDefaultsToInfoLevelOnInvalidInput(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "not-a-level")

	log.Info("script.fresh", nil)
	if buf.Len() == 0 {
		t.Fatalf("Info() at the default level produced no output")
	}
}

func TestInfoEmitsEventAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")

	log.Info("script.fresh", map[string]any{"script": "build"})

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v (%s)", err, buf.String())
	}
	if decoded["event"] != "script.fresh" {
		t.Fatalf("event field = %v, want script.fresh", decoded["event"])
	}
	if decoded["script"] != "build" {
		t.Fatalf("script field = %v, want build", decoded["script"])
	}
	if decoded["level"] != "info" {
		t.Fatalf("level field = %v, want info", decoded["level"])
	}
}

func TestWarnLevelSuppressesInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Info("script.fresh", nil)
	if buf.Len() != 0 {
		t.Fatalf("Info() was not suppressed at warn level, got %q", buf.String())
	}

	log.Warn("script.slow", nil)
	if buf.Len() == 0 {
		t.Fatalf("Warn() produced no output at warn level")
	}
}

func TestErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "error")

	log.Error("script.failed", map[string]any{"exitCode": 1})
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["level"] != "error" {
		t.Fatalf("level field = %v, want error", decoded["level"])
	}
}

func TestNopDiscardsEverything(t *testing.T) {
	log := Nop()
	log.Info("anything", map[string]any{"x": 1})
	log.Warn("anything", nil)
	log.Error("anything", nil)
}

func TestOrNopReturnsPassedLoggerWhenNonNil(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")
	if got := OrNop(log); got != log {
		t.Fatalf("OrNop() did not return the passed-in logger")
	}
}

func TestOrNopReturnsNopWhenNil(t *testing.T) {
	got := OrNop(nil)
	if got == nil {
		t.Fatalf("OrNop(nil) returned nil")
	}
	got.Info("anything", nil) // must not panic
}
