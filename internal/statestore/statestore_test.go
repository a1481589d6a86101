package statestore

import (
	"path/filepath"
	"testing"
)

func TestDirHexEncodesName(t *testing.T) {
	dir := Dir("/pkg", "build")
	want := filepath.Join("/pkg", dirName, "6275696c64") // hex("build")
	if dir != want {
		t.Fatalf("Dir() = %q, want %q", dir, want)
	}
}

func TestReadFingerprintMissingReturnsNotOK(t *testing.T) {
	s := Open(t.TempDir(), "build")
	_, ok := s.ReadFingerprint()
	if ok {
		t.Fatalf("ReadFingerprint() ok = true for a script with no recorded state")
	}
}

func TestWriteThenReadFingerprintRoundTrips(t *testing.T) {
	s := Open(t.TempDir(), "build")
	if err := s.WriteFingerprint([]byte("abc123")); err != nil {
		t.Fatalf("WriteFingerprint() error = %v", err)
	}
	got, ok := s.ReadFingerprint()
	if !ok {
		t.Fatalf("ReadFingerprint() ok = false after a write")
	}
	if string(got) != "abc123" {
		t.Fatalf("ReadFingerprint() = %q, want %q", got, "abc123")
	}
}

func TestDeleteFingerprintTreatsMissingAsSuccess(t *testing.T) {
	s := Open(t.TempDir(), "build")
	if err := s.DeleteFingerprint(); err != nil {
		t.Fatalf("DeleteFingerprint() on a never-written store error = %v", err)
	}
}

func TestDeleteFingerprintRemovesIt(t *testing.T) {
	s := Open(t.TempDir(), "build")
	if err := s.WriteFingerprint([]byte("abc")); err != nil {
		t.Fatalf("WriteFingerprint() error = %v", err)
	}
	if err := s.DeleteFingerprint(); err != nil {
		t.Fatalf("DeleteFingerprint() error = %v", err)
	}
	if _, ok := s.ReadFingerprint(); ok {
		t.Fatalf("ReadFingerprint() ok = true after deletion")
	}
}

func TestFilesRoundTrip(t *testing.T) {
	s := Open(t.TempDir(), "build")
	if got := s.ReadFiles(); got != nil {
		t.Fatalf("ReadFiles() = %v before any write, want nil", got)
	}
	want := []string{"a.ts", "b.ts"}
	if err := s.WriteFiles(want); err != nil {
		t.Fatalf("WriteFiles() error = %v", err)
	}
	got := s.ReadFiles()
	if len(got) != 2 || got[0] != "a.ts" || got[1] != "b.ts" {
		t.Fatalf("ReadFiles() = %v, want %v", got, want)
	}
}

func TestStdoutStderrReplayRoundTrip(t *testing.T) {
	s := Open(t.TempDir(), "build")
	if got := s.ReplayStdout(); got != nil {
		t.Fatalf("ReplayStdout() = %v before any write, want nil", got)
	}

	out, err := s.StdoutWriter()
	if err != nil {
		t.Fatalf("StdoutWriter() error = %v", err)
	}
	if _, err := out.WriteString("hello stdout"); err != nil {
		t.Fatalf("write stdout: %v", err)
	}
	out.Close()

	errW, err := s.StderrWriter()
	if err != nil {
		t.Fatalf("StderrWriter() error = %v", err)
	}
	if _, err := errW.WriteString("hello stderr"); err != nil {
		t.Fatalf("write stderr: %v", err)
	}
	errW.Close()

	if string(s.ReplayStdout()) != "hello stdout" {
		t.Fatalf("ReplayStdout() = %q", s.ReplayStdout())
	}
	if string(s.ReplayStderr()) != "hello stderr" {
		t.Fatalf("ReplayStderr() = %q", s.ReplayStderr())
	}
}
