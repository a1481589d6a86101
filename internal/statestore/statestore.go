// Package statestore manages the per-script on-disk directory holding the
// previous fingerprint and captured stdout/stderr for replay.
package statestore

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
)

const dirName = ".loom"

// Dir returns the state directory for a script named name within
// packageDir: <packageDir>/.loom/<hex(name)>/. Hex-encoding the UTF-8 name
// avoids filesystem-reserved characters (spec.md §4.6 "Data directory").
func Dir(packageDir, name string) string {
	return filepath.Join(packageDir, dirName, hex.EncodeToString([]byte(name)))
}

// Store is a handle on one script's state directory.
type Store struct {
	dir string
}

// Open returns a Store for the given script, without touching the
// filesystem yet.
func Open(packageDir, name string) *Store {
	return &Store{dir: Dir(packageDir, name)}
}

func (s *Store) fingerprintPath() string { return filepath.Join(s.dir, "fingerprint") }
func (s *Store) filesPath() string       { return filepath.Join(s.dir, "files") }
func (s *Store) stdoutPath() string      { return filepath.Join(s.dir, "stdout") }
func (s *Store) stderrPath() string      { return filepath.Join(s.dir, "stderr") }

// ReadFiles returns the relative file list recorded alongside the previous
// fingerprint, used by the "if-file-deleted" clean policy (spec.md §4.6
// step 5) to detect when a previously-tracked input has disappeared.
func (s *Store) ReadFiles() []string {
	data, err := os.ReadFile(s.filesPath())
	if err != nil {
		return nil
	}
	var files []string
	if err := json.Unmarshal(data, &files); err != nil {
		return nil
	}
	return files
}

// WriteFiles persists the current file list alongside the fingerprint.
func (s *Store) WriteFiles(files []string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(files)
	if err != nil {
		return err
	}
	return os.WriteFile(s.filesPath(), data, 0o644)
}

// ReadFingerprint returns the previously stored fingerprint bytes, or
// (nil, false) if none exists.
func (s *Store) ReadFingerprint() ([]byte, bool) {
	data, err := os.ReadFile(s.fingerprintPath())
	if err != nil {
		return nil, false
	}
	return data, true
}

// DeleteFingerprint removes the stored fingerprint file, tolerating
// "not found". Must happen before any destructive action, per spec.md
// §4.6 step 5: a process that dies mid-run must never leave a stale
// fingerprint claiming outputs still match.
func (s *Store) DeleteFingerprint() error {
	err := os.Remove(s.fingerprintPath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// WriteFingerprint atomically replaces the stored fingerprint via a
// tmp-file-and-rename, matching the teacher's writeFileAtomic pattern
// (internal/cli/executor.go).
func (s *Store) WriteFingerprint(data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmp := s.fingerprintPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.fingerprintPath())
}

// StdoutWriter/StderrWriter return writers for the replay sinks (spec.md
// §4.8). Each call creates the file at once and truncates any capture left
// by a previous run; the file exists even if no byte is ever written.
func (s *Store) StdoutWriter() (*os.File, error) { return s.openAppend(s.stdoutPath()) }
func (s *Store) StderrWriter() (*os.File, error) { return s.openAppend(s.stderrPath()) }

func (s *Store) openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
}

// ReplayStdout/ReplayStderr return the captured bytes for replay on a
// fresh or cached outcome, or nil if nothing was ever captured.
func (s *Store) ReplayStdout() []byte { return readOrNil(s.stdoutPath()) }
func (s *Store) ReplayStderr() []byte { return readOrNil(s.stderrPath()) }

func readOrNil(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return data
}
