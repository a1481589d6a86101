// Package hooks discovers and runs lifecycle observers around script
// execution: BeforeNode/AfterNode (and BeforeRun/AfterRun for the whole
// graph). Observers cannot alter scheduling, fingerprints, or script
// configs — they only watch — so this stays a reporting mechanism, not the
// scripting DSL spec.md's Non-goals exclude.
package hooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultPluginsRoot is where a package's reserved workspace directory
// keeps plugin manifests.
const DefaultPluginsRoot = ".loom/plugins"

// Manifest declares a plugin's identity and which hooks it participates in.
type Manifest struct {
	PluginID    string   `json:"plugin_id"`
	Version     string   `json:"version"`
	Hooks       []string `json:"hooks"`
	Description string   `json:"description"`
}

func supportedHooks() map[string]struct{} {
	return map[string]struct{}{
		"BeforeRun":  {},
		"AfterRun":   {},
		"BeforeNode": {},
		"AfterNode":  {},
	}
}

// Validate enforces the manifest shape: non-empty id/version, at least one
// hook, all hooks recognized.
func (m Manifest) Validate() error {
	if m.PluginID == "" {
		return fmt.Errorf("%w: missing plugin_id", ErrManifestInvalid)
	}
	if m.Version == "" {
		return fmt.Errorf("%w: missing version", ErrManifestInvalid)
	}
	if len(m.Hooks) == 0 {
		return fmt.Errorf("%w: missing or empty hooks", ErrManifestInvalid)
	}
	supported := supportedHooks()
	for _, h := range m.Hooks {
		if _, ok := supported[h]; !ok {
			return fmt.Errorf("%w: unsupported hook %q", ErrManifestInvalid, h)
		}
	}
	return nil
}

// ParseManifest decodes and validates a manifest from r, rejecting unknown
// fields and trailing data.
func ParseManifest(r io.Reader) (Manifest, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrManifestMalformed, err)
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return Manifest{}, fmt.Errorf("%w: trailing data", ErrManifestMalformed)
		}
		return Manifest{}, fmt.Errorf("%w: %v", ErrManifestMalformed, err)
	}

	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// LoadManifestFile reads and parses a manifest.json file.
func LoadManifestFile(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	return ParseManifest(bytes.NewReader(data))
}

func manifestPath(pluginDir string) string {
	return filepath.Join(pluginDir, "manifest.json")
}
