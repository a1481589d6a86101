package manifest

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestPackageReaderCachesByDir(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{"scripts": {"build": "wireit"}, "wireit": {"build": {"command": "tsc"}}}`)

	r := NewPackageReader()
	first, err := r.Read(dir)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	// Mutate the file on disk; a cached read must not observe this.
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"scripts": {"other": "echo"}}`), 0o644); err != nil {
		t.Fatalf("rewrite package.json: %v", err)
	}

	second, err := r.Read(dir)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if first != second {
		t.Fatalf("Read() returned different *Package pointers for the same dir")
	}
	if _, ok := second.Scripts["build"]; !ok {
		t.Fatalf("expected cached read to retain the original scripts, got %+v", second.Scripts)
	}
}

func TestPackageReaderConcurrentReadsShareOneParse(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{"scripts": {"build": "wireit"}, "wireit": {"build": {"command": "tsc"}}}`)

	r := NewPackageReader()
	const n = 20
	results := make([]*Package, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pkg, err := r.Read(dir)
			if err != nil {
				t.Errorf("Read() error = %v", err)
				return
			}
			results[i] = pkg
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("concurrent Read() calls returned different *Package pointers")
		}
	}
}

func TestGetScriptInfoPlainScript(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{"scripts": {"test": "jest"}}`)

	r := NewPackageReader()
	pkg, err := r.Read(dir)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	info := r.GetScriptInfo(pkg, "test")
	if !info.Declared || info.HasWireit || info.ScriptCommand != "jest" {
		t.Fatalf("unexpected ScriptInfo: %+v", info)
	}

	missing := r.GetScriptInfo(pkg, "nope")
	if missing.Declared {
		t.Fatalf("expected Declared=false for a script absent from scripts, got %+v", missing)
	}
}
