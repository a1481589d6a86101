package cachestore

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/loomrun/loom/internal/fingerprint"
	"github.com/loomrun/loom/internal/script"
)

// LocalCache stores archives under a root directory, one subdirectory per
// (reference, fingerprint) pair.
type LocalCache struct {
	root string
}

// NewLocalCache returns a LocalCache rooted at dir.
func NewLocalCache(dir string) *LocalCache {
	return &LocalCache{root: dir}
}

func (c *LocalCache) entryDir(ref script.Reference, fp fingerprint.Fingerprint) string {
	return filepath.Join(c.root, hashKey(ref, fp))
}

func (c *LocalCache) Get(ref script.Reference, fp fingerprint.Fingerprint) (*Archive, bool, error) {
	dir := c.entryDir(ref, fp)
	outputsDir := filepath.Join(dir, "outputs")

	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	archive := &Archive{}
	archive.Stdout, _ = os.ReadFile(filepath.Join(dir, "stdout"))
	archive.Stderr, _ = os.ReadFile(filepath.Join(dir, "stderr"))

	err := filepath.WalkDir(outputsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(outputsDir, path)
		if relErr != nil {
			return relErr
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		archive.Outputs = append(archive.Outputs, Entry{
			RelativePath: filepath.ToSlash(rel),
			Contents:     bytes.NewReader(data),
		})
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return archive, true, nil
}

func (c *LocalCache) Put(ref script.Reference, fp fingerprint.Fingerprint, archive *Archive) error {
	dir := c.entryDir(ref, fp)
	tmp := dir + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return err
	}
	outputsDir := filepath.Join(tmp, "outputs")
	if err := os.MkdirAll(outputsDir, 0o755); err != nil {
		return err
	}

	for _, e := range archive.Outputs {
		dest := filepath.Join(outputsDir, filepath.FromSlash(e.RelativePath))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		f, err := os.Create(dest)
		if err != nil {
			return err
		}
		_, copyErr := io.Copy(f, e.Contents)
		closeErr := f.Close()
		if copyErr != nil {
			return copyErr
		}
		if closeErr != nil {
			return closeErr
		}
	}

	if archive.Stdout != nil {
		if err := os.WriteFile(filepath.Join(tmp, "stdout"), archive.Stdout, 0o644); err != nil {
			return err
		}
	}
	if archive.Stderr != nil {
		if err := os.WriteFile(filepath.Join(tmp, "stderr"), archive.Stderr, 0o644); err != nil {
			return err
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.Rename(tmp, dir)
}

func hashKey(ref script.Reference, fp fingerprint.Fingerprint) string {
	return safePathComponent(ref.Key()) + "-" + string(fp)
}

func safePathComponent(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
