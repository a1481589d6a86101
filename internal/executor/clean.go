package executor

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/loomrun/loom/internal/script"
)

// cleanOutputs implements spec.md §4.9: expand script.Output against
// packageDir (including directories), assert every match is lexically
// within packageDir, then remove each path recursively. An empty Output
// list means "clean nothing"; it is the caller's job to skip calling this
// when Output is entirely undeclared.
func (e *Executor) cleanOutputs(cfg *script.Config, packageDir string) error {
	if len(cfg.Output) == 0 {
		return nil
	}
	matches, err := e.globs.Resolve(packageDir, cfg.Output, false)
	if err != nil {
		return err
	}

	root := filepath.Clean(packageDir) + string(filepath.Separator)
	for _, m := range matches {
		abs := filepath.Clean(m.AbsolutePath)
		if !strings.HasPrefix(abs+string(filepath.Separator), root) {
			return &OutputOutsidePackageError{Ref: cfg.Ref, Path: m.RelativePath}
		}
	}
	for _, m := range matches {
		if err := os.RemoveAll(m.AbsolutePath); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// shouldCleanIfFileDeleted reports whether the "if-file-deleted" policy
// triggers: the previous fingerprint's declared file set (derived from
// prevFiles, the relative paths recorded last run) contains a path that no
// longer appears among the current files resolved via Files glob.
func shouldCleanIfFileDeleted(prevFiles, currentFiles []string) bool {
	current := make(map[string]bool, len(currentFiles))
	for _, f := range currentFiles {
		current[f] = true
	}
	for _, f := range prevFiles {
		if !current[f] {
			return true
		}
	}
	return false
}
