// Package watch re-runs the root script whenever any of its declared input
// files change. It is a debounced, ignore-aware filesystem watcher adapted
// from a standalone Go file-watcher seen in the retrieval pack
// (internal/watch/watcher.go in another repo in the corpus): same
// coalesce-then-fire shape, narrowed to loom's one callback instead of a
// general-purpose OnChange API.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 300 * time.Millisecond

var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/.loom/**",
}

// Config parameterizes a Watcher.
type Config struct {
	// BaseDir is the root directory to watch; patterns are resolved
	// relative to it.
	BaseDir string

	// Patterns are the glob patterns whose matches should trigger a
	// re-run (typically the root script's resolved `files` patterns,
	// package-lock amendments included). An empty list watches everything
	// under BaseDir.
	Patterns []string

	Debounce time.Duration

	// OnChange is invoked after the debounce window closes, with the
	// deduplicated set of changed paths relative to BaseDir.
	OnChange func(ctx context.Context, changed []string) error

	Stderr io.Writer
}

// Watcher monitors BaseDir and fires OnChange, debounced, when matching
// files change. Run must be called exactly once.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	baseDir  string
	debounce time.Duration
	stderr   io.Writer
	started  atomic.Bool
}

// New constructs a Watcher and registers every non-ignored directory under
// BaseDir.
func New(cfg Config) (*Watcher, error) {
	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("watch: determine working directory: %w", err)
		}
		baseDir = wd
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve base directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	w := &Watcher{cfg: cfg, fsw: fsw, baseDir: absBase, debounce: debounce, stderr: stderr}
	if err := w.addDirectories(); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close releases the underlying fsnotify resources.
func (w *Watcher) Close() error { return w.fsw.Close() }

// Run blocks until ctx is cancelled, dispatching debounced OnChange calls
// as matching files change.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("watch: Run called more than once")
	}
	defer w.fsw.Close()

	var (
		mu      sync.Mutex
		pending = map[string]struct{}{}
		timer   *time.Timer
		running atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := make([]string, 0, len(pending))
		for p := range pending {
			changed = append(changed, p)
		}
		for p := range pending {
			delete(pending, p)
		}
		mu.Unlock()

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				fmt.Fprintf(w.stderr, "watch: callback error: %v\n", err)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: fsnotify event channel closed unexpectedly")
			}
			rel, err := filepath.Rel(w.baseDir, evt.Name)
			if err != nil {
				rel = evt.Name
			}
			if w.isIgnored(rel) || !w.matchesPatterns(rel) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}

			mu.Lock()
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: fsnotify error channel closed unexpectedly")
			}
			fmt.Fprintf(w.stderr, "watch: fsnotify error: %v\n", err)
		}
	}
}

func (w *Watcher) addDirectories() error {
	return filepath.WalkDir(w.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.baseDir, path)
		if relErr != nil {
			return nil
		}
		if w.isIgnoredDir(rel) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	rel, err := filepath.Rel(w.baseDir, path)
	if err != nil || w.isIgnoredDir(rel) {
		return
	}
	_ = w.fsw.Add(path)
}

func (w *Watcher) isIgnored(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range defaultIgnores {
		if ok, _ := doublestar.Match(pat, normalized); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) isIgnoredDir(rel string) bool {
	return w.isIgnored(rel) || w.isIgnored(rel+"/")
}

func (w *Watcher) matchesPatterns(rel string) bool {
	if len(w.cfg.Patterns) == 0 {
		return true
	}
	normalized := filepath.ToSlash(rel)
	for _, pat := range w.cfg.Patterns {
		pat = trimNegate(pat)
		if ok, _ := doublestar.Match(pat, normalized); ok {
			return true
		}
	}
	return false
}

func trimNegate(pat string) string {
	if len(pat) > 0 && pat[0] == '!' {
		return pat[1:]
	}
	return pat
}
