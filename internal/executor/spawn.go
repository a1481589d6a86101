package executor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/loomrun/loom/internal/cachestore"
	"github.com/loomrun/loom/internal/fingerprint"
	"github.com/loomrun/loom/internal/script"
	"github.com/loomrun/loom/internal/statestore"
)

var errNoConfig = errors.New("no validated config for reference")

// spawnAndRun implements spec.md §4.6 step 7: acquire a worker pool permit,
// spawn the command with a rewritten PATH and overlaid environment, tee
// stdout/stderr to the replay sinks.
func (e *Executor) spawnAndRun(ctx context.Context, cfg *script.Config, fp fingerprint.Result, store *statestore.Store) *Result {
	release, err := e.pool.Acquire(ctx)
	if err != nil {
		return &Result{Ref: cfg.Ref, Kind: KindSkipped, SkippedReason: "worker pool unavailable"}
	}
	defer release()

	if !e.coord.AdmitStart() {
		return &Result{Ref: cfg.Ref, Kind: KindSkipped, SkippedReason: "no-new policy active after a prior failure"}
	}

	stdout, err := store.StdoutWriter()
	if err != nil {
		return &Result{Ref: cfg.Ref, Kind: KindFailed, Err: err}
	}
	defer stdout.Close()
	stderr, err := store.StderrWriter()
	if err != nil {
		return &Result{Ref: cfg.Ref, Kind: KindFailed, Err: err}
	}
	defer stderr.Close()

	literals := map[string]string{}
	for _, v := range cfg.Env {
		if !v.External {
			literals[v.Name] = v.Literal
		}
	}
	env := overlayEnv(literals)
	env = setPATH(env, buildPATH(cfg.Ref.PackageDir, os.Getenv("PATH")))

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", cfg.Command)
	if len(cfg.ExtraArgs) > 0 {
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", cfg.Command+" \"$@\"", "sh")
		cmd.Args = append(cmd.Args, cfg.ExtraArgs...)
	}
	cmd.Dir = cfg.Ref.PackageDir
	cmd.Env = env
	cmd.Stdout = io.MultiWriter(stdout, e.stdout)
	cmd.Stderr = io.MultiWriter(stderr, e.stderr)

	untrack := e.coord.TrackRunning(cmd)
	err = cmd.Start()
	if err != nil {
		untrack()
		return &Result{Ref: cfg.Ref, Kind: KindFailed, Err: &SpawnError{Ref: cfg.Ref, Err: err}}
	}
	err = cmd.Wait()
	untrack()

	if err == nil {
		return &Result{Ref: cfg.Ref, Kind: KindSuccess, Fingerprint: fp}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			e.coord.ReportFailure(err)
			return &Result{Ref: cfg.Ref, Kind: KindFailed, Err: &SignaledError{Ref: cfg.Ref, Signal: status.Signal().String()}}
		}
		e.coord.ReportFailure(err)
		return &Result{Ref: cfg.Ref, Kind: KindFailed, Err: &ExitNonZeroError{Ref: cfg.Ref, ExitCode: exitErr.ExitCode()}}
	}

	e.coord.ReportFailure(err)
	return &Result{Ref: cfg.Ref, Kind: KindFailed, Err: &SpawnError{Ref: cfg.Ref, Err: err}}
}

func (e *Executor) applyArchive(packageDir string, archive *cachestore.Archive, store *statestore.Store) error {
	if archive == nil {
		return nil
	}
	for _, entry := range archive.Outputs {
		dest := filepath.Join(packageDir, filepath.FromSlash(entry.RelativePath))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		f, err := os.Create(dest)
		if err != nil {
			return err
		}
		_, copyErr := io.Copy(f, entry.Contents)
		closeErr := f.Close()
		if copyErr != nil {
			return copyErr
		}
		if closeErr != nil {
			return closeErr
		}
	}
	if archive.Stdout != nil {
		if w, err := store.StdoutWriter(); err == nil {
			w.Write(archive.Stdout)
			w.Close()
		}
	}
	if archive.Stderr != nil {
		if w, err := store.StderrWriter(); err == nil {
			w.Write(archive.Stderr)
			w.Close()
		}
	}
	return nil
}

func openFile(path string) (io.Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
