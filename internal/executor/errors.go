package executor

import (
	"errors"
	"fmt"

	"github.com/loomrun/loom/internal/script"
)

// Sentinel errors for programmatic checking via errors.Is().
var (
	ErrSpawn                = errors.New("spawn error")
	ErrExitNonZero          = errors.New("exit non-zero")
	ErrSignaled             = errors.New("signaled")
	ErrOutputOutsidePackage = errors.New("output outside package")
	ErrDependencyFailed     = errors.New("dependency failed")
)

// SpawnError reports that the child process could not be started at all.
type SpawnError struct {
	Ref script.Reference
	Err error
}

func (e *SpawnError) Error() string { return fmt.Sprintf("%s: spawn: %v", e.Ref, e.Err) }
func (e *SpawnError) Unwrap() error { return ErrSpawn }

// ExitNonZeroError reports a clean but non-zero exit.
type ExitNonZeroError struct {
	Ref      script.Reference
	ExitCode int
}

func (e *ExitNonZeroError) Error() string {
	return fmt.Sprintf("%s: exit status %d", e.Ref, e.ExitCode)
}
func (e *ExitNonZeroError) Unwrap() error { return ErrExitNonZero }

// SignaledError reports termination by signal.
type SignaledError struct {
	Ref    script.Reference
	Signal string
}

func (e *SignaledError) Error() string { return fmt.Sprintf("%s: signaled: %s", e.Ref, e.Signal) }
func (e *SignaledError) Unwrap() error { return ErrSignaled }

// OutputOutsidePackageError reports an output glob resolving outside
// packageDir, a fatal condition at execution time (spec.md §4.6 step 8).
type OutputOutsidePackageError struct {
	Ref  script.Reference
	Path string
}

func (e *OutputOutsidePackageError) Error() string {
	return fmt.Sprintf("%s: output path %q resolves outside package directory", e.Ref, e.Path)
}
func (e *OutputOutsidePackageError) Unwrap() error { return ErrOutputOutsidePackage }

// DependencyFailedError reports propagation from a failed dependency.
type DependencyFailedError struct {
	Ref         script.Reference
	FailedDep   script.Reference
}

func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("%s: dependency %s failed", e.Ref, e.FailedDep)
}
func (e *DependencyFailedError) Unwrap() error { return ErrDependencyFailed }
