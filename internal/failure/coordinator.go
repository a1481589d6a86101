// Package failure implements the process-wide failure policy: whether a
// first failure stops scheduling new work, is ignored, or kills running
// children.
package failure

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Policy selects how the coordinator reacts to the first failure.
type Policy string

const (
	// PolicyNoNew (default) stops admitting new work once any script fails,
	// but lets already-running scripts finish.
	PolicyNoNew Policy = "no-new"
	// PolicyContinue never aborts.
	PolicyContinue Policy = "continue"
	// PolicyKill signals all running children on first failure.
	PolicyKill Policy = "kill"
)

// GracePeriod is how long Kill waits between SIGINT and the SIGTERM
// escalation.
var GracePeriod = 5 * time.Second

// Coordinator tracks whether a fatal failure has occurred and decides
// whether to admit new script executions. It is safe for concurrent use.
type Coordinator struct {
	policy Policy

	mu           sync.Mutex
	firstFailure error

	runningMu sync.Mutex
	running   map[*exec.Cmd]struct{}
}

// New returns a Coordinator with the given policy.
func New(policy Policy) *Coordinator {
	if policy == "" {
		policy = PolicyNoNew
	}
	return &Coordinator{policy: policy, running: map[*exec.Cmd]struct{}{}}
}

// ReportFailure records err as the first failure, if none has been
// recorded yet, and applies the policy.
func (c *Coordinator) ReportFailure(err error) {
	c.mu.Lock()
	first := c.firstFailure == nil
	if first {
		c.firstFailure = err
	}
	c.mu.Unlock()

	if first && c.policy == PolicyKill {
		c.killRunning()
	}
}

// Failed reports whether any failure has been recorded.
func (c *Coordinator) Failed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firstFailure != nil
}

// FirstFailure returns the first reported failure, or nil.
func (c *Coordinator) FirstFailure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firstFailure
}

// AdmitStart reports whether a script that has not yet been spawned may be
// started now. Checked by the Executor after acquiring a WorkerPool permit
// and before invoking the command (spec.md §4.7's race condition: a permit
// released by a just-failed sibling must not admit new work under no-new).
func (c *Coordinator) AdmitStart() bool {
	switch c.policy {
	case PolicyContinue:
		return true
	default: // PolicyNoNew, PolicyKill
		return !c.Failed()
	}
}

// TrackRunning registers cmd as currently running, so PolicyKill can signal
// it. untrack must be called once the command exits.
func (c *Coordinator) TrackRunning(cmd *exec.Cmd) (untrack func()) {
	c.runningMu.Lock()
	c.running[cmd] = struct{}{}
	c.runningMu.Unlock()
	return func() {
		c.runningMu.Lock()
		delete(c.running, cmd)
		c.runningMu.Unlock()
	}
}

func (c *Coordinator) killRunning() {
	c.runningMu.Lock()
	cmds := make([]*exec.Cmd, 0, len(c.running))
	for cmd := range c.running {
		cmds = append(cmds, cmd)
	}
	c.runningMu.Unlock()

	for _, cmd := range cmds {
		signalProcess(cmd, os.Interrupt)
	}

	time.AfterFunc(GracePeriod, func() {
		c.runningMu.Lock()
		remaining := make([]*exec.Cmd, 0, len(c.running))
		for cmd := range c.running {
			remaining = append(remaining, cmd)
		}
		c.runningMu.Unlock()
		for _, cmd := range remaining {
			signalProcess(cmd, syscall.SIGTERM)
		}
	})
}

func signalProcess(cmd *exec.Cmd, sig os.Signal) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(sig)
}
