// Package workerpool provides a bounded concurrency primitive for running
// external processes: callers acquire a slot and release it on completion,
// with FIFO permit order so that a pool-wide abort can deterministically
// deny queued-but-not-yet-started work.
package workerpool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool is a bounded counting semaphore with an abort signal. Permits are
// granted in FIFO request order (semaphore.Weighted's documented
// guarantee), which is what lets a FailureCoordinator deny already-queued
// tasks deterministically once a failure has occurred.
type Pool struct {
	sem *semaphore.Weighted

	mu      sync.Mutex
	aborted bool
}

// New returns a Pool with the given capacity (must be >= 1).
func New(capacity int64) *Pool {
	return &Pool{sem: semaphore.NewWeighted(capacity)}
}

// Abort forbids any future acquisition from succeeding. Tasks that have
// already acquired a permit are unaffected; they run to completion.
func (p *Pool) Abort() {
	p.mu.Lock()
	p.aborted = true
	p.mu.Unlock()
}

// ErrAborted is returned by Run/Acquire when the pool has been aborted,
// either before or while waiting for a permit.
var ErrAborted = &abortedError{}

type abortedError struct{}

func (*abortedError) Error() string { return "workerpool: aborted" }

// Acquire blocks until a permit is available, then returns a release
// function. The abort check happens both before and after acquiring: a
// permit that becomes free at the exact instant of a sibling's failure
// must not be handed to new work (spec.md §4.5, §4.7's race condition).
func (p *Pool) Acquire(ctx context.Context) (release func(), err error) {
	if p.isAborted() {
		return nil, ErrAborted
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if p.isAborted() {
		p.sem.Release(1)
		return nil, ErrAborted
	}
	return func() { p.sem.Release(1) }, nil
}

func (p *Pool) isAborted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aborted
}

// Run acquires a permit, invokes task, and releases the permit before
// returning, for callers that do not need to hold the release function.
func (p *Pool) Run(ctx context.Context, task func() error) error {
	release, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return task()
}
