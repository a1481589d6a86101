package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunRespectsCapacity(t *testing.T) {
	p := New(2)
	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Run(context.Background(), func() error {
				mu.Lock()
				current++
				if current > peak {
					peak = current
				}
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				current--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestAcquireFailsWhenAbortedBeforeAcquire(t *testing.T) {
	p := New(1)
	p.Abort()

	_, err := p.Acquire(context.Background())
	if err != ErrAborted {
		t.Fatalf("Acquire() error = %v, want ErrAborted", err)
	}
}

func TestAbortDeniesQueuedWorkButNotInFlightWork(t *testing.T) {
	p := New(1)

	started := make(chan struct{})
	release, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	var queuedErr atomic.Value
	go func() {
		close(started)
		_, err := p.Acquire(context.Background())
		queuedErr.Store(err)
	}()
	<-started
	// give the queued Acquire time to start blocking on the semaphore.
	time.Sleep(20 * time.Millisecond)

	p.Abort()
	release()

	// Poll briefly for the queued Acquire to observe the abort after
	// acquiring its now-freed permit.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if v := queuedErr.Load(); v != nil {
			if v.(error) != ErrAborted {
				t.Fatalf("queued Acquire() error = %v, want ErrAborted", v)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("queued Acquire() never returned after Abort")
}

func TestRunPropagatesTaskError(t *testing.T) {
	p := New(1)
	wantErr := &abortedError{}
	err := p.Run(context.Background(), func() error {
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("Run() error = %v, want %v", err, wantErr)
	}
}
