package bulkhead

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// TestBulkhead_QueuesOneThenRejectsFurtherCallers runs a bulkhead with
// MaxConcurrent=2, MaxQueueSize=1: two slow operations fill both slots, a
// third queues, and a fourth is rejected outright since the queue is
// already full.
func TestBulkhead_QueuesOneThenRejectsFurtherCallers(t *testing.T) {
	b := New(Config{MaxConcurrent: 2, MaxQueueSize: 1, MaxWait: time.Second})
	ctx := context.Background()

	release1, release2 := make(chan struct{}), make(chan struct{})
	started := make(chan struct{}, 2)

	go b.Execute(ctx, func(context.Context) error { started <- struct{}{}; <-release1; return nil })
	go b.Execute(ctx, func(context.Context) error { started <- struct{}{}; <-release2; return nil })

	<-started
	<-started

	// Fourth caller: queue already has room for exactly one waiter, so a
	// second concurrent late arrival should be rejected outright.
	var rejectedErr error
	var thirdErr error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond) // ensure ordering: this one queues first
		thirdErr = b.Execute(ctx, func(context.Context) error { return nil })
	}()
	go func() {
		defer wg.Done()
		time.Sleep(40 * time.Millisecond)
		rejectedErr = b.Acquire(ctx)
	}()

	time.Sleep(60 * time.Millisecond)
	if !errors.Is(rejectedErr, ErrBulkheadFull) {
		t.Fatalf("fourth caller err = %v, want ErrBulkheadFull", rejectedErr)
	}

	close(release1)
	wg.Wait()

	if thirdErr != nil {
		t.Fatalf("queued third caller err = %v, want nil (should run once a slot freed)", thirdErr)
	}
	close(release2)
}

// TestBulkhead_MaxConcurrentNeverExceeded checks that active never
// exceeds MaxConcurrent even under heavy concurrent load.
func TestBulkhead_MaxConcurrentNeverExceeded(t *testing.T) {
	b := New(Config{MaxConcurrent: 3, MaxQueueSize: 50, MaxWait: time.Second})
	ctx := context.Background()

	var mu sync.Mutex
	maxSeen := 0
	current := 0

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := b.Execute(ctx, func(context.Context) error {
				mu.Lock()
				current++
				if current > maxSeen {
					maxSeen = current
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				current--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("Execute: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxSeen > 3 {
		t.Fatalf("maxSeen concurrent = %d, want <= 3", maxSeen)
	}
}

func TestBulkhead_NoQueueRejectsImmediately(t *testing.T) {
	b := New(Config{MaxConcurrent: 1})
	ctx := context.Background()

	release := make(chan struct{})
	go b.Execute(ctx, func(context.Context) error { <-release; return nil })
	time.Sleep(10 * time.Millisecond)

	err := b.Acquire(ctx)
	if !errors.Is(err, ErrBulkheadFull) {
		t.Fatalf("err = %v, want ErrBulkheadFull", err)
	}
	close(release)
}

func TestBulkhead_CancelWhileQueuedDoesNotLeakSlot(t *testing.T) {
	b := New(Config{MaxConcurrent: 1, MaxQueueSize: 1, MaxWait: time.Second})

	release := make(chan struct{})
	go b.Execute(context.Background(), func(context.Context) error { <-release; return nil })
	time.Sleep(10 * time.Millisecond)

	qctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- b.Acquire(qctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	err := <-errc
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	close(release)

	// The slot must still be usable afterward: no leak from the abandoned wait.
	time.Sleep(10 * time.Millisecond)
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire after cancel+release: %v, want nil", err)
	}
}
