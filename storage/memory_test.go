package storage

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_TokenBucketRefillAndConsume(t *testing.T) {
	m := NewMemoryStore(time.Minute)
	ctx := context.Background()
	base := time.Unix(1000, 0)

	granted, remaining, retryAfter, err := m.ConsumeTokenBucket(ctx, "b1", 5, 0.5, base, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !granted || remaining != 4 {
		t.Fatalf("got granted=%v remaining=%v, want true, 4", granted, remaining)
	}
	if retryAfter != 0 {
		t.Fatalf("retryAfter = %v, want 0 on grant", retryAfter)
	}

	// Drain the rest.
	for i := 0; i < 4; i++ {
		granted, _, _, err := m.ConsumeTokenBucket(ctx, "b1", 5, 0.5, base, 1)
		if err != nil || !granted {
			t.Fatalf("expected grant %d, got granted=%v err=%v", i, granted, err)
		}
	}

	granted, _, retryAfter, err = m.ConsumeTokenBucket(ctx, "b1", 5, 0.5, base, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if granted {
		t.Fatalf("expected deny after bucket drained")
	}
	if retryAfter <= 0 {
		t.Fatalf("retryAfter = %v, want > 0", retryAfter)
	}

	// Refill should allow a grant again after enough elapsed time.
	later := base.Add(2 * time.Second) // 0.5 tokens/sec * 2s = 1 token
	granted, _, _, err = m.ConsumeTokenBucket(ctx, "b1", 5, 0.5, later, 1)
	if err != nil || !granted {
		t.Fatalf("expected grant after refill, got granted=%v err=%v", granted, err)
	}
}

func TestMemoryStore_FixedWindow(t *testing.T) {
	m := NewMemoryStore(time.Minute)
	ctx := context.Background()
	base := time.Unix(2000, 0)

	for i := 0; i < 3; i++ {
		granted, count, _, err := m.ConsumeFixedWindow(ctx, "w1", 10*time.Second, 3, base)
		if err != nil || !granted {
			t.Fatalf("request %d: granted=%v err=%v", i, granted, err)
		}
		if count != int64(i+1) {
			t.Fatalf("count = %d, want %d", count, i+1)
		}
	}

	granted, _, resetAt, err := m.ConsumeFixedWindow(ctx, "w1", 10*time.Second, 3, base.Add(time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if granted {
		t.Fatalf("expected deny once limit reached within window")
	}
	if !resetAt.After(base) {
		t.Fatalf("resetAt = %v, want after %v", resetAt, base)
	}

	// New window after period elapses.
	granted, count, _, err := m.ConsumeFixedWindow(ctx, "w1", 10*time.Second, 3, base.Add(11*time.Second))
	if err != nil || !granted || count != 1 {
		t.Fatalf("new window: granted=%v count=%d err=%v", granted, count, err)
	}
}

func TestMemoryStore_CircuitCompareAndSet(t *testing.T) {
	m := NewMemoryStore(time.Minute)
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no record for unseen circuit")
	}

	ok, err = m.CompareAndSet(ctx, "c1", Record{Version: 0}, Record{State: CircuitOpen, Failures: 3}, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first CAS: ok=%v err=%v", ok, err)
	}

	rec, ok, err := m.Get(ctx, "c1")
	if err != nil || !ok {
		t.Fatalf("Get after CAS: ok=%v err=%v", ok, err)
	}
	if rec.State != CircuitOpen || rec.Version != 1 {
		t.Fatalf("rec = %+v, want State=Open Version=1", rec)
	}

	// Stale expected version must fail.
	ok, err = m.CompareAndSet(ctx, "c1", Record{Version: 0}, Record{State: CircuitClosed}, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected CAS to fail on stale version")
	}

	ok, err = m.CompareAndSet(ctx, "c1", Record{Version: 1}, Record{State: CircuitClosed}, time.Minute)
	if err != nil || !ok {
		t.Fatalf("CAS with correct version: ok=%v err=%v", ok, err)
	}
}
