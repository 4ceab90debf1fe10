package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/taskguard/storage"
)

func TestFixedWindow_GrantsUpToLimitThenDenies(t *testing.T) {
	store := storage.NewMemoryStore(time.Minute)
	w := NewFixedWindow(store, "w1", 3, 5*time.Second)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ok, _, err := w.TryAcquire(ctx)
		if err != nil || !ok {
			t.Fatalf("request %d: granted=%v err=%v", i, ok, err)
		}
	}

	ok, retryAfter, err := w.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected deny once limit reached")
	}
	if retryAfter <= 0 {
		t.Fatalf("retryAfter = %v, want > 0", retryAfter)
	}
}

func TestFixedWindow_ExecuteDeniedWithoutWait(t *testing.T) {
	store := storage.NewMemoryStore(time.Minute)
	w := NewFixedWindow(store, "w2", 1, time.Second)

	ctx := context.Background()
	if err := w.Execute(ctx, false, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	err := w.Execute(ctx, false, func(context.Context) error { return nil })
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
}

func TestFixedWindow_Capacity(t *testing.T) {
	store := storage.NewMemoryStore(time.Minute)
	w := NewFixedWindow(store, "w3", 2, time.Second)

	ctx := context.Background()
	_, _, _ = w.TryAcquire(ctx)

	limit, remaining, _ := w.Capacity()
	if limit != 2 || remaining != 1 {
		t.Fatalf("limit=%d remaining=%d, want 2, 1", limit, remaining)
	}
}
