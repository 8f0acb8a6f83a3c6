package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrFillFillsOnce(t *testing.T) {
	loader := NewLoader(NewMemory())
	ctx := context.Background()

	var fills int64
	fill := func(context.Context) ([]byte, error) {
		atomic.AddInt64(&fills, 1)
		return []byte("filled"), nil
	}

	for i := 0; i < 5; i++ {
		value, err := loader.GetOrFill(ctx, "k", time.Minute, fill)
		if err != nil {
			t.Fatalf("get or fill %d: %v", i, err)
		}
		if string(value) != "filled" {
			t.Fatalf("unexpected value %q", value)
		}
	}
	if n := atomic.LoadInt64(&fills); n != 1 {
		t.Fatalf("expected one fill, got %d", n)
	}
}

func TestGetOrFillConcurrentCallersShareOneFill(t *testing.T) {
	loader := NewLoader(NewMemory())
	ctx := context.Background()

	var fills int64
	fill := func(context.Context) ([]byte, error) {
		atomic.AddInt64(&fills, 1)
		time.Sleep(20 * time.Millisecond)
		return []byte("shared"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := loader.GetOrFill(ctx, "k", time.Minute, fill)
			if err != nil {
				t.Errorf("get or fill: %v", err)
				return
			}
			if string(value) != "shared" {
				t.Errorf("unexpected value %q", value)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt64(&fills); n != 1 {
		t.Fatalf("expected one fill across concurrent callers, got %d", n)
	}
}

func TestGetOrFillPropagatesFillError(t *testing.T) {
	loader := NewLoader(NewMemory())
	ctx := context.Background()

	fillErr := fmt.Errorf("upstream down")
	if _, err := loader.GetOrFill(ctx, "k", time.Minute, func(context.Context) ([]byte, error) {
		return nil, fillErr
	}); err == nil {
		t.Fatal("expected fill error propagated")
	}

	// Errors are not cached; a later fill succeeds.
	value, err := loader.GetOrFill(ctx, "k", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("recovered"), nil
	})
	if err != nil {
		t.Fatalf("get or fill after failure: %v", err)
	}
	if string(value) != "recovered" {
		t.Fatalf("unexpected value %q", value)
	}
}

func TestInvalidateForcesRefill(t *testing.T) {
	loader := NewLoader(NewMemory())
	ctx := context.Background()

	var fills int64
	fill := func(context.Context) ([]byte, error) {
		atomic.AddInt64(&fills, 1)
		return []byte("v"), nil
	}

	if _, err := loader.GetOrFill(ctx, "k", time.Minute, fill); err != nil {
		t.Fatalf("first fill: %v", err)
	}
	if err := loader.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := loader.GetOrFill(ctx, "k", time.Minute, fill); err != nil {
		t.Fatalf("refill: %v", err)
	}
	if n := atomic.LoadInt64(&fills); n != 2 {
		t.Fatalf("expected refill after invalidate, got %d fills", n)
	}
}

func TestLoaderReleasesKeyLocks(t *testing.T) {
	loader := NewLoader(NewMemory())
	ctx := context.Background()

	if _, err := loader.GetOrFill(ctx, "k", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("v"), nil
	}); err != nil {
		t.Fatalf("fill: %v", err)
	}

	loader.mu.Lock()
	remaining := len(loader.locks)
	loader.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected key locks released, %d remain", remaining)
	}
}
