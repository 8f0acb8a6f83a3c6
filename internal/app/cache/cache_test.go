package cache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestMemorySetGet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || !bytes.Equal(value, []byte("v")) {
		t.Fatalf("expected hit with %q, got ok=%v value=%q", "v", ok, value)
	}

	if _, ok, _ := c.Get(ctx, "missing"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestMemoryExpiry(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss after expiry")
	}
}

func TestMemoryZeroTTLNeverExpires(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	now = now.Add(24 * time.Hour)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatal("expected entry without TTL to persist")
	}
}

func TestMemoryDelete(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	original := []byte("value")
	if err := c.Set(ctx, "k", original, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	original[0] = 'X'

	stored, ok, _ := c.Get(ctx, "k")
	if !ok || string(stored) != "value" {
		t.Fatalf("expected stored copy unaffected, got %q", stored)
	}
	stored[0] = 'Y'
	again, _, _ := c.Get(ctx, "k")
	if string(again) != "value" {
		t.Fatalf("expected returned copy isolated, got %q", again)
	}
}
