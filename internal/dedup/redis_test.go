package dedup

import (
	"context"
	"testing"
	"time"
)

// fakeKeyStore is an in-memory KeyStore for testing without Redis.
type fakeKeyStore struct {
	keys map[string]time.Duration
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{keys: make(map[string]time.Duration)}
}

func (f *fakeKeyStore) SetNX(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = ttl
	return true, nil
}

func (f *fakeKeyStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.keys[key]
	return ok, nil
}

func (f *fakeKeyStore) Close() error { return nil }

func TestRedisWindow_SeenAdd(t *testing.T) {
	ctx := context.Background()
	store := newFakeKeyStore()
	w := NewRedisWindow(store, "soar:processed:", time.Hour)

	if seen, _ := w.Seen(ctx, "evt-1"); seen {
		t.Error("Seen should be false before Add")
	}

	if err := w.Add(ctx, "evt-1"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if seen, _ := w.Seen(ctx, "evt-1"); !seen {
		t.Error("Seen should be true after Add")
	}

	if ttl := store.keys["soar:processed:evt-1"]; ttl != time.Hour {
		t.Errorf("stored TTL = %v, want 1h", ttl)
	}
}

func TestRedisWindow_Defaults(t *testing.T) {
	w := NewRedisWindow(newFakeKeyStore(), "", 0)

	if w.keyPrefix != "soar:processed:" {
		t.Errorf("keyPrefix = %q", w.keyPrefix)
	}
	if w.retention != 24*time.Hour {
		t.Errorf("retention = %v, want 24h", w.retention)
	}
}

func TestRedisWindow_AddIdempotent(t *testing.T) {
	ctx := context.Background()
	w := NewRedisWindow(newFakeKeyStore(), "", time.Hour)

	if err := w.Add(ctx, "evt-1"); err != nil {
		t.Fatalf("first Add() error = %v", err)
	}
	if err := w.Add(ctx, "evt-1"); err != nil {
		t.Fatalf("second Add() error = %v", err)
	}
}
