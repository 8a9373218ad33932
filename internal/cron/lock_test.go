package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryStore struct {
	values map[string]string
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusiveAndOwnerScoped(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{values: map[string]string{}}
	first, err := NewRedisLock(store, "kb:lock:cron", "worker.1", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "kb:lock:cron", "worker.2", time.Minute)

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second instance must not acquire a held lock")
	}
	holder, err := second.Holder(ctx)
	if err != nil {
		t.Fatalf("holder: %v", err)
	}
	if !strings.HasPrefix(holder, "worker.1/") {
		t.Fatalf("expected worker.1 to hold the lock, got %q", holder)
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if _, held := store.values["kb:lock:cron"]; !held {
		t.Fatal("non-owner release removed the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if holder, _ := first.Holder(ctx); holder != "" {
		t.Fatalf("expected free lock, got holder %q", holder)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("lock should be free after owner release")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", "w", time.Minute); err == nil {
		t.Fatal("expected nil client error")
	}
	if _, err := NewRedisLock(&memoryStore{}, "", "w", time.Minute); err == nil {
		t.Fatal("expected empty key error")
	}
	lock, err := NewRedisLock(&memoryStore{}, "k", "", 0)
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if lock.ttl != defaultLockTTL || lock.instance != "unknown" {
		t.Fatalf("unexpected defaults ttl=%s instance=%q", lock.ttl, lock.instance)
	}
}
