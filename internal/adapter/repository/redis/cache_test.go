package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/usecase"
)

func TestCacheSetAndGet(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client, "")
	ctx := context.Background()

	if err := cache.Set(ctx, "foo", []byte("bar"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	val, err := cache.Get(ctx, "foo")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(val) != "bar" {
		t.Fatalf("expected bar, got %s", val)
	}

	if !mr.Exists("cashflow:cache:foo") {
		t.Fatalf("expected key to be stored under the service prefix, keys=%v", mr.Keys())
	}
}

func TestCacheMiss(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client, "test:")

	if _, err := cache.Get(context.Background(), "absent"); !errors.Is(err, usecase.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestCacheExpiry(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client, "")
	ctx := context.Background()

	if err := cache.Set(ctx, "short", []byte("x"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := cache.Set(ctx, "forever", []byte("y"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := cache.Get(ctx, "short"); !errors.Is(err, usecase.ErrCacheMiss) {
		t.Fatalf("expected expired key to miss, got %v", err)
	}
	if _, err := cache.Get(ctx, "forever"); err != nil {
		t.Fatalf("expected key without ttl to survive, got %v", err)
	}
}

func TestCacheDelete(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client, "")
	ctx := context.Background()

	if err := cache.Set(ctx, "foo", []byte("bar"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := cache.Delete(ctx, "foo"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := cache.Get(ctx, "foo"); !errors.Is(err, usecase.ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestCacheBackendDown(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer client.Close()

	cache := NewCache(client, "")
	mr.Close()

	_, err := cache.Get(context.Background(), "foo")
	if !errors.Is(err, domain.ErrTransientStoreFailure) {
		t.Fatalf("expected transient failure, got %v", err)
	}
}

func TestReportCacheFallsBackWhenRedisIsDown(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer client.Close()

	rc := usecase.NewReportCache(NewCache(client, ""), zerolog.Nop(), nil)
	ctx := context.Background()
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	version, ok := rc.Version(ctx, usecase.NamespaceDaily, day)
	if !ok {
		t.Fatalf("expected a readable version while redis is up")
	}
	key := usecase.DailyKey(domain.ScopeAll, day, version)

	report, err := domain.Consolidate(domain.ScopeAll, day, nil)
	if err != nil {
		t.Fatalf("consolidate failed: %v", err)
	}
	rc.Set(ctx, key, report, time.Hour)
	if _, ok := rc.Get(ctx, usecase.NamespaceDaily, key); !ok {
		t.Fatalf("expected cached report while redis is up")
	}

	mr.Close()

	if _, ok := rc.Get(ctx, usecase.NamespaceDaily, key); ok {
		t.Fatalf("expected a miss while redis is down")
	}
	if _, ok := rc.Version(ctx, usecase.NamespaceDaily, day); ok {
		t.Fatalf("expected the version to be unreadable while redis is down")
	}
	rc.Set(ctx, key, report, time.Hour)
	rc.Retire(ctx, usecase.NamespaceDaily, []time.Time{day}, day)
	rc.Invalidate(ctx, key)
}
