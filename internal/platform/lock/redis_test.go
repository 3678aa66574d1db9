package lock

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisWithClient(client, "hris:test:"+uuid.NewString()+":", time.Second)
}

func TestRedisLockExcludesSecondHolder(t *testing.T) {
	locker := newTestRedis(t)
	release, err := locker.Lock(context.Background(), "financial_requests/r1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "financial_requests/r1"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired while held, got %v", err)
	}

	release()
	again, err := locker.Lock(context.Background(), "financial_requests/r1")
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	again()
}

func TestRedisStaleReleaseKeepsNewHolder(t *testing.T) {
	locker := newTestRedis(t)
	locker.ttl = 50 * time.Millisecond
	stale, err := locker.Lock(context.Background(), "payroll_records/p1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	time.Sleep(120 * time.Millisecond)

	locker.ttl = time.Second
	current, err := locker.Lock(context.Background(), "payroll_records/p1")
	if err != nil {
		t.Fatalf("lock after expiry: %v", err)
	}
	defer current()
	stale()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "payroll_records/p1"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("stale release dropped the new holder's lock: %v", err)
	}
}
