package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// newTestRedisStore connects to the Redis named by REDIS_TEST_ADDR and skips
// the test when it is unset.
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb, err := NewRedisClient(context.Background(), addr, os.Getenv("REDIS_TEST_PASSWORD"))
	if err != nil {
		t.Fatalf("NewRedisClient() error = %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb)
}

func TestRedisKey(t *testing.T) {
	if got := redisKey("abc"); got != "session:abc" {
		t.Errorf("redisKey() = %q, want session:abc", got)
	}
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	data := &Data{UserID: 42, Flash: []string{"welcome"}, ExpiresAt: time.Now().Add(time.Minute)}
	if err := store.Save(ctx, id, data); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Delete(ctx, id) })

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != 42 || len(got.Flash) != 1 {
		t.Errorf("Get() = %+v", got)
	}

	ttl, err := store.rdb.TTL(ctx, redisKey(id)).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want within (0, 1m]", ttl)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}
}

func TestRedisStore_SaveExpiredDeletes(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	_ = store.Save(ctx, id, &Data{UserID: 1, ExpiresAt: time.Now().Add(time.Minute)})
	if err := store.Save(ctx, id, &Data{UserID: 1, ExpiresAt: time.Now().Add(-time.Second)}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
