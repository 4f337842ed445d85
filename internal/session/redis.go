package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

const redisKeyPrefix = "session:"

// RedisStore keeps sessions in Redis as JSON under "session:<id>". Redis
// expires the key at the record's deadline, so no sweeper is needed.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisClient creates a client and pings it so a bad address fails at
// startup rather than on the first request.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("session: connecting to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// NewRedisStore wraps an existing client. The caller owns the client and
// closes it on shutdown.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Data, error) {
	raw, err := s.rdb.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: reading %s: %w", redisKey(id), err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("session: decoding %s: %w", redisKey(id), err)
	}
	if data.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	return &data, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, data *Data) error {
	ttl := time.Until(data.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, id)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("session: encoding %s: %w", redisKey(id), err)
	}
	if err := s.rdb.Set(ctx, redisKey(id), raw, ttl).Err(); err != nil {
		return fmt.Errorf("session: writing %s: %w", redisKey(id), err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("session: deleting %s: %w", redisKey(id), err)
	}
	return nil
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}
