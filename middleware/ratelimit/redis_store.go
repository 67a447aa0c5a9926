package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementScript starts the window on the first hit so concurrent replicas
// agree on a single reset time.
var incrementScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIREAT', KEYS[1], ARGV[1])
end
return count
`)

// RedisStore shares counters between service replicas.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (int, time.Time, bool, error) {
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, time.Time{}, false, fmt.Errorf("failed to read rate limit counter: %w", err)
	}

	raw, err := getCmd.Result()
	if errors.Is(err, redis.Nil) {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("failed to read rate limit counter: %w", err)
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("corrupt rate limit counter %q: %w", key, err)
	}

	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return 0, time.Time{}, false, nil
	}

	return count, time.Now().Add(ttl), true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, count int, resetTime time.Time) error {
	ttl := time.Until(resetTime)
	if ttl <= 0 {
		return s.Reset(ctx, key)
	}
	if err := s.client.Set(ctx, key, count, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store rate limit counter: %w", err)
	}
	return nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, resetTime time.Time) (int, error) {
	count, err := incrementScript.Run(ctx, s.client, []string{key}, resetTime.UnixMilli()).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	return count, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit counter: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
