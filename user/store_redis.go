package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "beetamin:session:"

var _ SessionStore = (*RedisStore)(nil)

// RedisStore keeps sessions in Redis, so they survive restarts and are shared between instances.
// Expiry is delegated to Redis (key TTL).
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the Redis server at the given URL (redis://[:password@]host:port/db).
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Put(ctx context.Context, id string, data SessionData, expires time.Time) error {
	value, err := json.Marshal(data)
	if err != nil {
		return err
	}
	ttl := time.Until(expires)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, redisKeyPrefix+id, value, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*SessionData, error) {
	value, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var result SessionData
	if err := json.Unmarshal(value, &result); err != nil {
		return nil, fmt.Errorf("invalid session data: %w", err)
	}
	return &result, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Ping checks the connection to Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
