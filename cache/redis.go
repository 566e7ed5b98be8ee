package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Sumitbhoyar/customer-support-copilot/pkg/logging"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of Redis so the customer-context cache
// can be shared across instances. TTL enforcement is delegated to Redis;
// capacity is whatever the server's eviction policy allows.
type RedisStore[V any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore[V any](config *RedisConfig) *RedisStore[V] {
	if config == nil {
		config = &RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "copilot:cache:",
			TTL:    5 * time.Minute,
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisStore[V]{
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
		logger: logging.WithComponent("redis_cache"),
	}
}

// Get loads and decodes the value under key. Connection and decode failures
// are logged and reported as a miss.
func (s *RedisStore[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	data, err := s.client.Get(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return zero, false
	}
	if err != nil {
		s.logger.Warn("redis get failed", "key", key, "error", err)
		return zero, false
	}
	var value V
	if err := json.Unmarshal([]byte(data), &value); err != nil {
		s.logger.Warn("redis value decode failed", "key", key, "error", err)
		return zero, false
	}
	return value, true
}

// Set encodes and stores value under key with the configured TTL.
func (s *RedisStore[V]) Set(ctx context.Context, key string, value V) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("redis value encode failed", "key", key, "error", err)
		return
	}
	if err := s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		s.logger.Warn("redis set failed", "key", key, "error", err)
	}
}

// Delete removes key, reporting whether it existed.
func (s *RedisStore[V]) Delete(ctx context.Context, key string) bool {
	removed, err := s.client.Del(ctx, s.prefix+key).Result()
	if err != nil {
		s.logger.Warn("redis delete failed", "key", key, "error", err)
		return false
	}
	return removed > 0
}

// Ping checks if the Redis connection is alive.
func (s *RedisStore[V]) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore[V]) Close() error {
	return s.client.Close()
}
