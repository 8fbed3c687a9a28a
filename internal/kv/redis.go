package kv

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const socketTimeout = 5 * time.Second

type Config struct {
	Host     string
	Port     int
	DB       int
	Password string
}

// NewClient connects to Redis with short socket timeouts so a store
// outage turns into a fast, explicit error instead of a hung request.
func NewClient(ctx context.Context, cfg Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		DB:           cfg.DB,
		Password:     cfg.Password,
		DialTimeout:  socketTimeout,
		ReadTimeout:  socketTimeout,
		WriteTimeout: socketTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// RedisStore adapts a Redis client to the set-with-TTL / get surface the
// token blacklist needs.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.SetEx(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("setex %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}

	return value, true, nil
}
