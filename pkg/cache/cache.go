// Package cache wraps the go-redis client used for the shared cart store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect initialises a Redis client and verifies the connection with a ping.
// Returns an error so the caller can react (log warning, fall back, or abort).
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return rdb, nil
}

// IsMiss reports whether err means the key does not exist.
func IsMiss(err error) bool { return errors.Is(err, redis.Nil) }

// GetRaw returns the bytes stored under key. A missing key yields redis.Nil.
func GetRaw(ctx context.Context, rdb *redis.Client, key string) ([]byte, error) {
	return rdb.Get(ctx, key).Bytes()
}

// SetRaw stores data under key; ttl 0 means no expiry.
func SetRaw(ctx context.Context, rdb *redis.Client, key string, data []byte, ttl time.Duration) error {
	return rdb.Set(ctx, key, data, ttl).Err()
}
