package persist

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shashiranjanraj/cartsync/pkg/cache"
)

// RedisBackend is a remote backend keyed by Key(userID). It is useful as a
// shared cart store for deployments without Firestore.
type RedisBackend struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisBackend stores carts without expiry when ttl is zero.
func NewRedisBackend(rdb *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{rdb: rdb, ttl: ttl}
}

func (b *RedisBackend) Name() string { return "redis" }
func (b *RedisBackend) Kind() Kind   { return KindRemote }

func (b *RedisBackend) Load(ctx context.Context, userID string) (Record, error) {
	data, err := cache.GetRaw(ctx, b.rdb, Key(userID))
	if err != nil {
		if cache.IsMiss(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return decodeRecord(data)
}

func (b *RedisBackend) Save(ctx context.Context, userID string, rec Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return cache.SetRaw(ctx, b.rdb, Key(userID), data, b.ttl)
}
