package llm

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis"

	"github.com/kalambet/talentscout/internal/storage"
)

// Cache stores validated responses by CacheKey.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, model, value string) error
}

// CacheStore is the persistence the SQLite-backed cache needs.
type CacheStore interface {
	GetCacheEntry(key string, ttl time.Duration) (storage.CacheEntry, error)
	PutCacheEntry(e storage.CacheEntry) error
}

// StoreCache keeps responses in the application database.
type StoreCache struct {
	store CacheStore
	ttl   time.Duration
}

func NewStoreCache(store CacheStore, ttl time.Duration) *StoreCache {
	return &StoreCache{store: store, ttl: ttl}
}

func (c *StoreCache) Get(_ context.Context, key string) (string, bool, error) {
	e, err := c.store.GetCacheEntry(key, c.ttl)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return e.Response, true, nil
}

func (c *StoreCache) Set(_ context.Context, key, model, value string) error {
	return c.store.PutCacheEntry(storage.CacheEntry{Key: key, Model: model, Response: value})
}

const redisKeyPrefix = "talentscout:llm:"

// RedisCache shares responses between instances through Redis. Expiry is
// delegated to Redis TTLs.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.WithContext(ctx).Get(redisKeyPrefix + key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, _, value string) error {
	return c.client.WithContext(ctx).Set(redisKeyPrefix+key, value, c.ttl).Err()
}
