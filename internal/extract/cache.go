package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores raw model answers by content key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CacheKey identifies a source by content and variant; the filename is ignored.
func CacheKey(src Source) string {
	h := sha256.New()
	h.Write([]byte(src.Variant))
	h.Write([]byte{0})
	h.Write(src.Data)
	h.Write([]byte{0})
	h.Write([]byte(src.Text))
	return "rfq:extract:" + hex.EncodeToString(h.Sum(nil))
}

// WithCache serves repeated sources from cache. Cache errors are logged and
// never fail the extraction.
func WithCache(next Extractor, cache Cache, ttl time.Duration, logger *slog.Logger) Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return ExtractorFunc(func(ctx context.Context, src Source) (Raw, error) {
		key := CacheKey(src)
		if b, ok, err := cache.Get(ctx, key); err != nil {
			logger.Warn("extract.cache.get_failed", "key", key, "error", err)
		} else if ok {
			logger.Info("extract.cache.hit", "key", key, "bytes", len(b))
			return Raw{JSON: b, Model: "cache", Cached: true}, nil
		}

		raw, err := next.Extract(ctx, src)
		if err != nil {
			return raw, err
		}
		if err := cache.Set(ctx, key, raw.JSON, ttl); err != nil {
			logger.Warn("extract.cache.set_failed", "key", key, "error", err)
		}
		return raw, nil
	})
}

// RedisCache keeps answers in Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the Redis instance at url (redis://...).
func NewRedisCache(ctx context.Context, url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// MemoryCache is a process-local Cache for single-node runs and tests.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}
