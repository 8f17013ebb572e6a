package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redis_store "github.com/eko/gocache/store/redis/v4"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
	"github.com/redis/go-redis/v9"
)

// ResponseCache stores serialized pipeline results keyed by fingerprint.
// The backend is an availability optimization, never a correctness
// dependency: read failures surface as misses, write failures are logged and
// swallowed.
type ResponseCache struct {
	cache cache.CacheInterface[string]
}

// NewResponseCache builds the configured backend: an in-process Ristretto
// cache by default, Redis when several workers should share results.
func NewResponseCache(cfg *PipelineConfig) (*ResponseCache, error) {
	switch cfg.CacheBackend {
	case CacheBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		return NewResponseCacheFrom(cache.New[string](redis_store.NewRedis(client))), nil
	case CacheBackendMemory:
		ristrettoCache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e7,     // 10M
			MaxCost:     1 << 27, // 128MB
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
		}
		return NewResponseCacheFrom(cache.New[string](ristretto_store.NewRistretto(ristrettoCache))), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %v", cfg.CacheBackend)
	}
}

func NewResponseCacheFrom(c cache.CacheInterface[string]) *ResponseCache {
	return &ResponseCache{cache: c}
}

func UserTag(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

func OpTag(op OperationKind) string {
	return fmt.Sprintf("op:%s", op)
}

// Get returns the cached value for key. Backend errors degrade to a miss.
func (c *ResponseCache) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.cache.Get(ctx, key)
	if err != nil {
		return "", false
	}
	return value, value != ""
}

// Put stores value under key. Failures are logged and otherwise ignored so a
// flaky backend never fails a computed result.
func (c *ResponseCache) Put(ctx context.Context, key, value string, ttl time.Duration, tags []string) {
	err := c.cache.Set(ctx, key, value,
		store.WithExpiration(ttl),
		store.WithTags(tags),
	)
	if err != nil {
		log.Printf("[Cache] failed to store key %v: %v", key, err)
	}
}

// InvalidateUser drops every cached result for one user, used when feedback
// or a wardrobe change makes prior recommendations stale.
func (c *ResponseCache) InvalidateUser(ctx context.Context, userID uint) {
	err := c.cache.Invalidate(ctx, store.WithInvalidateTags([]string{UserTag(userID)}))
	if err != nil {
		log.Printf("[Cache] failed to invalidate user %v entries: %v", userID, err)
	}
}

// InvalidateOperation drops every cached result of one kind across all users,
// for example after a taxonomy update changes what a valid answer looks like.
func (c *ResponseCache) InvalidateOperation(ctx context.Context, op OperationKind) {
	err := c.cache.Invalidate(ctx, store.WithInvalidateTags([]string{OpTag(op)}))
	if err != nil {
		log.Printf("[Cache] failed to invalidate %v entries: %v", op, err)
	}
}
