package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"example.com/backstage/services/erpgateway/config"
	"example.com/backstage/services/erpgateway/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// ItemPagePrefix prefixes the keys of cached item pages
const ItemPagePrefix = "erp:items:page:"

var (
	// ErrCacheMiss is returned by Get when the key is absent
	ErrCacheMiss = errors.New("key not found in cache")
	// ErrCacheDisabled is returned by every operation of a disabled cache
	ErrCacheDisabled = errors.New("cache is disabled")
)

// RedisCache provides caching using Redis
type RedisCache struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewRedisCache creates a new Redis cache
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return &RedisCache{
		client:  client,
		enabled: true,
		ttl:     cfg.TTL,
	}, nil
}

// Enabled reports whether the cache is backed by Redis
func (c *RedisCache) Enabled() bool {
	return c != nil && c.enabled
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string, value interface{}) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return errors.Wrap(err, "failed to get value from Redis")
	}

	if err := json.Unmarshal(data, value); err != nil {
		return errors.Wrap(err, "failed to unmarshal cached value")
	}
	return nil
}

// Set stores a value with the configured expiration
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value for caching")
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to set value in Redis")
	}
	return nil
}

// InvalidatePrefix deletes every key starting with prefix
func (c *RedisCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}

	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "failed to scan Redis keys")
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "failed to delete Redis keys")
	}
	return nil
}

// GroupsTag fingerprints an item group configuration. Pages classified
// under another configuration get other keys.
func GroupsTag(groups []models.GroupProperty) string {
	h := sha256.New()
	for _, g := range groups {
		fmt.Fprintf(h, "%d|%s|%t|%t;", g.Code, g.PropertyName, g.IsFrozen, g.IsOrganic)
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// ItemPageKey generates the cache key of a classified item page
func ItemPageKey(groupsTag string, updatedAfter *time.Time, skip, top int) string {
	var since int64
	if updatedAfter != nil {
		since = updatedAfter.Unix()
	}
	return fmt.Sprintf("%s%s:%d:%d:%d", ItemPagePrefix, groupsTag, since, skip, top)
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if !c.Enabled() || c.client == nil {
		return nil
	}
	return c.client.Close()
}
