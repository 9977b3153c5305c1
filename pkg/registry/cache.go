package registry

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/clingen-curation-server/internal/domain"
)

// defaultMemorySize bounds the in-process tier when no size is configured.
const defaultMemorySize = 1024

// CachedLookup represents a cached user directory answer with metadata.
type CachedLookup struct {
	PK        string    `json:"pk"`
	Found     bool      `json:"found"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CachingDirectory wraps a UserDirectory with a two-tier cache: an in-process
// LRU in front of Redis. Email-to-PK mappings are stable, so cache hits are
// safe across transfer requests.
type CachingDirectory struct {
	delegate   domain.UserDirectory
	memory     *lru.Cache
	redis      *redis.Client
	defaultTTL time.Duration
	log        *logrus.Logger
}

// NewCachingDirectory creates a caching user directory. The Redis tier is
// optional; an empty RedisURL leaves only the in-process tier active.
func NewCachingDirectory(delegate domain.UserDirectory, config *domain.CacheConfig, log *logrus.Logger) (*CachingDirectory, error) {
	size := config.MemorySize
	if size <= 0 {
		size = defaultMemorySize
	}
	memory, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	var client *redis.Client
	if config.RedisURL != "" {
		opts, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		if config.PoolSize > 0 {
			opts.PoolSize = config.PoolSize
		}
		if config.PoolTimeout > 0 {
			opts.PoolTimeout = config.PoolTimeout
		}
		client = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	return &CachingDirectory{
		delegate:   delegate,
		memory:     memory,
		redis:      client,
		defaultTTL: config.DefaultTTL,
		log:        log,
	}, nil
}

// LookupUserPKByEmail resolves a contributor email, consulting the memory and
// Redis tiers before the delegate. Not-found answers are cached too so a
// transfer retried with the same bad email fails fast.
func (c *CachingDirectory) LookupUserPKByEmail(ctx context.Context, email string) (string, error) {
	key := lookupKey(email)

	if cached, ok := c.fromMemory(key); ok {
		return cachedResult(cached)
	}
	if cached, ok := c.fromRedis(ctx, key); ok {
		c.memory.Add(key, cached)
		return cachedResult(cached)
	}

	pk, err := c.delegate.LookupUserPKByEmail(ctx, email)
	if err != nil && err != domain.ErrNotFound {
		return "", err
	}

	cached := &CachedLookup{
		PK:        pk,
		Found:     err == nil,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(c.ttl()),
	}
	c.memory.Add(key, cached)
	c.toRedis(ctx, key, cached)

	return cachedResult(cached)
}

func cachedResult(cached *CachedLookup) (string, error) {
	if !cached.Found {
		return "", domain.ErrNotFound
	}
	return cached.PK, nil
}

func (c *CachingDirectory) fromMemory(key string) (*CachedLookup, bool) {
	val, ok := c.memory.Get(key)
	if !ok {
		return nil, false
	}
	cached, ok := val.(*CachedLookup)
	if !ok || time.Now().After(cached.ExpiresAt) {
		c.memory.Remove(key)
		return nil, false
	}
	return cached, true
}

func (c *CachingDirectory) fromRedis(ctx context.Context, key string) (*CachedLookup, bool) {
	if c.redis == nil {
		return nil, false
	}

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.WithError(err).Warn("User directory cache read failed")
		return nil, false
	}

	var cached CachedLookup
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, false
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false
	}
	return &cached, true
}

func (c *CachingDirectory) toRedis(ctx context.Context, key string, cached *CachedLookup) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl()).Err(); err != nil {
		c.log.WithError(err).Warn("User directory cache write failed")
	}
}

func (c *CachingDirectory) ttl() time.Duration {
	if c.defaultTTL > 0 {
		return c.defaultTTL
	}
	return 15 * time.Minute
}

// Close releases the Redis connection if one is active.
func (c *CachingDirectory) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}

func lookupKey(email string) string {
	hash := sha256.Sum256([]byte(email))
	return fmt.Sprintf("registry:user:%x", hash[:8])
}
