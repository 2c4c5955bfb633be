package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

// Cache provides caching for LLM responses
type Cache interface {
	// Get retrieves a cached response
	Get(ctx context.Context, key string) (*Response, bool)
	// Set stores a response in cache
	Set(ctx context.Context, key string, resp *Response) error
	// Stats returns cache statistics
	Stats() CacheStats
}

// CacheStats holds cache statistics
type CacheStats struct {
	Hits   int64
	Misses int64
	Size   int64
}

// MemoryCache is an in-memory LRU cache for LLM responses with TTL expiry
type MemoryCache struct {
	lru    *expirable.LRU[string, *Response]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(maxSize int, ttl time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &MemoryCache{
		lru: expirable.NewLRU[string, *Response](maxSize, nil, ttl),
	}
}

// Get retrieves a cached response
func (c *MemoryCache) Get(ctx context.Context, key string) (*Response, bool) {
	resp, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)

	keyPreview := key
	if len(key) > 16 {
		keyPreview = key[:16] + "..."
	}
	log.Debug().Str("key", keyPreview).Msg("cache hit")
	return resp, true
}

// Set stores a response in cache
func (c *MemoryCache) Set(ctx context.Context, key string, resp *Response) error {
	c.lru.Add(key, resp)
	return nil
}

// Stats returns cache statistics
func (c *MemoryCache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   int64(c.lru.Len()),
	}
}

// GenerateCacheKey creates a cache key from a request
func GenerateCacheKey(req *Request) string {
	// Create a deterministic representation of the request
	keyData := struct {
		Tier        Tier
		System      string
		Messages    []Message
		Temperature float64
	}{
		Tier:        req.Tier,
		System:      req.System,
		Messages:    req.Messages,
		Temperature: req.Temperature,
	}

	data, _ := json.Marshal(keyData)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// CachedRouter wraps a Router with caching
type CachedRouter struct {
	router *Router
	cache  Cache
}

// NewCachedRouter creates a router with caching enabled
func NewCachedRouter(router *Router, cache Cache) *CachedRouter {
	return &CachedRouter{
		router: router,
		cache:  cache,
	}
}

// Complete sends a completion request with caching
func (r *CachedRouter) Complete(ctx context.Context, req *Request) (*Response, error) {
	cacheKey := GenerateCacheKey(req)

	if cached, ok := r.cache.Get(ctx, cacheKey); ok {
		cached.Cached = true
		return cached, nil
	}

	resp, err := r.router.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, cacheKey, resp); err != nil {
		log.Warn().Err(err).Msg("failed to cache response")
	}

	return resp, nil
}

// HealthCheck delegates to underlying router
func (r *CachedRouter) HealthCheck() error {
	return r.router.HealthCheck()
}

// CacheStats returns cache statistics
func (r *CachedRouter) CacheStats() CacheStats {
	return r.cache.Stats()
}

// GetRouter returns the underlying router
func (r *CachedRouter) GetRouter() *Router {
	return r.router
}

// NullCache is a no-op cache for testing or when caching is disabled
type NullCache struct{}

func (c *NullCache) Get(ctx context.Context, key string) (*Response, bool) {
	return nil, false
}

func (c *NullCache) Set(ctx context.Context, key string, resp *Response) error {
	return nil
}

func (c *NullCache) Stats() CacheStats {
	return CacheStats{}
}

// CreateCache builds a cache from config
func CreateCache(cacheType string, maxSize int, ttl time.Duration) Cache {
	switch cacheType {
	case "memory":
		return NewMemoryCache(maxSize, ttl)
	case "none", "":
		return &NullCache{}
	default:
		log.Warn().Str("type", cacheType).Msg("unknown cache type, using memory cache")
		return NewMemoryCache(maxSize, ttl)
	}
}
