package imaging

import (
	"context"
	"sync"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/imaging"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/telemetry"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of resolved images kept
const DefaultCacheSize = 500

// ImageResolver resolves one request
type ImageResolver interface {
	Resolve(ctx context.Context, req imaging.Request) (imaging.ResolvedImage, error)
}

// CacheStats is a point-in-time view of the proxy cache
type CacheStats struct {
	CacheSize     int `json:"cache_size"`
	InFlightCount int `json:"in_flight_count"`
}

// ProxyCache memoizes resolutions and collapses concurrent requests for the
// same key into one resolution.
//
// A force-refresh request skips the lookup and its result replaces the
// cached entry of the URL. Inline placeholders are returned but never cached.
type ProxyCache struct {
	resolver ImageResolver
	cache    *lru.Cache[string, imaging.ResolvedImage]
	group    singleflight.Group
	logger   *zap.Logger
	metrics  *telemetry.StoreMetrics

	mu         sync.Mutex
	generation uint64
	// inflight maps a key to the generation its resolution started in
	inflight map[string]uint64
}

// ProxyCacheOption configures a ProxyCache
type ProxyCacheOption func(*ProxyCache)

// WithCacheLogger sets the logger
func WithCacheLogger(logger *zap.Logger) ProxyCacheOption {
	return func(c *ProxyCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCacheMetrics sets the metrics sink
func WithCacheMetrics(m *telemetry.StoreMetrics) ProxyCacheOption {
	return func(c *ProxyCache) {
		c.metrics = m
	}
}

// NewProxyCache creates a ProxyCache holding up to size entries
func NewProxyCache(resolver ImageResolver, size int, opts ...ProxyCacheOption) (*ProxyCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, imaging.ResolvedImage](size)
	if err != nil {
		return nil, err
	}
	c := &ProxyCache{
		resolver: resolver,
		cache:    cache,
		logger:   zap.NewNop(),
		inflight: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetOrResolve returns the cached image for req or resolves it. Callers
// waiting on a shared resolution stop waiting when their ctx is done; the
// resolution itself continues for the others.
func (c *ProxyCache) GetOrResolve(ctx context.Context, req imaging.Request) (imaging.ResolvedImage, error) {
	key := req.CacheKey()
	if !req.ForceRefresh {
		if img, ok := c.cache.Get(key); ok {
			c.metrics.RecordCacheLookup(telemetry.CacheHit)
			return img, nil
		}
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.resolve(detached, key, req)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.RecordCacheLookup(telemetry.CacheShared)
		} else {
			c.metrics.RecordCacheLookup(telemetry.CacheMiss)
		}
		img, _ := res.Val.(imaging.ResolvedImage)
		return img, res.Err
	case <-ctx.Done():
		return imaging.ResolvedImage{}, ctx.Err()
	}
}

func (c *ProxyCache) resolve(ctx context.Context, key string, req imaging.Request) (imaging.ResolvedImage, error) {
	c.mu.Lock()
	gen := c.generation
	c.inflight[key] = gen
	c.publishStatsLocked()
	c.mu.Unlock()

	img, err := c.resolver.Resolve(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if started, ok := c.inflight[key]; ok && started == gen {
		delete(c.inflight, key)
	}
	if err == nil && !img.IsInline() && gen == c.generation {
		stored := req
		stored.ForceRefresh = false
		c.cache.Add(stored.CacheKey(), img)
	}
	c.publishStatsLocked()
	return img, err
}

// Clear drops every cached entry. Resolutions still in flight deliver their
// result to their callers but do not repopulate the cache.
func (c *ProxyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.inflight {
		c.group.Forget(key)
	}
	cleared := c.cache.Len()
	c.cache.Purge()
	c.inflight = make(map[string]uint64)
	c.generation++
	c.publishStatsLocked()

	c.logger.Info("image cache cleared", zap.Int("entries", cleared))
}

// Stats returns the number of cached entries and in-flight resolutions
func (c *ProxyCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{CacheSize: c.cache.Len(), InFlightCount: len(c.inflight)}
}

func (c *ProxyCache) publishStatsLocked() {
	c.metrics.SetCacheStats(c.cache.Len(), len(c.inflight))
}
