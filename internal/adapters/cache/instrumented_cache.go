package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
	"github.com/zatekoja/nearbyfinder/internal/infrastructure/observability"
)

// InstrumentedCache records hit and miss counts for a wrapped cache.
type InstrumentedCache struct {
	inner   providers.CacheProvider
	metrics *observability.Metrics
}

// NewInstrumentedCache wraps inner with hit/miss metrics
func NewInstrumentedCache(inner providers.CacheProvider, metrics *observability.Metrics) providers.CacheProvider {
	return &InstrumentedCache{inner: inner, metrics: metrics}
}

// Get retrieves a value and counts the outcome
func (c *InstrumentedCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.inner.Get(ctx, key)
	switch {
	case err == nil:
		observability.RecordCacheHit(ctx, c.metrics, namespace(key))
	case errors.Is(err, providers.ErrCacheMiss):
		observability.RecordCacheMiss(ctx, c.metrics, namespace(key))
	}
	return value, err
}

// Set stores a value
func (c *InstrumentedCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.inner.Set(ctx, key, value, ttl)
}

// Delete removes a value
func (c *InstrumentedCache) Delete(ctx context.Context, key string) error {
	return c.inner.Delete(ctx, key)
}

// namespace keeps metric cardinality low: "places:v1:nearby:abc" -> "places".
func namespace(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
