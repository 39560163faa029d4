// internal/domain/catalog/cache.go
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const defaultCacheTTL = 5 * time.Minute

// CachedReader puts a redis read-through cache in front of another Reader
type CachedReader struct {
	next    Reader
	client  *redis.Client
	baseTTL time.Duration
	logger  logrus.FieldLogger
	sfg     singleflight.Group
}

// NewCachedReader wraps next with a redis cache. A non-positive ttl uses the default.
func NewCachedReader(next Reader, client *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *CachedReader {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedReader{
		next:    next,
		client:  client,
		baseTTL: ttl,
		logger:  logger.WithField("component", "catalog_cache"),
	}
}

// GetProduct returns the cached product or loads it from the wrapped reader.
// Cache failures are logged and never fail the read.
func (c *CachedReader) GetProduct(ctx context.Context, id string) (*Product, error) {
	v, err, _ := c.sfg.Do(id, func() (interface{}, error) {
		p, err := c.get(ctx, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).WithField("product_id", id).Warn("catalog cache read failed")
		}

		p, err = c.next.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := c.set(ctx, p); err != nil {
			c.logger.WithError(err).WithField("product_id", id).Warn("catalog cache write failed")
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	p := *v.(*Product)
	return &p, nil
}

// Invalidate drops a cached product
func (c *CachedReader) Invalidate(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, productCacheKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *CachedReader) get(ctx context.Context, id string) (*Product, error) {
	data, err := c.client.Get(ctx, productCacheKey(id)).Bytes()
	if err != nil {
		return nil, err
	}

	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product failed: %w", err)
	}
	return &p, nil
}

func (c *CachedReader) set(ctx context.Context, p *Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product failed: %w", err)
	}

	// spread expiry so a warm cache does not expire all at once
	jitter := time.Duration(rand.Int63n(int64(c.baseTTL/5) + 1))
	if err := c.client.Set(ctx, productCacheKey(p.ID), data, c.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func productCacheKey(id string) string {
	return fmt.Sprintf("catalog:product:%s", id)
}
