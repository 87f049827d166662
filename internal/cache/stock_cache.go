package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// stockTTL bounds how stale the cart-facing stock read may be. The value is
// revalidated under a row lock at reservation time, so short staleness here
// is acceptable.
const stockTTL = 30 * time.Second

// StockCache provides the lock-free read path for cart stock lookups.
type StockCache struct {
	redis *RedisClient
}

// NewStockCache creates a new StockCache.
func NewStockCache(redis *RedisClient) *StockCache {
	return &StockCache{redis: redis}
}

func (c *StockCache) key(sku string) string {
	return fmt.Sprintf("stock:sku:%s", sku)
}

// Get returns the cached stock for sku. The second return value is false on
// a cache miss.
func (c *StockCache) Get(ctx context.Context, sku string) (int, bool, error) {
	v, err := c.redis.Get(ctx, c.key(sku))
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt stock cache entry for %s: %w", sku, err)
	}
	return n, true, nil
}

// Set stores the stock for sku with the cache TTL.
func (c *StockCache) Set(ctx context.Context, sku string, stock int) error {
	return c.redis.Set(ctx, c.key(sku), strconv.Itoa(stock), stockTTL)
}

// Invalidate drops cached entries after a stock mutation.
func (c *StockCache) Invalidate(ctx context.Context, skus ...string) error {
	if len(skus) == 0 {
		return nil
	}
	keys := make([]string, len(skus))
	for i, sku := range skus {
		keys[i] = c.key(sku)
	}
	return c.redis.Delete(ctx, keys...)
}
