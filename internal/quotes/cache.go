package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Cache writes per-symbol top-of-book quotes as redis hashes with a TTL, so
// stale symbols expire on their own once their worker stops.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a quote cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// PublishTopOfBook stores the current best bid/ask for a symbol.
// Nil prices mean that side of the ladder is empty.
func (c *Cache) PublishTopOfBook(ctx context.Context, symbol string, bestBid, bestAsk *decimal.Decimal) error {
	key := fmt.Sprintf("topofbook:%s", symbol)

	fields := map[string]any{
		"best_bid":   "",
		"best_ask":   "",
		"updated_at": time.Now().UnixMilli(),
	}
	if bestBid != nil {
		fields["best_bid"] = bestBid.String()
	}
	if bestAsk != nil {
		fields["best_ask"] = bestAsk.String()
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, c.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline error: %w", err)
	}
	return nil
}
