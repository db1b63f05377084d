package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"salonbook/internal/availability"
)

const keyPrefix = "salonbook:service_duration:"

// Counter records cache hits and misses.
type Counter interface {
	IncCache(result string)
}

// Catalog is a Redis read-through cache in front of a ServiceCatalog.
// Unknown services are not cached so they resolve as soon as they are synced.
type Catalog struct {
	next    availability.ServiceCatalog
	redis   *redis.Client
	ttl     time.Duration
	counter Counter
	logger  *zerolog.Logger
}

// NewCatalog wraps next. A nil client or non-positive ttl disables caching.
func NewCatalog(next availability.ServiceCatalog, client *redis.Client, ttl time.Duration, counter Counter, logger *zerolog.Logger) *Catalog {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Catalog{next: next, redis: client, ttl: ttl, counter: counter, logger: logger}
}

func (c *Catalog) enabled() bool {
	return c.redis != nil && c.ttl > 0
}

// DurationOf returns the cached duration or falls through to the wrapped catalog.
func (c *Catalog) DurationOf(ctx context.Context, serviceID int64) (int, error) {
	if !c.enabled() {
		return c.next.DurationOf(ctx, serviceID)
	}

	key := keyPrefix + strconv.FormatInt(serviceID, 10)
	if d, ok := c.read(ctx, key); ok {
		c.count("hit")
		return d, nil
	}
	c.count("miss")

	d, err := c.next.DurationOf(ctx, serviceID)
	if err != nil {
		return 0, err
	}
	if err := c.redis.Set(ctx, key, d, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Int64("service_id", serviceID).Msg("failed to cache service duration")
	}
	return d, nil
}

func (c *Catalog) read(ctx context.Context, key string) (int, bool) {
	val, err := c.redis.Get(ctx, key).Int()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
		}
		return 0, false
	}
	return val, true
}

// Invalidate drops every cached duration.
func (c *Catalog) Invalidate(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}

	iter := c.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete cache keys: %w", err)
	}
	return nil
}

func (c *Catalog) count(result string) {
	if c.counter != nil {
		c.counter.IncCache(result)
	}
}
