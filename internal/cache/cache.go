package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/smartbus-tz/booking-backend/internal/config"
)

// Cache is a read-through cache for trip search results and seat maps.
// It is entirely optional: when Redis is not configured or unreachable the
// client is nil and every operation is a miss, so the API keeps working
// straight off the database.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// New connects to Redis using the given configuration. Returns a disabled
// cache when no address is configured or the server cannot be reached.
func New(cfg config.RedisConfig, logger *logrus.Logger) *Cache {
	c := &Cache{ttl: cfg.CacheTTL, logger: logger}
	if cfg.Addr == "" {
		return c
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Redis unreachable, caching disabled")
		return c
	}

	c.client = client
	logger.WithField("addr", cfg.Addr).Info("Redis cache connected")
	return c
}

// Enabled reports whether a Redis connection is available
func (c *Cache) Enabled() bool {
	return c.client != nil
}

// Get loads a cached JSON value into dest. Returns false on a miss or any
// cache failure.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c.client == nil {
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache entry corrupt, dropping")
		c.client.Del(ctx, key)
		return false
	}
	return true
}

// Set stores a value as JSON with the configured TTL. Failures are logged
// and swallowed.
func (c *Cache) Set(ctx context.Context, key string, value interface{}) {
	if c.client == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

// InvalidateTrip drops the cached seat map for a trip. Called after any seat
// transition so clients never see a stale map longer than one round trip.
func (c *Cache) InvalidateTrip(ctx context.Context, tripID string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, SeatMapKey(tripID)).Err(); err != nil {
		c.logger.WithError(err).WithField("trip_id", tripID).Warn("Cache invalidation failed")
	}
}

// Close releases the Redis connection
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// SeatMapKey is the cache key for a trip's seat map
func SeatMapKey(tripID string) string {
	return "seatmap:" + tripID
}

// TripSearchKey is the cache key for a trip search query
func TripSearchKey(from, to, date string) string {
	return fmt.Sprintf("trips:%s:%s:%s", from, to, date)
}
