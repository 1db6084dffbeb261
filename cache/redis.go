// Package cache provides a Redis-backed cache for uptime statistics.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amartya2002/uptime-monitor-core/uptime"
)

const keyPrefix = "uptime:stats:"

// Config describes the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// StatsCache stores UptimeStats as JSON under one key per system.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ uptime.StatsCache = (*StatsCache)(nil)

// New connects to Redis and pings it.
func New(ctx context.Context, cfg Config) (*StatsCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewWithClient(client, cfg.TTL), nil
}

// NewWithClient wraps an existing client. A zero ttl keeps entries until
// they are invalidated.
func NewWithClient(client *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

func key(id uint) string {
	return fmt.Sprintf("%s%d", keyPrefix, id)
}

func (c *StatsCache) GetStats(ctx context.Context, id uint) (uptime.UptimeStats, bool, error) {
	val, err := c.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return uptime.UptimeStats{}, false, nil
	}
	if err != nil {
		return uptime.UptimeStats{}, false, err
	}
	var stats uptime.UptimeStats
	if err := json.Unmarshal(val, &stats); err != nil {
		return uptime.UptimeStats{}, false, fmt.Errorf("decode cached stats: %w", err)
	}
	return stats, true, nil
}

func (c *StatsCache) SetStats(ctx context.Context, id uint, stats uptime.UptimeStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(id), data, c.ttl).Err()
}

func (c *StatsCache) Invalidate(ctx context.Context, ids ...uint) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	return c.client.Del(ctx, keys...).Err()
}

// Close closes the underlying client.
func (c *StatsCache) Close() error {
	return c.client.Close()
}
