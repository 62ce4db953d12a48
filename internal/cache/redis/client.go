package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sydialogue/dashboard/internal/cache"
	"github.com/sydialogue/dashboard/internal/metrics"
	"github.com/sydialogue/dashboard/internal/models"
	"github.com/sydialogue/dashboard/pkg/logger"
)

const backend = "redis"

// Client stores the relationship snapshot as one JSON value without a TTL.
type Client struct {
	client *redis.Client
	key    string
}

var _ cache.Cache = (*Client)(nil)

type Options struct {
	Host     string
	Port     int
	Password string
	DB       int
	// KeyPrefix namespaces the snapshot key when several dashboards share
	// one Redis database.
	KeyPrefix string
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis snapshot cache initialized", zap.String("addr", addr), zap.Int("db", opts.DB))

	return New(client, opts.KeyPrefix), nil
}

// New wraps an existing go-redis client.
func New(client *redis.Client, keyPrefix string) *Client {
	return &Client{client: client, key: keyPrefix + cache.Key}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Get(ctx context.Context) (*models.Snapshot, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.WithLabelValues(backend).Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get relationship snapshot: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A value this process cannot read is treated as absent.
		logger.Warn("Discarding unreadable relationship snapshot", zap.String("key", c.key), zap.Error(err))
		metrics.CacheMisses.WithLabelValues(backend).Inc()
		return nil, false, nil
	}

	metrics.CacheHits.WithLabelValues(backend).Inc()
	logger.Debug("Relationship snapshot cache hit", zap.String("key", c.key), zap.Int64("timestamp", snap.Timestamp))
	return &snap, true, nil
}

func (c *Client) Set(ctx context.Context, snap models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal relationship snapshot: %w", err)
	}

	if err := c.client.Set(ctx, c.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set relationship snapshot: %w", err)
	}

	logger.Debug("Relationship snapshot cached", zap.String("key", c.key), zap.Int("bytes", len(data)))
	return nil
}

func (c *Client) Clear(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("failed to clear relationship snapshot: %w", err)
	}

	logger.Info("Relationship snapshot cache cleared", zap.String("key", c.key))
	return nil
}
