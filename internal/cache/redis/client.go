package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/powerpulse/analyzer/internal/storage/models"
	"github.com/powerpulse/analyzer/pkg/logger"
)

// metricsCacheKey and metricsCacheTTL back the CSI/metric snapshot
// read-through cache — SQLite's metrics table stays the source of
// truth; Redis only shortcuts repeat reads of the same snapshot.
const (
	metricsCacheKey = "powerpulse:metrics:snapshot"
	metricsCacheTTL = 30 * time.Second
)

// Client is an optional cache in front of the Metric snapshot
// (spec.md §4.8's aggregates). Absence of Redis never blocks reads or
// writes — callers fall back to SQLite on any cache error.
type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// GetMetricsSnapshot returns the cached metric snapshot, if present
// and unexpired. A miss (cache empty, or any redis error) returns
// (nil, false, nil) so the caller reads through to SQLite silently.
func (c *Client) GetMetricsSnapshot(ctx context.Context) ([]models.Metric, bool, error) {
	data, err := c.client.Get(ctx, metricsCacheKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		logger.Warn("Metrics cache read failed, falling back to storage", zap.Error(err))
		return nil, false, nil
	}

	var snapshot []models.Metric
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal metrics snapshot: %w", err)
	}

	logger.Debug("Metrics cache hit")
	return snapshot, true, nil
}

// SetMetricsSnapshot populates the cache after a fresh read from
// SQLite. Failures are logged, never surfaced — the cache is strictly
// best-effort.
func (c *Client) SetMetricsSnapshot(ctx context.Context, snapshot []models.Metric) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		logger.Warn("Failed to marshal metrics snapshot for cache", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, metricsCacheKey, data, metricsCacheTTL).Err(); err != nil {
		logger.Warn("Failed to write metrics snapshot to cache", zap.Error(err))
	}
}

// InvalidateMetricsSnapshot is called after ReplaceMetrics writes a
// new snapshot to SQLite, so the next read doesn't serve a stale one
// for up to metricsCacheTTL.
func (c *Client) InvalidateMetricsSnapshot(ctx context.Context) {
	if err := c.client.Del(ctx, metricsCacheKey).Err(); err != nil {
		logger.Warn("Failed to invalidate metrics cache", zap.Error(err))
	}
}
