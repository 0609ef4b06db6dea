package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	redisCache "github.com/powerpulse/analyzer/internal/cache/redis"
	"github.com/powerpulse/analyzer/internal/metrics"
	"github.com/powerpulse/analyzer/internal/storage/sqlite"
	"github.com/powerpulse/analyzer/pkg/logger"
)

// CSIHandler serves the Metric cache's CSI aggregates (spec.md §4.8),
// reading through Redis when configured and falling back to SQLite.
type CSIHandler struct {
	storage *sqlite.Client
	cache   *redisCache.Client // nil if Redis is not configured
}

func NewCSIHandler(storage *sqlite.Client, cache *redisCache.Client) *CSIHandler {
	return &CSIHandler{storage: storage, cache: cache}
}

func (h *CSIHandler) HandleGetCSI(c *fiber.Ctx) error {
	ctx := c.Context()

	if h.cache != nil {
		if snapshot, hit, err := h.cache.GetMetricsSnapshot(ctx); err == nil && hit {
			metrics.CacheHits.WithLabelValues("metrics").Inc()
			return c.JSON(snapshot)
		}
		metrics.CacheMisses.WithLabelValues("metrics").Inc()
	}

	snapshot, err := h.storage.GetMetrics()
	if err != nil {
		logger.Error("Failed to read metrics snapshot", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to read metrics",
		})
	}

	if h.cache != nil {
		h.cache.SetMetricsSnapshot(ctx, snapshot)
	}

	return c.JSON(snapshot)
}
