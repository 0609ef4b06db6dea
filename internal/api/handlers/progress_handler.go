package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/powerpulse/analyzer/internal/progress"
)

// ProgressHandler serves the C9 snapshot over plain HTTP polling
// (spec.md §6, GET /api/progress/{upload_id}) alongside the
// WebSocketHandler's streaming variant.
type ProgressHandler struct {
	tracker *progress.Tracker
}

func NewProgressHandler(tracker *progress.Tracker) *ProgressHandler {
	return &ProgressHandler{tracker: tracker}
}

func (h *ProgressHandler) HandleGetProgress(c *fiber.Ctx) error {
	uploadID := c.Params("upload_id")

	snapshot, ok := h.tracker.Get(uploadID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown upload_id",
		})
	}

	return c.JSON(snapshot)
}
