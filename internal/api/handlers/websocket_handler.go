package handlers

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/powerpulse/analyzer/internal/progress"
	"github.com/powerpulse/analyzer/pkg/logger"
)

const progressPollInterval = 500 * time.Millisecond

// WebSocketHandler streams live progress.Snapshot updates for one
// upload_id (spec.md §4.9/§5, GET /api/progress/ws/{upload_id}) until
// the upload reaches a terminal status or the client disconnects.
type WebSocketHandler struct {
	tracker *progress.Tracker
}

func NewWebSocketHandler(tracker *progress.Tracker) *WebSocketHandler {
	return &WebSocketHandler{tracker: tracker}
}

func (h *WebSocketHandler) HandleProgress(c *websocket.Conn) {
	uploadID := c.Params("upload_id")
	logger.Info("Progress WebSocket connection established", zap.String("upload_id", uploadID))

	defer func() {
		c.Close()
		logger.Info("Progress WebSocket connection closed", zap.String("upload_id", uploadID))
	}()

	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	for range ticker.C {
		snapshot, ok := h.tracker.Get(uploadID)
		if !ok {
			h.sendError(c, "unknown upload_id")
			return
		}

		if err := c.WriteJSON(snapshot); err != nil {
			logger.Debug("Progress WebSocket write failed, client likely disconnected",
				zap.String("upload_id", uploadID), zap.Error(err))
			return
		}

		if isTerminal(snapshot.Status) {
			return
		}
	}
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]string{"error": errorMsg})
}

func isTerminal(status progress.Status) bool {
	switch status {
	case progress.StatusCompleted, progress.StatusCompletedWithFilter, progress.StatusFailed, progress.StatusCancelled:
		return true
	default:
		return false
	}
}
