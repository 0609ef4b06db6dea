package handlers

import (
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/powerpulse/analyzer/internal/orchestrator"
	"github.com/powerpulse/analyzer/pkg/logger"
)

// UploadHandler implements the C10-facing half of the HTTP surface:
// accept an upload, return synchronously, and allow cancellation
// (spec.md §6). Progress is served by ProgressHandler.
type UploadHandler struct {
	orchestrator *orchestrator.Orchestrator
}

func NewUploadHandler(o *orchestrator.Orchestrator) *UploadHandler {
	return &UploadHandler{orchestrator: o}
}

// HandleUpload implements POST /api/upload-json.
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file is required",
		})
	}

	f, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded file", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "could not open uploaded file",
		})
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		logger.Error("Failed to read uploaded file", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "could not read uploaded file",
		})
	}

	forceReprocess, _ := strconv.ParseBool(c.FormValue("force_reprocess", "false"))

	uploadID, err := h.orchestrator.StartUpload(data, forceReprocess)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"upload_id":              uploadID,
		"success":                true,
		"conversations_processed": 0,
		"messages_processed":      0,
	})
}

// HandleCancel implements POST /api/cancel/{upload_id}.
func (h *UploadHandler) HandleCancel(c *fiber.Ctx) error {
	uploadID := c.Params("upload_id")
	if ok := h.orchestrator.Cancel(uploadID); !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown or already finished upload_id",
		})
	}
	return c.JSON(fiber.Map{"cancelled": true, "upload_id": uploadID})
}
