package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Config gates the upload endpoint's content type and raw body size
// ahead of the (expensive) C1 per-message validator — rejecting an
// oversized or wrongly-typed payload here means C1 never has to parse
// it.
type Config struct {
	MaxFileSize         int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware enforces Content-Type and MAX_FILE_SIZE (spec.md §6) on
// POST/PUT requests before the handler's JSON decode runs.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = 50 * 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		contentType := c.Get("Content-Type")
		if contentType != "" {
			allowed := false
			for _, allowedType := range cfg.AllowedContentTypes {
				if strings.Contains(contentType, allowedType) {
					allowed = true
					break
				}
			}
			if !allowed {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "unsupported content type",
				})
			}
		}

		if len(c.Body()) > cfg.MaxFileSize {
			cfg.Logger.Warn("Upload rejected: exceeds MAX_FILE_SIZE",
				zap.Int("size", len(c.Body())),
				zap.Int("max_file_size", cfg.MaxFileSize),
				zap.String("ip", c.IP()),
			)
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "upload exceeds maximum file size",
			})
		}

		return c.Next()
	}
}
