package validation

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(cfg Config) *fiber.App {
	app := fiber.New(fiber.Config{DisablePreParseMultipartForm: true})
	app.Use(Middleware(cfg))
	app.Post("/upload", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app
}

func TestMiddlewareAllowsMultipartUpload(t *testing.T) {
	app := newTestApp(Config{MaxFileSize: 1024, AllowedContentTypes: []string{"multipart/form-data"}, Logger: zap.NewNop()})

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString("small body"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestMiddlewareRejectsWrongContentType(t *testing.T) {
	app := newTestApp(Config{MaxFileSize: 1024, AllowedContentTypes: []string{"multipart/form-data"}, Logger: zap.NewNop()})

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString("x"))
	req.Header.Set("Content-Type", "text/plain")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestMiddlewareRejectsOversizedBody(t *testing.T) {
	app := newTestApp(Config{MaxFileSize: 4, AllowedContentTypes: []string{"multipart/form-data"}, Logger: zap.NewNop()})

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString("way too large a body"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestMiddlewarePassesThroughNonWriteMethods(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware(Config{MaxFileSize: 1, AllowedContentTypes: []string{"multipart/form-data"}, Logger: zap.NewNop()}))
	app.Get("/upload", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/upload", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
