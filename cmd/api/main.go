package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/powerpulse/analyzer/internal/api/handlers"
	redisCache "github.com/powerpulse/analyzer/internal/cache/redis"
	"github.com/powerpulse/analyzer/internal/ingest"
	"github.com/powerpulse/analyzer/internal/llmadapter"
	"github.com/powerpulse/analyzer/internal/metrics"
	"github.com/powerpulse/analyzer/internal/middleware/ratelimit"
	"github.com/powerpulse/analyzer/internal/middleware/security"
	"github.com/powerpulse/analyzer/internal/middleware/validation"
	"github.com/powerpulse/analyzer/internal/orchestrator"
	"github.com/powerpulse/analyzer/internal/progress"
	"github.com/powerpulse/analyzer/internal/storage/sqlite"
	"github.com/powerpulse/analyzer/pkg/config"
	appLogger "github.com/powerpulse/analyzer/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting PowerPulse analyzer API server")

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cache *redisCache.Client
	if cfg.Redis.Enabled {
		cache, err = redisCache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without metric cache", zap.Error(err))
			cache = nil
		}
	}

	var provider llmadapter.Provider
	switch cfg.AI.Service {
	case "openai":
		provider = llmadapter.NewOpenAIProvider(cfg.AI.OpenAIAPIKey, cfg.AI.GPTModel)
	default:
		provider = llmadapter.NewGeminiProvider(cfg.AI.GeminiAPIKey, cfg.AI.GeminiModel)
	}

	validator := ingest.NewValidator(cfg.Pipeline.AutoresponseSentence, cfg.Pipeline.AutoresponseSubstring)
	tracker := progress.NewTracker()

	orch := orchestrator.New(sqliteClient, cache, tracker, validator, provider, orchestrator.Config{
		MaxTokensPerJob:   cfg.Pipeline.MaxTokensPerJob,
		BatchSize:         cfg.Pipeline.BatchSize,
		AIConcurrency:     cfg.Pipeline.AIConcurrency,
		MinInterCallDelay: time.Duration(cfg.Pipeline.MinInterCallDelayMS) * time.Millisecond,
		UploadTimeout:     time.Duration(cfg.Pipeline.UploadTimeoutMinutes) * time.Minute,
	})

	metrics.Init()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 60,
		WindowDuration:       time.Minute,
		Logger:               appLogger.Log,
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	uploadValidation := validation.Middleware(validation.Config{
		MaxFileSize:         cfg.Pipeline.MaxFileSize,
		AllowedContentTypes: []string{"multipart/form-data"},
		Logger:              appLogger.Log,
	})

	uploadHandler := handlers.NewUploadHandler(orch)
	progressHandler := handlers.NewProgressHandler(tracker)
	wsHandler := handlers.NewWebSocketHandler(tracker)
	csiHandler := handlers.NewCSIHandler(sqliteClient, cache)

	api := app.Group("/api")

	api.Post("/upload-json", uploadValidation, uploadHandler.HandleUpload)
	api.Post("/cancel/:upload_id", uploadHandler.HandleCancel)
	api.Get("/progress/:upload_id", progressHandler.HandleGetProgress)
	api.Get("/progress/ws/:upload_id", websocket.New(wsHandler.HandleProgress))
	api.Get("/metrics/csi", csiHandler.HandleGetCSI)

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
