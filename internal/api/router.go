// Package api assembles the HTTP surface of the dashboard backend.
package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/sydialogue/dashboard/internal/analysis"
	"github.com/sydialogue/dashboard/internal/api/handlers"
	"github.com/sydialogue/dashboard/internal/dashboard"
	"github.com/sydialogue/dashboard/internal/metrics"
	"github.com/sydialogue/dashboard/internal/middleware/ratelimit"
	"github.com/sydialogue/dashboard/internal/middleware/security"
	"github.com/sydialogue/dashboard/internal/middleware/validation"
	"github.com/sydialogue/dashboard/pkg/logger"
)

type Config struct {
	Service *dashboard.Service
	Hub     *handlers.WebSocketHandler
	Checks  map[string]handlers.Check
	// Limiter is optional; nil disables rate limiting.
	Limiter    *ratelimit.RateLimiter
	Validation validation.Config

	AllowOrigins  string
	IsDevelopment bool
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	BodyLimit     int
}

func NewApp(cfg Config) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
	})

	allowOrigins := cfg.AllowOrigins
	if allowOrigins == "" {
		allowOrigins = "*"
	}

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Header: analysis.RequestIDHeader}))
	app.Use(requestLogger())
	app.Use(metrics.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, If-None-Match, X-Request-ID, X-Client-ID",
		AllowMethods:  "GET, POST, DELETE, OPTIONS",
		ExposeHeaders: "ETag, X-Request-ID",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: strings.Split(allowOrigins, ","),
		IsDevelopment:  cfg.IsDevelopment,
	}))

	limit := func(c *fiber.Ctx) error { return c.Next() }
	if cfg.Limiter != nil {
		limit = cfg.Limiter.Middleware()
	}

	sentimentHandler := handlers.NewSentimentHandler(cfg.Service)
	relationshipHandler := handlers.NewRelationshipHandler(cfg.Service)
	articleHandler := handlers.NewArticleHandler(cfg.Service)
	healthHandler := handlers.NewHealthHandler(cfg.Checks)

	v1 := app.Group("/api/v1")

	v1.Post("/sentiment", limit, validation.TargetsMiddleware(cfg.Validation), sentimentHandler.Analyze)

	v1.Get("/relationships", limit, relationshipHandler.Get)
	v1.Delete("/relationships/cache", limit, relationshipHandler.ClearCache)
	v1.Get("/relationships/entities", limit, relationshipHandler.Entities)

	v1.Get("/articles", limit, articleHandler.List)
	v1.Post("/articles/index", limit, articleHandler.Reindex)

	if cfg.Hub != nil {
		v1.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		v1.Get("/ws/relationships", websocket.New(cfg.Hub.HandleConnection))
	}

	v1.Get("/health", healthHandler.Health)
	v1.Get("/ready", healthHandler.Ready)

	app.Get("/metrics", metrics.MetricsHandler())

	return app
}

func requestLogger() fiber.Handler {
	log := logger.Named("http")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if id, ok := c.Locals("requestid").(string); ok {
			fields = append(fields, zap.String("request_id", id))
		}

		if status >= fiber.StatusInternalServerError {
			log.Warn("Request failed", fields...)
		} else {
			log.Debug("Request served", fields...)
		}
		return err
	}
}
