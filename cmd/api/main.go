package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sydialogue/dashboard/internal/api"
	"github.com/sydialogue/dashboard/internal/api/handlers"
	"github.com/sydialogue/dashboard/internal/bootstrap"
	"github.com/sydialogue/dashboard/internal/metrics"
	"github.com/sydialogue/dashboard/internal/middleware/ratelimit"
	"github.com/sydialogue/dashboard/internal/middleware/validation"
	"github.com/sydialogue/dashboard/pkg/config"
	appLogger "github.com/sydialogue/dashboard/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(appLogger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
		Service:    "dashboard-api",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting dashboard API server")

	metrics.Init()

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	components, err := bootstrap.New(startCtx, cfg)
	cancel()
	if err != nil {
		appLogger.Fatal("Failed to initialize components", zap.Error(err))
	}

	hub := handlers.NewWebSocketHandler(components.Service)
	components.Service.SetBroadcaster(hub)

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			Logger:            appLogger.GetLogger(),
		})
		defer limiter.Stop()
	}

	app := api.NewApp(api.Config{
		Service: components.Service,
		Hub:     hub,
		Checks:  components.Checks(),
		Limiter: limiter,
		Validation: validation.Config{
			MaxTargets:      cfg.Validation.MaxTargets,
			MaxTargetLength: cfg.Validation.MaxTargetLength,
			Logger:          appLogger.GetLogger(),
		},
		AllowOrigins:  cfg.Server.AllowOrigins,
		IsDevelopment: strings.EqualFold(cfg.Logging.Format, "console"),
		ReadTimeout:   time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:  time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:     cfg.Server.BodyLimit,
	})

	if view, ok := components.Service.CachedRelationships(context.Background()); ok {
		appLogger.Info("Loaded cached relationship map",
			zap.Int("relationships", len(view.Relationships)),
			zap.Int64("timestamp", view.Timestamp),
		)
	}

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
	if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := components.Close(closeCtx); err != nil {
		appLogger.Error("Failed to close components", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
