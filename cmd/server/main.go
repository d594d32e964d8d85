// Package main boots the wallet backend: configuration, Postgres and
// Redis, the fiber app, the route graph, and the background workers
// (exchange-rate refresher, guard sweeps).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"

	"qrwallet/internal/config"
	"qrwallet/internal/handlers"
	"qrwallet/internal/repositories"
	"qrwallet/internal/routes"
	"qrwallet/internal/utils/logger"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	log := logger.Init(cfg.Env, config.GetEnv("LOG_LEVEL", "info"))
	defer logger.Sync()

	if !cfg.ServiceReady(config.ServiceAuth) {
		log.Fatal("JWT_SECRET is not configured")
	}

	if err := repositories.InitDB(); err != nil {
		log.Fatal("database initialization failed", zap.Error(err))
	}
	defer closeStores(log)

	app := fiber.New(fiber.Config{
		AppName:      "qrwallet",
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: config.GetEnv("CORS_ORIGINS", "*"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Idempotency-Key",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
	}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Per-IP burst limiter on the unauthenticated surface. This is the
	// process-local defense-in-depth layer; the persistent per-user
	// limiter inside the services is the source of truth.
	for _, path := range []string{"/api/auth/register", "/api/auth/login", "/webhooks"} {
		app.Use(path, limiter.New(limiter.Config{
			Max:        config.GetIntEnv("IP_BURST_MAX", 30),
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": fiber.Map{
						"code":    "RATE_LIMIT_EXCEEDED",
						"message": "too many requests, slow down",
					},
				})
			},
		}))
	}

	wired := routes.Setup(app, repositories.DB, repositories.CacheService, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wired.Exchange.StartRefresher(ctx)
	go sweepGuards(ctx, wired, log)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()
	log.Info("server listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("shutdown did not finish cleanly", zap.Error(err))
	}
}

// sweepGuards garbage-collects expired idempotency keys and stale
// rate-limit windows on a fixed cadence.
func sweepGuards(ctx context.Context, wired *routes.App, log *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if n, err := wired.Idempotency.Sweep(now); err != nil {
				log.Warn("idempotency sweep failed", zap.Error(err))
			} else if n > 0 {
				log.Info("swept idempotency keys", zap.Int64("removed", n))
			}
			if n, err := wired.RateLimit.Sweep(now.Add(-24 * time.Hour)); err != nil {
				log.Warn("rate limit sweep failed", zap.Error(err))
			} else if n > 0 {
				log.Info("swept rate limit windows", zap.Int64("removed", n))
			}
		}
	}
}

func closeStores(log *zap.Logger) {
	if repositories.DB != nil {
		if sqlDB, err := repositories.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Warn("closing database failed", zap.Error(err))
			}
		}
	}
	if repositories.CacheService != nil {
		if err := repositories.CacheService.Close(); err != nil {
			log.Warn("closing redis failed", zap.Error(err))
		}
	}
}
