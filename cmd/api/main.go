package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gatherly/notify/internal/adapter"
	"github.com/gatherly/notify/internal/config"
	"github.com/gatherly/notify/internal/delivery"
	"github.com/gatherly/notify/internal/handler"
	"github.com/gatherly/notify/internal/observability"
	"github.com/gatherly/notify/internal/ratelimit"
	"github.com/gatherly/notify/internal/scheduler"
	"github.com/gatherly/notify/internal/template"
	"github.com/gatherly/notify/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	registry := adapter.NewRegistry(
		adapter.NewEmailAdapter(cfg.SendGridAPIKey, cfg.EmailFrom),
		adapter.NewTelegramAdapter(cfg.TelegramBotToken),
		adapter.NewWhatsAppAdapter(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber),
		adapter.NewSMSAdapter(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber),
	)
	for _, ch := range registry.AvailableChannels() {
		logger.Info("channel adapter configured", zap.String("channel", ch.String()))
	}

	catalog := template.DefaultCatalog()
	renderer, err := template.NewRenderer(catalog)
	if err != nil {
		logger.Fatal("renderer initialization failed", zap.Error(err))
	}

	deliverySvc, err := delivery.NewService(registry, delivery.Options{
		MaxChunkLength:    cfg.MaxChunkLength,
		MaxRetries:        cfg.SendMaxRetries,
		BaseDelay:         time.Duration(cfg.SendBaseDelayMillis) * time.Millisecond,
		BackoffMultiplier: cfg.SendBackoffMultiplier,
	}, logger)
	if err != nil {
		logger.Fatal("delivery service initialization failed", zap.Error(err))
	}
	deliverySvc.SetMetrics(metrics)

	var rdb *goredis.Client
	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		rdb, err = ratelimit.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()

		limiter, err = ratelimit.NewRedisLimiter(rdb, cfg.RateLimitPerMinute)
		if err != nil {
			logger.Fatal("rate limiter initialization failed", zap.Error(err))
		}
		logger.Info("using shared redis rate limiter")
	} else {
		limiter = ratelimit.NewWindowLimiter(cfg.RateLimitPerMinute)
		logger.Info("using in-process rate limiter")
	}

	sched := scheduler.NewScheduler(deliverySvc, limiter, scheduler.Options{
		MaxConcurrent: cfg.MaxConcurrent,
		MaxAttempts:   cfg.MaxAttempts,
		RetryDelay:    time.Duration(cfg.RetryDelayMillis) * time.Millisecond,
	}, logger)
	sched.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, registry, rdb)
	if err := handler.RegisterMessageRoutes(app, sched, renderer, catalog); err != nil {
		logger.Fatal("message route registration failed", zap.Error(err))
	}
	if err := handler.RegisterQueueRoutes(app, sched); err != nil {
		logger.Fatal("queue route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("shutdown with error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
