package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/gatherly/notify/internal/domain"
)

const readinessTimeout = 2 * time.Second

// AdapterRegistry is the readiness view over configured channel adapters.
type AdapterRegistry interface {
	AvailableChannels() []domain.Channel
}

// RegisterHealthRoutes wires liveness and readiness probes. rdb may be nil
// when no shared rate limiter is configured; the check is skipped then.
func RegisterHealthRoutes(app fiber.Router, registry AdapterRegistry, rdb *redis.Client) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(registry, rdb))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

// ReadyzHandler reports ready while at least one adapter is configured and,
// when present, Redis answers a ping.
func ReadyzHandler(registry AdapterRegistry, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		checks := fiber.Map{}
		ready := true

		adaptersStatus := "ok"
		if registry == nil || len(registry.AvailableChannels()) == 0 {
			adaptersStatus = "down"
			ready = false
		}
		checks["adapters"] = adaptersStatus

		if rdb != nil {
			ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
			defer cancel()

			redisStatus := "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				redisStatus = "down"
				ready = false
			}
			checks["redis"] = redisStatus
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if !ready {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
