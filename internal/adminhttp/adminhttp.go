// Package adminhttp exposes a minimal operational HTTP surface (currently just /healthz) alongside the TCP chat
// listener. It carries no chat semantics of its own.
package adminhttp

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// New builds a fiber.App exposing GET /healthz, which pings Postgres and Valkey/Redis and reports 200 when both
// are reachable, 503 otherwise.
func New(db *pgxpool.Pool, rdb *redis.Client) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/healthz", func(c fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()

		pgStatus := "ok"
		if err := db.Ping(ctx); err != nil {
			pgStatus = "unavailable"
		}

		valkeyStatus := "ok"
		if err := rdb.Ping(ctx).Err(); err != nil {
			valkeyStatus = "unavailable"
		}

		status := fiber.StatusOK
		overall := "ok"
		if pgStatus != "ok" || valkeyStatus != "ok" {
			status = fiber.StatusServiceUnavailable
			overall = "degraded"
		}

		return c.Status(status).JSON(fiber.Map{
			"status":   overall,
			"postgres": pgStatus,
			"valkey":   valkeyStatus,
		})
	})

	return app
}
