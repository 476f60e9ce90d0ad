package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-kit/ticketd/internal/observability"
	"github.com/helpdesk-kit/ticketd/internal/persistence"
)

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	postgres    *persistence.Postgres
	redis       *persistence.Redis
	metrics     *observability.Metrics
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis, metrics *observability.Metrics) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, postgres: postgres, redis: redis, metrics: metrics}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports service readiness by checking dependencies. A missing
// postgres pool means the in-memory store is active, which is always ready.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	if h.postgres != nil && h.postgres.PoolHandle() != nil {
		if err := h.postgres.Ping(ctx); err != nil {
			depStatus["postgres"] = err.Error()
			ready = false
		} else {
			depStatus["postgres"] = "ok"
		}
	} else {
		depStatus["postgres"] = "in-memory"
	}

	if err := h.redis.Ping(ctx); err != nil {
		depStatus["redis"] = err.Error()
		ready = false
	} else {
		depStatus["redis"] = "ok"
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
			"counters":     h.metrics.Snapshot(),
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}
