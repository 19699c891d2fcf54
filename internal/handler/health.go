package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/liloman25879/spring-vote-app/internal/store"
)

type HealthHandler struct {
	st      store.Store
	startAt time.Time
}

func NewHealthHandler(st store.Store) *HealthHandler {
	return &HealthHandler{
		st:      st,
		startAt: time.Now(),
	}
}

// Live handles GET /health/live — liveness probe.
func (h *HealthHandler) Live(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready handles GET /health/ready — readiness probe with a storage check.
func (h *HealthHandler) Ready(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	storeCheck := checkStore(ctx, h.st)
	overallStatus := "healthy"
	if storeCheck["status"] != "up" {
		overallStatus = "degraded"
	}

	resp := fiber.Map{
		"status":         overallStatus,
		"checks":         fiber.Map{"store": storeCheck},
		"uptime_seconds": int(time.Since(h.startAt).Seconds()),
		"version":        "1.0.0",
	}

	status := fiber.StatusOK
	if overallStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(resp)
}

func checkStore(ctx context.Context, st store.Store) fiber.Map {
	start := time.Now()
	err := st.Ping(ctx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return fiber.Map{
			"status":     "down",
			"backend":    st.Backend(),
			"latency_ms": latency,
			"error":      "connection failed",
		}
	}
	return fiber.Map{
		"status":     "up",
		"backend":    st.Backend(),
		"latency_ms": latency,
	}
}
