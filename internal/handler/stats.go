package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/liloman25879/spring-vote-app/internal/middleware"
	"github.com/liloman25879/spring-vote-app/internal/service"
)

type StatsHandler struct {
	svc *service.StatsService
}

func NewStatsHandler(svc *service.StatsService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// Global handles GET /api/stats
func (h *StatsHandler) Global(c fiber.Ctx) error {
	stats, err := h.svc.Global(c.Context())
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch statistics")
	}
	return c.JSON(stats)
}

// Rankings handles GET /api/stats/rankings
func (h *StatsHandler) Rankings(c fiber.Ctx) error {
	scores, err := h.svc.Rankings(c.Context())
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch rankings")
	}
	return c.JSON(fiber.Map{"rankings": scores})
}

// Top handles GET /api/stats/top
func (h *StatsHandler) Top(c fiber.Ctx) error {
	n := fiber.Query[int](c, "n", 5)
	if n < 1 || n > 50 {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_PARAM", "n must be between 1 and 50")
	}

	scores, err := h.svc.Top(c.Context(), n)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch top tasks")
	}
	return c.JSON(fiber.Map{"top": scores})
}
