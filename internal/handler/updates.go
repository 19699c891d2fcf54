package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/liloman25879/spring-vote-app/internal/middleware"
	"github.com/liloman25879/spring-vote-app/internal/service"
)

type UpdatesHandler struct {
	svc *service.WatchService
}

func NewUpdatesHandler(svc *service.WatchService) *UpdatesHandler {
	return &UpdatesHandler{svc: svc}
}

// Poll handles GET /api/updates?since=WATERMARK
// Clients compare their last-seen watermark and refetch only on change.
func (h *UpdatesHandler) Poll(c fiber.Ctx) error {
	since := fiber.Query[string](c, "since")

	resp, err := h.svc.Changed(c.Context(), since)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to check for updates")
	}
	return c.JSON(resp)
}
