package handler

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/liloman25879/spring-vote-app/internal/middleware"
	"github.com/liloman25879/spring-vote-app/internal/model"
	"github.com/liloman25879/spring-vote-app/internal/service"
)

type AdminHandler struct {
	svc    *service.AdminService
	budget model.TokenLedger
}

func NewAdminHandler(svc *service.AdminService, budget model.TokenLedger) *AdminHandler {
	return &AdminHandler{svc: svc, budget: budget}
}

// Reset handles POST /api/admin/reset/:userId
func (h *AdminHandler) Reset(c fiber.Ctx) error {
	userID, errMsg := middleware.ValidateUserID(c.Params("userId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	ledger, err := h.svc.ResetUser(c.Context(), userID)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reset user")
	}

	Metrics.ResetsTotal.Inc()
	return c.JSON(model.TokensResponse{UserID: userID, Tokens: ledger})
}

// Users handles GET /api/admin/users
func (h *AdminHandler) Users(c fiber.Ctx) error {
	entries, err := h.svc.Users(c.Context(), h.budget)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users")
	}
	return c.JSON(fiber.Map{"users": entries})
}

// Export handles GET /api/admin/export
// Returns the full dataset as JSON for offline backup.
func (h *AdminHandler) Export(c fiber.Ctx) error {
	snapshot, err := h.svc.Export(c.Context())
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to export data")
	}

	filename := "springvote_export_" + time.Now().UTC().Format("20060102_150405") + ".json"
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.JSON(snapshot)
}
