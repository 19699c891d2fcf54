package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/liloman25879/spring-vote-app/internal/middleware"
	"github.com/liloman25879/spring-vote-app/internal/model"
	"github.com/liloman25879/spring-vote-app/internal/service"
)

type TaskHandler struct {
	svc *service.CatalogService
}

func NewTaskHandler(svc *service.CatalogService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// List handles GET /api/tasks
func (h *TaskHandler) List(c fiber.Ctx) error {
	tasks, err := h.svc.All(c.Context())
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list tasks")
	}
	return c.JSON(model.TaskListResponse{Tasks: tasks})
}

// Propose handles POST /api/tasks
func (h *TaskHandler) Propose(c fiber.Ctx) error {
	var req model.ProposeTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}

	name, errMsg := middleware.ValidateTaskName(req.Name)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	req.Name = name

	desc, errMsg := middleware.ValidateDescription(req.Description)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	req.Description = desc

	proposedBy, errMsg := middleware.ValidateUserName(req.ProposedBy)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", "proposedBy is required")
	}
	req.ProposedBy = proposedBy

	for _, crit := range []struct {
		name string
		v    int
	}{
		{"cost", req.Cost},
		{"complexity", req.Complexity},
		{"interest", req.Interest},
	} {
		if errMsg := middleware.ValidateCriterion(crit.name, crit.v); errMsg != "" {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
		}
	}

	task, err := h.svc.Propose(c.Context(), req)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store task")
	}

	Metrics.ProposalsTotal.Inc()
	return c.Status(fiber.StatusCreated).JSON(task)
}
