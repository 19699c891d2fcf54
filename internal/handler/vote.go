package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/liloman25879/spring-vote-app/internal/middleware"
	"github.com/liloman25879/spring-vote-app/internal/model"
	"github.com/liloman25879/spring-vote-app/internal/service"
)

type VoteHandler struct {
	svc *service.VoteService
}

func NewVoteHandler(svc *service.VoteService) *VoteHandler {
	return &VoteHandler{svc: svc}
}

// Cast handles POST /api/votes
func (h *VoteHandler) Cast(c fiber.Ctx) error {
	var req model.CastRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}

	userName, errMsg := middleware.ValidateUserName(req.UserName)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	taskID, taskName, errMsg := middleware.ValidateTaskRef(req.TaskID, req.TaskName)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	if errMsg := middleware.ValidateScore(req.Score); errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	res, err := h.svc.Cast(c.Context(), userName, taskID, taskName, req.Score)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record vote")
	}

	Metrics.CastsTotal.WithLabelValues(string(res.Outcome)).Inc()

	resp := model.CastResponse{Outcome: res.Outcome, Vote: res.Vote, Tokens: res.Tokens}
	switch res.Outcome {
	case model.OutcomeInsufficientTokens:
		resp.Message = "No tokens left in that tier. Correct or reset an existing vote first."
		return c.Status(fiber.StatusConflict).JSON(resp)
	case model.OutcomeStorageError:
		resp.Message = "Vote could not be stored, nothing was charged."
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	default:
		return c.JSON(resp)
	}
}
