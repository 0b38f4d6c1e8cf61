package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/infra-assist/backend/internal/query"
	"github.com/infra-assist/backend/pkg/logger"
)

type FeedbackHandler struct {
	queryEngine *query.Engine
}

func NewFeedbackHandler(queryEngine *query.Engine) *FeedbackHandler {
	return &FeedbackHandler{
		queryEngine: queryEngine,
	}
}

// HandleFeedback records the verdict on an answer. A negative verdict with
// regenerate=true re-runs the query and returns the new answer.
func (h *FeedbackHandler) HandleFeedback(c *fiber.Ctx) error {
	var req struct {
		QueryID    string `json:"query_id"`
		Helpful    bool   `json:"helpful"`
		Comment    string `json:"comment"`
		Regenerate bool   `json:"regenerate"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.QueryID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query_id is required",
		})
	}

	if err := h.queryEngine.RecordFeedback(req.QueryID, req.Helpful, req.Comment); err != nil {
		logger.Error("Failed to record feedback", zap.String("query_id", req.QueryID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record feedback",
		})
	}

	if !req.Helpful && req.Regenerate {
		response, err := h.queryEngine.Regenerate(c.Context(), req.QueryID)
		if err != nil {
			logger.Error("Failed to regenerate answer", zap.String("query_id", req.QueryID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to regenerate answer",
			})
		}
		return c.JSON(fiber.Map{
			"status":   "recorded",
			"response": response,
		})
	}

	return c.JSON(fiber.Map{
		"status": "recorded",
	})
}
