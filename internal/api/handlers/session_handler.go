package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/infra-assist/backend/internal/session"
)

type SessionHandler struct {
	sessions *session.Manager
}

func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	s := h.sessions.NewSession()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": s.ID,
		"created_at": s.CreatedAt,
	})
}

func (h *SessionHandler) GetHistory(c *fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": s.ID,
		"turns":      s.History(),
	})
}

// ClearHistory drops the conversation turns but keeps the session usable.
func (h *SessionHandler) ClearHistory(c *fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	s.Clear()
	return c.JSON(fiber.Map{
		"session_id": s.ID,
		"status":     "cleared",
	})
}

func (h *SessionHandler) EndSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, ok := h.sessions.Get(id); !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	h.sessions.End(id)
	return c.JSON(fiber.Map{
		"session_id": id,
		"status":     "ended",
	})
}
