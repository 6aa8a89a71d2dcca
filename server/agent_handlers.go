package server

import (
	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleAgentState(c *fiber.Ctx) error {
	state, err := s.svc.GetAgentState(c.Params("user_id"))
	if err != nil {
		return internalError(err)
	}

	return c.JSON(state)
}

func (s *Server) handleConversationHistory(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	messages, err := s.svc.GetConversationHistory(userID)
	if err != nil {
		return internalError(err)
	}

	return c.JSON(fiber.Map{
		"user_id":  userID,
		"messages": messages,
		"count":    len(messages),
	})
}

type resetRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleConversationReset(c *fiber.Ctx) error {
	var req resetRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}

	if err := s.svc.Reset(req.UserID); err != nil {
		return internalError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "conversation reset",
	})
}
