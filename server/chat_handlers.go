package server

import (
	"github.com/gofiber/fiber/v2"
)

type chatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	AgentType string `json:"agent_type"`
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	if req.Message == "" {
		return badRequest("message is required")
	}

	result, err := s.svc.Chat(c.UserContext(), req.UserID, req.Message, req.AgentType)
	if err != nil {
		return internalError(err)
	}

	return c.JSON(result)
}
