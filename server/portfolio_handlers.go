package server

import (
	"github.com/gofiber/fiber/v2"
)

type orchestrateRequest struct {
	UserID  string `json:"user_id"`
	Request string `json:"request"`
}

func (s *Server) handlePortfolioOrchestrate(c *fiber.Ctx) error {
	var req orchestrateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}

	result, err := s.svc.OrchestratePortfolio(c.UserContext(), req.UserID, req.Request)
	if err != nil {
		return internalError(err)
	}

	return c.JSON(result)
}

func (s *Server) handlePortfolioData(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	data := s.svc.PortfolioData(userID)

	return c.JSON(fiber.Map{
		"success":    true,
		"portfolios": data,
		"count":      len(data),
	})
}

func (s *Server) handlePortfolioVisualizations(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	charts := s.svc.Visualizations(userID)

	return c.JSON(fiber.Map{
		"success":        true,
		"visualizations": charts,
		"count":          len(charts),
	})
}

func (s *Server) handlePortfolioClearCache(c *fiber.Ctx) error {
	s.svc.ClearPortfolioCache()

	return c.JSON(fiber.Map{
		"success": true,
		"message": "portfolio cache cleared",
	})
}
