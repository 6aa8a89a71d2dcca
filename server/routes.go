package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.handleHealth)

	v1 := s.app.Group("/api/v1")

	v1.Post("/chat", s.handleChat)

	v1.Post("/memory/store", s.handleMemoryStore)
	v1.Post("/memory/retrieve", s.handleMemoryRetrieve)
	v1.Get("/memory/list/:user_id", s.handleMemoryList)
	v1.Post("/preferences/initialize", s.handlePreferencesInitialize)

	v1.Post("/budget/calculate", s.handleBudgetCalculate)
	v1.Post("/budget/chart", s.handleBudgetChart)
	v1.Get("/budget/sample-data", s.handleBudgetSampleData)

	v1.Post("/portfolio/orchestrate", s.handlePortfolioOrchestrate)
	v1.Get("/portfolio/data", s.handlePortfolioData)
	v1.Get("/portfolio/visualizations/:user_id", s.handlePortfolioVisualizations)
	v1.Delete("/portfolio/cache", s.handlePortfolioClearCache)

	v1.Get("/agent/state/:user_id", s.handleAgentState)
	v1.Get("/conversation/:user_id", s.handleConversationHistory)
	v1.Post("/conversation/reset", s.handleConversationReset)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"app_name":  s.appName,
		"version":   s.version,
		"timestamp": time.Now().UTC(),
	})
}
