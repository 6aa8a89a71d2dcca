package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fincoach/fincoach/finance"
)

type budgetCalculateRequest struct {
	MonthlyIncome float64 `json:"monthly_income"`
}

func (s *Server) handleBudgetCalculate(c *fiber.Ctx) error {
	var req budgetCalculateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}

	breakdown, err := finance.CalculateBudget(req.MonthlyIncome)
	if err != nil {
		return badRequest(err.Error())
	}

	return c.JSON(breakdown)
}

type budgetChartRequest struct {
	Data  map[string]float64 `json:"data"`
	Title string             `json:"title"`
}

func (s *Server) handleBudgetChart(c *fiber.Ctx) error {
	var req budgetChartRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}

	chart, err := finance.PrepareChart(req.Data, req.Title)
	if err != nil {
		return badRequest(err.Error())
	}

	return c.JSON(chart)
}

func (s *Server) handleBudgetSampleData(c *fiber.Ctx) error {
	return c.JSON(finance.SampleSpendingData())
}
