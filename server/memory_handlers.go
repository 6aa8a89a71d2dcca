package server

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fincoach/fincoach/core"
)

type memoryStoreRequest struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

type memoryRetrieveRequest struct {
	UserID     string  `json:"user_id"`
	Query      string  `json:"query"`
	MinScore   float64 `json:"min_score"`
	MaxResults int     `json:"max_results"`
}

type memoryPayload struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Score     float64        `json:"score"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func toMemoryPayloads(results []core.SearchResult) []memoryPayload {
	out := make([]memoryPayload, 0, len(results))
	for _, r := range results {
		out = append(out, memoryPayload{
			ID:        r.ID,
			Content:   r.Content,
			Score:     r.Score,
			Metadata:  r.Metadata,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}

func (s *Server) handleMemoryStore(c *fiber.Ctx) error {
	var req memoryStoreRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	if req.Content == "" {
		return badRequest("content is required")
	}

	if err := s.svc.StoreMemory(c.UserContext(), req.UserID, req.Content); err != nil {
		return internalError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "memory stored",
	})
}

func (s *Server) handleMemoryRetrieve(c *fiber.Ctx) error {
	var req memoryRetrieveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	if req.Query == "" {
		return badRequest("query is required")
	}

	results, err := s.svc.RetrieveMemories(c.UserContext(), req.UserID, req.Query, req.MinScore, req.MaxResults)
	if err != nil {
		return internalError(err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"memories": toMemoryPayloads(results),
		"count":    len(results),
	})
}

func (s *Server) handleMemoryList(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	results, err := s.svc.ListMemories(c.UserContext(), userID)
	if err != nil {
		return internalError(err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"memories": toMemoryPayloads(results),
		"count":    len(results),
		"user_id":  userID,
	})
}

type initializePreferencesRequest struct {
	UserID      string `json:"user_id"`
	Preferences string `json:"preferences"`
}

func (s *Server) handlePreferencesInitialize(c *fiber.Ctx) error {
	var req initializePreferencesRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	if req.Preferences == "" {
		return badRequest("preferences is required")
	}

	if err := s.svc.InitializePreferences(c.UserContext(), req.UserID, req.Preferences); err != nil {
		return internalError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "preferences initialized",
	})
}
