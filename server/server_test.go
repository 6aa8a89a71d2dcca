package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincoach/fincoach/assistant"
	"github.com/fincoach/fincoach/engine"
	"github.com/fincoach/fincoach/memory"
	"github.com/fincoach/fincoach/model"
	"github.com/fincoach/fincoach/session"
)

func newTestServer() (*Server, *model.MockModel) {
	llm := model.NewMockModel("mock-llm", "mock")
	sessionStore := session.NewInMemoryStore()
	memoryStore := memory.NewInMemoryStore()

	eng := engine.New(
		engine.WithSessionStore(sessionStore),
		engine.WithMemoryStore(memoryStore),
	)
	svc := assistant.New(llm, eng, sessionStore, memoryStore)

	return New(svc, func(o *Options) {
		o.AppName = "fincoach-test"
		o.Version = "test"
	}), llm
}

func doJSON(t *testing.T, srv *Server, method, target string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}

	return resp, decoded
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer()

	resp, body := doJSON(t, srv, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "fincoach-test", body["app_name"])
}

func TestChatEndpoint(t *testing.T) {
	srv, llm := newTestServer()
	llm.AddResponse("How do I start budgeting?", "Start with the 50/30/20 rule.")

	resp, body := doJSON(t, srv, http.MethodPost, "/api/v1/chat", map[string]any{
		"message":    "How do I start budgeting?",
		"user_id":    "u1",
		"agent_type": "financial",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Start with the 50/30/20 rule.", body["response"])
	assert.Equal(t, "financial", body["agent_type"])
	assert.Equal(t, "u1", body["user_id"])
}

func TestChatEndpoint_Validation(t *testing.T) {
	srv, _ := newTestServer()

	resp, body := doJSON(t, srv, http.MethodPost, "/api/v1/chat", map[string]any{
		"user_id": "u1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "bad_request", body["error"])

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	raw, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestChatEndpoint_UnknownAgent(t *testing.T) {
	srv, _ := newTestServer()

	resp, body := doJSON(t, srv, http.MethodPost, "/api/v1/chat", map[string]any{
		"message":    "hi",
		"agent_type": "psychic",
	})

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal_error", body["error"])
	assert.Contains(t, body["message"], "unknown agent type")
}

func TestMemoryEndpoints(t *testing.T) {
	srv, _ := newTestServer()

	resp, body := doJSON(t, srv, http.MethodPost, "/api/v1/memory/store", map[string]any{
		"user_id": "u1",
		"content": "Saving for a vacation in June",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, body = doJSON(t, srv, http.MethodPost, "/api/v1/memory/retrieve", map[string]any{
		"user_id": "u1",
		"query":   "vacation",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	resp, body = doJSON(t, srv, http.MethodGet, "/api/v1/memory/list/u1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, "u1", body["user_id"])

	resp, _ = doJSON(t, srv, http.MethodPost, "/api/v1/memory/store", map[string]any{
		"user_id": "u1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPreferencesInitialize(t *testing.T) {
	srv, _ := newTestServer()

	resp, body := doJSON(t, srv, http.MethodPost, "/api/v1/preferences/initialize", map[string]any{
		"user_id":     "u1",
		"preferences": "prefers sustainable funds",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, _ = doJSON(t, srv, http.MethodPost, "/api/v1/preferences/initialize", map[string]any{
		"user_id": "u1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBudgetEndpoints(t *testing.T) {
	srv, _ := newTestServer()

	resp, body := doJSON(t, srv, http.MethodPost, "/api/v1/budget/calculate", map[string]any{
		"monthly_income": 5000,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	needs := body["needs"].(map[string]any)
	assert.Equal(t, 2500.0, needs["amount"])

	resp, _ = doJSON(t, srv, http.MethodPost, "/api/v1/budget/calculate", map[string]any{
		"monthly_income": -1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, srv, http.MethodPost, "/api/v1/budget/chart", map[string]any{
		"data":  map[string]float64{"Housing": 1500, "Food": 600},
		"title": "Spending",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Spending", body["title"])
	assert.Equal(t, 2100.0, body["total"])

	resp, body = doJSON(t, srv, http.MethodGet, "/api/v1/budget/sample-data", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 4250.0, body["total"])
}

func TestPortfolioEndpoints(t *testing.T) {
	srv, llm := newTestServer()
	llm.AddResponse("Build me a growth portfolio", "Portfolio plan ready.")

	resp, body := doJSON(t, srv, http.MethodPost, "/api/v1/portfolio/orchestrate", map[string]any{
		"user_id": "u1",
		"request": "Build me a growth portfolio",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Portfolio plan ready.", body["response"])

	resp, body = doJSON(t, srv, http.MethodGet, "/api/v1/portfolio/data?user_id=u1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, body = doJSON(t, srv, http.MethodGet, "/api/v1/portfolio/visualizations/u1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["count"])

	resp, body = doJSON(t, srv, http.MethodDelete, "/api/v1/portfolio/cache", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
}

func TestConversationEndpoints(t *testing.T) {
	srv, llm := newTestServer()
	llm.AddResponse("hello", "hi there")

	_, _ = doJSON(t, srv, http.MethodPost, "/api/v1/chat", map[string]any{
		"message": "hello",
		"user_id": "u1",
	})

	resp, body := doJSON(t, srv, http.MethodGet, "/api/v1/conversation/u1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["count"])

	resp, body = doJSON(t, srv, http.MethodPost, "/api/v1/conversation/reset", map[string]any{
		"user_id": "u1",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, body = doJSON(t, srv, http.MethodGet, "/api/v1/conversation/u1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["count"])
}

func TestAgentStateEndpoint(t *testing.T) {
	srv, _ := newTestServer()

	resp, body := doJSON(t, srv, http.MethodGet, "/api/v1/agent/state/u1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "agent_u1", body["agent_id"])
	assert.Contains(t, body["available_tools"], "manage_memory")
}
