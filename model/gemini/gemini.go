// Package gemini implements the Model interface against the Google Gemini
// generateContent REST API. The API has no official Go SDK; a plain HTTP
// client with goccy/go-json keeps the dependency surface small.
package gemini

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/fincoach/fincoach/core"
	"github.com/fincoach/fincoach/model"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Config holds provider settings.
type Config struct {
	// APIKey authenticates against Google AI Studio (required).
	APIKey string
	// ModelID selects the model, e.g. "gemini-2.0-flash-exp".
	ModelID string
	// Temperature for sampling; 0 leaves the service default.
	Temperature float64
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Model talks to the Gemini generateContent endpoint.
type Model struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// New creates a Gemini-backed Model.
func New(cfg Config) (*Model, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("gemini: model id is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	return &Model{cfg: cfg, baseURL: baseURL, httpClient: httpClient}, nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.cfg.ModelID, Provider: "gemini", SupportsTools: true}
}

// generateContent wire types, the subset the service uses.

type geminiRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	Tools             []geminiTool      `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text         string            `json:"text,omitempty"`
	FunctionCall *functionCall     `json:"functionCall,omitempty"`
	FunctionResp *functionResponse `json:"functionResponse,omitempty"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type functionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type generationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements model.Model. A single generateContent call is made and
// the final response delivered on the channel.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		out, err := m.generateContent(ctx, req)
		if err != nil {
			errCh <- err
			return
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- *out:
		}
	}()

	return respCh, errCh
}

func (m *Model) generateContent(ctx context.Context, req model.Request) (*model.Response, error) {
	payload, err := buildPayload(req, m.cfg.Temperature)
	if err != nil {
		return nil, err
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", m.baseURL, m.cfg.ModelID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", m.cfg.APIKey)

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}

	var out geminiResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		if out.Error != nil {
			return nil, fmt.Errorf("gemini: status %d: %s", httpResp.StatusCode, out.Error.Message)
		}
		return nil, fmt.Errorf("gemini: status %d: %s", httpResp.StatusCode, string(respBody))
	}

	if len(out.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: no candidates in response")
	}

	return toResponse(out), nil
}

func buildPayload(req model.Request, temperature float64) (*geminiRequest, error) {
	payload := &geminiRequest{}

	if temperature > 0 {
		t := temperature
		payload.GenerationConfig = &generationConfig{Temperature: &t}
	}

	if req.Instructions != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.Instructions}}}
	}

	for _, content := range req.Contents {
		gc, err := toGeminiContent(content)
		if err != nil {
			return nil, err
		}
		if len(gc.Parts) == 0 {
			continue
		}
		payload.Contents = append(payload.Contents, gc)
	}

	if len(payload.Contents) == 0 {
		return nil, fmt.Errorf("gemini: no message content to send")
	}

	if len(req.Tools) > 0 {
		tool := geminiTool{}
		for _, td := range req.Tools {
			tool.FunctionDeclarations = append(tool.FunctionDeclarations, functionDeclaration{
				Name:        td.Function.Name,
				Description: td.Function.Description,
				Parameters:  td.Function.Parameters,
			})
		}
		payload.Tools = []geminiTool{tool}
	}

	return payload, nil
}

// toGeminiContent maps unified parts to Gemini parts. Gemini uses the role
// "model" for assistant turns and expects functionResponse parts back under
// the "user" role.
func toGeminiContent(content core.Content) (geminiContent, error) {
	role := "user"
	if content.Role == "assistant" {
		role = "model"
	}

	gc := geminiContent{Role: role}
	for _, part := range content.Parts {
		switch p := part.(type) {
		case core.TextPart:
			if p.Text == "" {
				continue
			}
			gc.Parts = append(gc.Parts, geminiPart{Text: p.Text})

		case core.FunctionCallPart:
			args := map[string]any{}
			if p.FunctionCall.Arguments != "" {
				if err := json.Unmarshal([]byte(p.FunctionCall.Arguments), &args); err != nil {
					return geminiContent{}, fmt.Errorf("gemini: decode function call args: %w", err)
				}
			}
			gc.Parts = append(gc.Parts, geminiPart{FunctionCall: &functionCall{
				Name: p.FunctionCall.Name,
				Args: args,
			}})

		case core.FunctionResponsePart:
			resp := map[string]any{}
			if p.FunctionResponse.Error != "" {
				resp["error"] = p.FunctionResponse.Error
			} else {
				switch r := p.FunctionResponse.Response.(type) {
				case map[string]any:
					resp = r
				default:
					resp["result"] = r
				}
			}
			gc.Parts = append(gc.Parts, geminiPart{FunctionResp: &functionResponse{
				Name:     p.FunctionResponse.Name,
				Response: resp,
			}})
		}
	}

	return gc, nil
}

func toResponse(out geminiResponse) *model.Response {
	candidate := out.Candidates[0]

	content := core.Content{Role: "assistant"}
	hasToolCall := false
	for _, part := range candidate.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			hasToolCall = true
			args, _ := json.Marshal(part.FunctionCall.Args)
			content.Parts = append(content.Parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        uuid.NewString(),
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			}})
		case part.Text != "":
			content.Parts = append(content.Parts, core.TextPart{Text: part.Text})
		}
	}

	finish := "stop"
	switch {
	case hasToolCall:
		finish = "tool_calls"
	case candidate.FinishReason == "MAX_TOKENS":
		finish = "length"
	}

	resp := &model.Response{
		ID:           uuid.NewString(),
		Partial:      false,
		Content:      content,
		FinishReason: finish,
	}

	if out.UsageMetadata != nil {
		resp.Usage = &model.TokenUsage{
			PromptTokens:     out.UsageMetadata.PromptTokenCount,
			CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      out.UsageMetadata.TotalTokenCount,
		}
	}

	return resp
}
