package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fincoach/fincoach/core"
)

// ToolCall is a function invocation the model asked for, normalized so flow
// code never branches per provider.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // always "function"
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction names the target function and carries its raw JSON
// argument payload.
type ToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition advertises one callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // always "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a tool's name, purpose and parameter schema.
// Parameters is a minimal JSON Schema object.
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Request is the normalized model input a flow assembles: system
// instructions, the conversation window, the advertised tools and whether
// the caller wants streamed partials.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage reports prompt and completion token counts for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is one chunk of model output. Partial chunks carry streamed text
// deltas; the final chunk carries the complete content and a finish reason
// ("stop", "length", "tool_calls").
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"`
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info identifies a model implementation and its capabilities.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "bedrock", "gemini", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the generation interface flows and agents drive. Generate returns
// a response stream and an error stream; both close when the call finishes.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)
	Info() Info
}

const mockStreamBuffer = 16

// MockModel replays canned completions keyed on the latest user text. Tests
// use it to script deterministic assistant turns without a live provider.
type MockModel struct {
	info      Info
	responses map[string]string
}

// NewMockModel builds a mock that reports tool support so function-calling
// paths stay exercised in tests.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse maps a prompt to the completion the mock will return for it.
// Prompts are matched against the text of the last content in the request.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// Generate implements Model. When streaming is requested it emits the
// completion one rune at a time as partials before the final chunk, which
// mirrors how the real providers deliver text deltas.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, mockStreamBuffer)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}

		prompt := promptText(req.Contents[len(req.Contents)-1])
		completion, ok := m.responses[prompt]
		if !ok || completion == "" {
			completion = fmt.Sprintf("Mock response to: %s", prompt)
		}

		if req.Stream {
			for _, r := range completion {
				chunk := Response{
					Partial: true,
					Content: assistantText(string(r)),
				}
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- chunk:
				}
			}
		}

		respCh <- Response{
			Partial:      false,
			Content:      assistantText(completion),
			FinishReason: "stop",
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

// promptText concatenates the text parts of a content, which is what the
// mock keys its canned completions on.
func promptText(c core.Content) string {
	var out string
	for _, p := range c.Parts {
		if tp, ok := p.(core.TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

func assistantText(text string) core.Content {
	return core.Content{
		Role:  "assistant",
		Parts: []core.Part{core.TextPart{Text: text}},
	}
}
