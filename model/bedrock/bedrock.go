// Package bedrock implements the Model interface against the AWS Bedrock
// Converse REST API. Requests are SigV4-signed with credentials resolved
// through the standard AWS configuration chain, so the provider works with
// env vars, shared config files and instance roles alike.
package bedrock

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/fincoach/fincoach/core"
	"github.com/fincoach/fincoach/model"
)

const defaultMaxTokens = 2048

// Config holds provider settings.
type Config struct {
	// ModelID is the Bedrock model identifier, e.g.
	// "anthropic.claude-3-5-sonnet-20240620-v1:0".
	ModelID string
	// Temperature for sampling; 0 leaves the service default.
	Temperature float64
	// MaxTokens caps the completion length. Defaults to 2048.
	MaxTokens int
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Model talks to Bedrock's Converse endpoint.
type Model struct {
	cfg        Config
	awsCfg     aws.Config
	httpClient *http.Client
	endpoint   string
}

// New creates a Model with an explicit AWS configuration.
func New(awsCfg aws.Config, cfg Config) (*Model, error) {
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("bedrock: model id is required")
	}
	if awsCfg.Region == "" {
		return nil, fmt.Errorf("bedrock: aws region is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	return &Model{
		cfg:        cfg,
		awsCfg:     awsCfg,
		httpClient: httpClient,
		endpoint:   fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com/model/%s/converse", awsCfg.Region, cfg.ModelID),
	}, nil
}

// NewFromDefaultConfig creates a Model using the default AWS credential chain.
func NewFromDefaultConfig(ctx context.Context, cfg Config) (*Model, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	return New(awsCfg, cfg)
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.cfg.ModelID, Provider: "bedrock", SupportsTools: true}
}

// Converse wire types. Only the subset of the API the service uses.

type converseRequest struct {
	Messages        []converseMessage `json:"messages"`
	System          []converseText    `json:"system,omitempty"`
	InferenceConfig *inferenceConfig  `json:"inferenceConfig,omitempty"`
	ToolConfig      *toolConfig       `json:"toolConfig,omitempty"`
}

type converseMessage struct {
	Role    string          `json:"role"`
	Content []contentBlock  `json:"content"`
}

type converseText struct {
	Text string `json:"text"`
}

type contentBlock struct {
	Text       string           `json:"text,omitempty"`
	ToolUse    *toolUseBlock    `json:"toolUse,omitempty"`
	ToolResult *toolResultBlock `json:"toolResult,omitempty"`
}

type toolUseBlock struct {
	ToolUseID string          `json:"toolUseId"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
}

type toolResultBlock struct {
	ToolUseID string              `json:"toolUseId"`
	Content   []toolResultContent `json:"content"`
	Status    string              `json:"status,omitempty"`
}

type toolResultContent struct {
	Text string         `json:"text,omitempty"`
	JSON map[string]any `json:"json,omitempty"`
}

type inferenceConfig struct {
	MaxTokens   int      `json:"maxTokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type toolConfig struct {
	Tools []toolEntry `json:"tools"`
}

type toolEntry struct {
	ToolSpec toolSpec `json:"toolSpec"`
}

type toolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema toolInputSchema `json:"inputSchema"`
}

type toolInputSchema struct {
	JSON map[string]any `json:"json"`
}

type converseResponse struct {
	Output struct {
		Message converseMessage `json:"message"`
	} `json:"output"`
	StopReason string `json:"stopReason"`
	Usage      struct {
		InputTokens  int `json:"inputTokens"`
		OutputTokens int `json:"outputTokens"`
		TotalTokens  int `json:"totalTokens"`
	} `json:"usage"`
}

// Generate implements model.Model. Bedrock Converse is called once per turn;
// the single final response is delivered on the channel, matching the
// non-streaming path flows already handle.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		out, err := m.converse(ctx, req)
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

func (m *Model) converse(ctx context.Context, req model.Request) (*model.Response, error) {
	payload, err := m.buildPayload(req)
	if err != nil {
		return nil, err
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("bedrock: marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("bedrock: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if err := m.sign(ctx, httpReq, bodyBytes); err != nil {
		return nil, err
	}

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("bedrock: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("bedrock: read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bedrock: status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var out converseResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("bedrock: decode response: %w", err)
	}

	return m.toResponse(out), nil
}

func (m *Model) sign(ctx context.Context, httpReq *http.Request, body []byte) error {
	creds, err := m.awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("bedrock: retrieve credentials: %w", err)
	}

	payloadHash := sha256.Sum256(body)
	hexHash := hex.EncodeToString(payloadHash[:])

	signer := v4.NewSigner()
	if err := signer.SignHTTP(ctx, creds, httpReq, hexHash, "bedrock", m.awsCfg.Region, time.Now()); err != nil {
		return fmt.Errorf("bedrock: sign request: %w", err)
	}

	return nil
}

func (m *Model) buildPayload(req model.Request) (*converseRequest, error) {
	payload := &converseRequest{
		InferenceConfig: &inferenceConfig{MaxTokens: m.cfg.MaxTokens},
	}

	if m.cfg.Temperature > 0 {
		t := m.cfg.Temperature
		payload.InferenceConfig.Temperature = &t
	}

	if req.Instructions != "" {
		payload.System = []converseText{{Text: req.Instructions}}
	}

	for _, content := range req.Contents {
		msg, err := toConverseMessage(content)
		if err != nil {
			return nil, err
		}
		if len(msg.Content) == 0 {
			continue
		}
		payload.Messages = append(payload.Messages, msg)
	}

	if len(payload.Messages) == 0 {
		return nil, fmt.Errorf("bedrock: no message content to send")
	}

	for _, td := range req.Tools {
		if payload.ToolConfig == nil {
			payload.ToolConfig = &toolConfig{}
		}
		payload.ToolConfig.Tools = append(payload.ToolConfig.Tools, toolEntry{
			ToolSpec: toolSpec{
				Name:        td.Function.Name,
				Description: td.Function.Description,
				InputSchema: toolInputSchema{JSON: td.Function.Parameters},
			},
		})
	}

	return payload, nil
}

// toConverseMessage maps the unified content parts onto Converse blocks.
// Function responses become toolResult blocks inside a "user" message, which
// is how Converse expects tool outcomes back.
func toConverseMessage(content core.Content) (converseMessage, error) {
	role := content.Role
	switch role {
	case "assistant":
	case "tool":
		role = "user"
	default:
		role = "user"
	}

	msg := converseMessage{Role: role}
	for _, part := range content.Parts {
		switch p := part.(type) {
		case core.TextPart:
			if p.Text == "" {
				continue
			}
			msg.Content = append(msg.Content, contentBlock{Text: p.Text})

		case core.FunctionCallPart:
			args := p.FunctionCall.Arguments
			if args == "" {
				args = "{}"
			}
			msg.Content = append(msg.Content, contentBlock{ToolUse: &toolUseBlock{
				ToolUseID: p.FunctionCall.ID,
				Name:      p.FunctionCall.Name,
				Input:     json.RawMessage(args),
			}})

		case core.FunctionResponsePart:
			block := &toolResultBlock{ToolUseID: p.FunctionResponse.ID}
			if p.FunctionResponse.Error != "" {
				block.Status = "error"
				block.Content = []toolResultContent{{Text: p.FunctionResponse.Error}}
			} else {
				text, err := resultText(p.FunctionResponse.Response)
				if err != nil {
					return converseMessage{}, err
				}
				block.Content = []toolResultContent{{Text: text}}
			}
			msg.Content = append(msg.Content, contentBlock{ToolResult: block})
		}
	}

	return msg, nil
}

func resultText(result any) (string, error) {
	if s, ok := result.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("bedrock: marshal tool result: %w", err)
	}
	return string(b), nil
}

func (m *Model) toResponse(out converseResponse) *model.Response {
	content := core.Content{Role: "assistant"}
	for _, block := range out.Output.Message.Content {
		switch {
		case block.ToolUse != nil:
			id := block.ToolUse.ToolUseID
			if id == "" {
				id = uuid.NewString()
			}
			content.Parts = append(content.Parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        id,
				Name:      block.ToolUse.Name,
				Arguments: string(block.ToolUse.Input),
			}})
		case block.Text != "":
			content.Parts = append(content.Parts, core.TextPart{Text: block.Text})
		}
	}

	finish := "stop"
	switch out.StopReason {
	case "tool_use":
		finish = "tool_calls"
	case "max_tokens":
		finish = "length"
	}

	return &model.Response{
		ID:           uuid.NewString(),
		Partial:      false,
		Content:      content,
		FinishReason: finish,
		Usage: &model.TokenUsage{
			PromptTokens:     out.Usage.InputTokens,
			CompletionTokens: out.Usage.OutputTokens,
			TotalTokens:      out.Usage.TotalTokens,
		},
	}
}
