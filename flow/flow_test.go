package flow

import (
	"context"
	"fmt"
	"testing"

	"github.com/fincoach/fincoach/core"
	"github.com/fincoach/fincoach/logging"
	"github.com/fincoach/fincoach/model"
	"github.com/fincoach/fincoach/session"
	"github.com/fincoach/fincoach/tool"
)

// MockModel is a lightweight in‑memory Model useful for tests & examples.
type MockModel struct {
	info      model.Info
	responses map[string]string
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: model.Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.responses[prompt] = response
}

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}
		// Extract last content text
		last := req.Contents[len(req.Contents)-1]
		var inputText string
		for _, p := range last.Parts {
			if tp, ok := p.(core.TextPart); ok {
				inputText += tp.Text
			}
		}
		full := m.responses[inputText]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}
		if req.Stream {
			for _, r := range full { // Emit character chunks as partials
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- model.Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.TextPart{Text: string(r)}},
					},
				}:
				}
			}
		}
		respCh <- model.Response{ // Final response
			Partial: false,
			Content: core.Content{
				Role:  "assistant",
				Parts: []core.Part{core.TextPart{Text: full}},
			},
			FinishReason: "stop",
		}
	}()
	return respCh, errCh
}

// Info implements Model interface
func (m *MockModel) Info() model.Info { return m.info }

func newTestRunContext() *core.RunContext {
	ctx := context.Background()
	eventChan := make(chan core.Event, 10)
	sessStore := session.NewInMemoryStore()
	_, _ = sessStore.Create("test-session")
	userMsg := core.NewUserMessageEvent("test-run", "test message")
	_ = sessStore.AppendEvent("test-session", userMsg)
	sess, _ := sessStore.Get("test-session")
	return core.NewRunContext(ctx, "test-session", "test-run", core.AgentInfo{Name: "TestAgent", Type: "flow-test"}, core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "test message"}}}, 0, eventChan, nil, sess, sessStore, nil, nil, logging.NoOpLogger{})
}

type mockFlowAgent struct {
	name string
	llm  model.Model
}

func (m *mockFlowAgent) GetName() string     { return m.name }
func (m *mockFlowAgent) GetLLM() model.Model { return m.llm }
func (m *mockFlowAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return "You are a test assistant.", nil
}
func (m *mockFlowAgent) GetTools() map[string]tool.Tool { return map[string]tool.Tool{} }
func (m *mockFlowAgent) GetSubAgents() []FlowAgent      { return []FlowAgent{} }
func (m *mockFlowAgent) IsFunctionCallingEnabled() bool { return false }
func (m *mockFlowAgent) IsStreamingEnabled() bool       { return false }
func (m *mockFlowAgent) IsTransferEnabled() bool        { return false }
func (m *mockFlowAgent) GetOutputKey() string           { return "" }
func (m *mockFlowAgent) MaxHistoryMessages() int        { return 10 }
func (m *mockFlowAgent) ExecuteTool(toolCtx *core.ToolContext, toolName string, args string) (interface{}, error) {
	return nil, nil
}
func (m *mockFlowAgent) TransferToAgent(runCtx *core.RunContext, agentName string) error {
	return nil
}

func TestSingleAgentFlow(t *testing.T) {
	mockModel := NewMockModel("test-model", "mock")
	mockModel.AddResponse("test message", "Hello! This is a test response.")
	agent := &mockFlowAgent{name: "test-agent", llm: mockModel}
	runCtx := newTestRunContext()
	f := NewSingleAgentFlow(agent)
	eventChan, err := f.Execute(runCtx)
	if err != nil {
		t.Fatalf("Flow execution failed: %v", err)
	}
	var events []core.Event
	for ev := range eventChan {
		events = append(events, ev)
	}
	if len(events) == 0 {
		t.Fatal("Expected at least one event from flow execution")
	}
	final := events[len(events)-1]
	if final.Text() != "Hello! This is a test response." {
		t.Errorf("unexpected final response: %q", final.Text())
	}
}

// closedChannelModel returns both channels already closed with the responses
// buffered, so the closed error channel is selectable before any response has
// been read.
type closedChannelModel struct {
	responses []model.Response
}

func (m *closedChannelModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, len(m.responses))
	errCh := make(chan error, 1)
	for _, r := range m.responses {
		respCh <- r
	}
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (m *closedChannelModel) Info() model.Info {
	return model.Info{Name: "closed", Provider: "mock"}
}

func TestBaseFlow_DrainsBufferedResponses(t *testing.T) {
	text := func(s string, partial bool) model.Response {
		return model.Response{
			Partial: partial,
			Content: core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: s}}},
		}
	}
	llm := &closedChannelModel{responses: []model.Response{
		text("Put", true),
		text(" 20% aside.", true),
		text("Put 20% aside.", false),
	}}
	agent := &mockFlowAgent{name: "drain-agent", llm: llm}

	// The error channel being closed must not cut the response stream short,
	// regardless of which ready case the select picks first.
	for i := 0; i < 50; i++ {
		runCtx := newTestRunContext()
		f := NewSingleAgentFlow(agent)
		eventChan, err := f.Execute(runCtx)
		if err != nil {
			t.Fatalf("Flow execution failed: %v", err)
		}
		var events []core.Event
		for ev := range eventChan {
			events = append(events, ev)
		}
		if len(events) != 3 {
			t.Fatalf("iteration %d: expected 3 events, got %d", i, len(events))
		}
		final := events[len(events)-1]
		if final.IsPartial() || final.Text() != "Put 20% aside." {
			t.Fatalf("iteration %d: final response lost: %+v", i, final)
		}
	}
}

func TestSelector(t *testing.T) {
	isolated := &mockFlowAgent{name: "solo", llm: NewMockModel("m", "mock")}
	if _, ok := NewSelector().SelectFlow(isolated).(*SingleAgentFlow); !ok {
		t.Errorf("expected SingleAgentFlow for isolated agent")
	}
	parent := &tiMockAgent{name: "root", transfer: true, subAgents: []FlowAgent{&tiMockAgent{name: "child"}}}
	if _, ok := NewSelector().SelectFlow(parent).(*MultiAgentFlow); !ok {
		t.Errorf("expected MultiAgentFlow for agent with sub-agents")
	}
}

func TestBaseFlow_ModelCallLimit(t *testing.T) {
	mockModel := NewMockModel("test-model", "mock")
	agent := &mockFlowAgent{name: "limited", llm: mockModel}
	runCtx := newTestRunContext()
	runCtx.Limiter = core.NewModelLimiter(1)
	_ = runCtx.Limiter.Increment() // exhaust the budget

	f := NewSingleAgentFlow(agent)
	eventChan, err := f.Execute(runCtx)
	if err != nil {
		t.Fatalf("Flow execution failed: %v", err)
	}
	var events []core.Event
	for ev := range eventChan {
		events = append(events, ev)
	}
	if len(events) != 1 || events[0].ErrorMessage == nil {
		t.Fatalf("expected a single error event, got %+v", events)
	}
}
