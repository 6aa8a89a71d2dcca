package flow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincoach/fincoach/core"
	"github.com/fincoach/fincoach/model"
	"github.com/fincoach/fincoach/tool"
)

// toolCallingModel emits one assistant response carrying two function calls,
// the way the orchestrator fans out to its specialists.
type toolCallingModel struct{}

func (m *toolCallingModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(respCh)
		defer close(errCh)
		parts := []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "fc1", Name: "t1", Arguments: "{}"}},
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "fc2", Name: "t2", Arguments: "{}"}},
		}
		respCh <- model.Response{
			Content:      core.Content{Role: "assistant", Parts: parts},
			FinishReason: "tool_calls",
		}
	}()
	return respCh, errCh
}

func (m *toolCallingModel) Info() model.Info {
	return model.Info{Name: "tool-calling", Provider: "mock", SupportsTools: true}
}

type mergeAgent struct {
	*toolHostAgent
	llm model.Model
}

func (a *mergeAgent) GetLLM() model.Model { return a.llm }

func TestBaseFlow_MergeFunctionResponses(t *testing.T) {
	tools := map[string]tool.Tool{
		"t1": &scriptedTool{name: "t1", delay: 20 * time.Millisecond, result: "r1", stateDelta: map[string]any{"a": 1}},
		"t2": &scriptedTool{name: "t2", delay: 10 * time.Millisecond, result: "r2", transferTo: "next"},
	}
	agent := &mergeAgent{
		toolHostAgent: &toolHostAgent{name: "coach", tools: tools},
		llm:           &toolCallingModel{},
	}
	bf := NewBaseFlow(agent)
	rc := newExecutorRunContext(t)

	evCh, err := bf.Execute(rc)
	require.NoError(t, err)

	var toolEvents []core.Event
	timeout := time.After(2 * time.Second)
loop:
	for {
		select {
		case ev, ok := <-evCh:
			if !ok {
				break loop
			}
			if len(ev.GetFunctionResponses()) > 0 {
				toolEvents = append(toolEvents, ev)
			}
		case <-timeout:
			t.Fatal("timeout waiting for events")
		}
	}

	// Both calls from one model turn collapse into a single tool event.
	require.Len(t, toolEvents, 1)
	frs := toolEvents[0].GetFunctionResponses()
	require.Len(t, frs, 2)
	assert.Equal(t, "t1", frs[0].Name)
	assert.Equal(t, "t2", frs[1].Name)

	assert.Equal(t, 1, toolEvents[0].Actions.StateDelta["a"])
	require.NotNil(t, toolEvents[0].Actions.TransferToAgent)
	assert.Equal(t, "next", *toolEvents[0].Actions.TransferToAgent)
}
