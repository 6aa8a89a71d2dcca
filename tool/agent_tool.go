package tool

import (
	"fmt"
	"strings"

	"github.com/fincoach/fincoach/core"
)

// AgentTool wraps an agent so other agents can call it like a function. The
// wrapped agent runs to completion inside the caller's session on a derived
// branch and its final text becomes the tool result. This is how an
// orchestrator consults specialists without transferring the conversation.
type AgentTool struct {
	agent core.Agent
}

// NewAgentTool wraps agent as a callable tool. The tool name is derived from
// the agent's name (lowercased, spaces to underscores).
func NewAgentTool(agent core.Agent) *AgentTool {
	return &AgentTool{agent: agent}
}

// Name returns the tool identifier derived from the agent name.
func (t *AgentTool) Name() string {
	name := strings.ToLower(t.agent.Name())
	return strings.ReplaceAll(name, " ", "_")
}

// Description returns the wrapped agent's description.
func (t *AgentTool) Description() string {
	desc := t.agent.Description()
	if desc == "" {
		desc = fmt.Sprintf("Delegates the request to the %s agent and returns its answer.", t.agent.Name())
	}
	return desc
}

// Parameters returns the JSON schema for tool parameters.
func (t *AgentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"request": map[string]interface{}{
				"type":        "string",
				"description": "The request or question to send to the agent",
			},
		},
		"required": []string{"request"},
	}
}

// Call runs the wrapped agent with the request as its user content and
// returns the last non-partial text it produced. Child events are drained
// locally rather than forwarded, so the caller's stream only sees the tool
// result. A nil resume channel keeps the child from pausing between events.
func (t *AgentTool) Call(toolCtx *core.ToolContext, args map[string]interface{}) (interface{}, error) {
	request, ok := args["request"].(string)
	if !ok || request == "" {
		return nil, fmt.Errorf("request parameter is required")
	}

	parent := toolCtx.InternalRunContext()

	childEvents := make(chan core.Event, 64)
	branch := parent.Branch + "." + t.Name()

	childCtx := parent.NewChildContext(childEvents, nil, branch)
	childCtx.UserContent = core.Content{
		Role:  "user",
		Parts: []core.Part{core.TextPart{Text: request}},
	}
	childCtx.Agent = core.AgentInfo{Name: t.agent.Name(), Type: "agent_tool"}

	done := make(chan error, 1)
	go func() {
		defer close(childEvents)
		done <- t.agent.Run(childCtx)
	}()

	var finalText string
	for ev := range childEvents {
		if ev.IsPartial() {
			continue
		}
		if txt := ev.Text(); txt != "" {
			finalText = txt
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("agent %s failed: %w", t.agent.Name(), err)
	}

	if finalText == "" {
		return nil, NewToolError(t.Name(), "agent produced no response", "EMPTY_RESPONSE")
	}

	return map[string]interface{}{
		"agent":    t.agent.Name(),
		"response": finalText,
	}, nil
}
