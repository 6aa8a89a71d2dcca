package flow

import (
	"fmt"
	"strings"

	"github.com/fincoach/fincoach/core"
	"github.com/fincoach/fincoach/model"
	"github.com/fincoach/fincoach/tool"
)

// TransferToolInjector adds the transfer_to_agent tool definition to the
// request when the agent has transfer enabled and at least one sub-agent.
// The definition advertises the reachable agent names so the model can pick
// a valid target.
type TransferToolInjector struct{}

// NewTransferToolInjector creates a new transfer tool injector.
func NewTransferToolInjector() *TransferToolInjector { return &TransferToolInjector{} }

// Name returns the processor's identifier.
func (p *TransferToolInjector) Name() string { return "transfer_tool_injector" }

// ProcessRequest injects the transfer tool definition exactly once per request.
func (p *TransferToolInjector) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	if !agent.IsTransferEnabled() {
		return nil
	}

	subAgents := agent.GetSubAgents()
	if len(subAgents) == 0 {
		return nil
	}

	transferTool := tool.NewTransferToAgentTool()
	for _, td := range req.Tools {
		if td.Function.Name == transferTool.Name() {
			return nil
		}
	}

	names := make([]string, 0, len(subAgents))
	for _, sub := range subAgents {
		names = append(names, sub.GetName())
	}

	params := transferTool.Parameters()
	if props, ok := params["properties"].(map[string]any); ok {
		if agentProp, ok := props["agent"].(map[string]any); ok {
			agentProp["enum"] = names
		}
	}

	req.Tools = append(req.Tools, model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        transferTool.Name(),
			Description: fmt.Sprintf("%s Available agents: %s.", transferTool.Description(), strings.Join(names, ", ")),
			Parameters:  params,
		},
	})

	runCtx.LogDebug("agent.transfer_tool.injected", "agent", agent.GetName(), "targets", strings.Join(names, ","))

	return nil
}
