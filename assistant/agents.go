package assistant

import (
	"github.com/fincoach/fincoach/agent"
	"github.com/fincoach/fincoach/core"
	"github.com/fincoach/fincoach/tool"
)

// Agent types the service can build. New types go through get-or-create so
// every user gets an isolated instance.
const (
	AgentBasic        = "basic"
	AgentFinancial    = "financial"
	AgentBudget       = "budget"
	AgentMemory       = "memory"
	AgentOrchestrator = "orchestrator"
)

func (s *Service) buildAgent(userID, agentType string) (core.Agent, error) {
	name := agentCacheKey(userID, agentType)

	switch agentType {
	case AgentBasic:
		return s.buildBasicAgent(name), nil
	case AgentFinancial:
		return s.buildFinancialAgent(name), nil
	case AgentBudget:
		return s.buildBudgetAgent(name), nil
	case AgentMemory:
		return s.buildMemoryAgent(name), nil
	case AgentOrchestrator:
		return s.buildOrchestratorAgent(name, userID), nil
	default:
		return nil, &UnknownAgentTypeError{AgentType: agentType}
	}
}

func (s *Service) buildBasicAgent(name string) core.Agent {
	return agent.NewModelAgent(name, s.llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(basicSystemPrompt)
		o.EnableFunctionCalling = false
		o.MaxHistoryMessages = s.conversationWindow
	})
}

func (s *Service) buildFinancialAgent(name string) core.Agent {
	return agent.NewModelAgent(name, s.llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(financialSystemPrompt)
		o.EnableFunctionCalling = false
		o.MaxHistoryMessages = s.conversationWindow
	})
}

func (s *Service) buildBudgetAgent(name string) core.Agent {
	a := agent.NewModelAgent(name, s.llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(budgetSystemPrompt)
		o.MaxHistoryMessages = s.conversationWindow
	})
	a.RegisterTools(
		newCalculateBudgetTool(),
		newCreateChartTool(),
		newSampleDataTool(),
	)
	return a
}

func (s *Service) buildMemoryAgent(name string) core.Agent {
	a := agent.NewModelAgent(name, s.llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(memorySystemPrompt)
		o.MaxHistoryMessages = s.conversationWindow
	})
	a.RegisterTools(
		tool.NewMemoryTool(),
		newSetPreferenceTool(),
	)
	return a
}

// buildOrchestratorAgent assembles the portfolio orchestrator: six specialist
// model agents sharing the user's portfolio workspace, each wrapped as a tool
// of the coordinating agent.
func (s *Service) buildOrchestratorAgent(name, userID string) core.Agent {
	ws := s.workspaceFor(userID)

	orchestrator := agent.NewModelAgent(name, s.llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(orchestratorSystemPrompt)
		o.MaxHistoryMessages = s.conversationWindow
	})

	orchestrator.RegisterTools(
		tool.NewAgentTool(s.buildSpecialist("Stock Data Specialist", stockDataPrompt,
			newFetchStockDataTool(s.market, ws))),
		tool.NewAgentTool(s.buildSpecialist("Growth Strategy Specialist", growthStrategyPrompt,
			newGrowthPortfolioTool(ws))),
		tool.NewAgentTool(s.buildSpecialist("Diversified Strategy Specialist", diversifiedStrategyPrompt,
			newDiversifiedPortfolioTool(ws))),
		tool.NewAgentTool(s.buildSpecialist("Performance Specialist", performancePrompt,
			newPerformanceTool(ws))),
		tool.NewAgentTool(s.buildSpecialist("Visualization Specialist", visualizationPrompt,
			newAllocationChartTool(ws), newPerformanceChartTool(ws))),
		tool.NewAgentTool(s.buildSpecialist("Validation Specialist", validationPrompt,
			newValidationTool(ws))),
	)

	return orchestrator
}

func (s *Service) buildSpecialist(name, prompt string, tools ...tool.Tool) core.Agent {
	a := agent.NewModelAgent(name, s.llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(prompt)
		o.MaxHistoryMessages = s.conversationWindow
	})
	a.RegisterTools(tools...)
	return a
}
