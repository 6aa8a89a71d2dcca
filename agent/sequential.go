package agent

import (
	"fmt"

	"github.com/fincoach/fincoach/core"
)

// SequentialAgent coordinates the execution of multiple child agents in order.
//
// Child agents execute one after another sharing the same RunContext so that
// accumulated session state from earlier steps is visible to later ones.
// Execution stops at the first error. SequentialAgent suits multi-step
// pipelines and workflows where agent outputs build upon each other.
type SequentialAgent struct {
	BaseAgent
	children []core.Agent // Child agents to execute in sequence
}

// NewSequentialAgent creates a new sequential execution coordinator running
// the provided children in the order given.
func NewSequentialAgent(name string, children ...core.Agent) *SequentialAgent {
	return &SequentialAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
	}
}

// Run implements core.Agent. It executes each child agent in order with the
// shared context; errors stop further processing immediately.
func (s *SequentialAgent) Run(runCtx *core.RunContext) error {
	for _, child := range s.children {
		// Pass the same run context to maintain shared state
		if err := child.Run(runCtx); err != nil {
			return fmt.Errorf("sequential execution failed at agent %s: %w", child.Name(), err)
		}
	}

	return nil
}
