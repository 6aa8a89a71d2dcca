package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fincoach/fincoach/core"
)

// ParallelAgent coordinates the concurrent execution of multiple child agents.
//
// Each child runs in its own goroutine with an isolated branch context so
// pending state deltas and artifacts do not conflict, while still sharing
// the underlying session. ParallelAgent suits independent I/O bound tasks
// and data gathering from multiple sources where ordering does not matter.
type ParallelAgent struct {
	BaseAgent
	children []core.Agent  // Child agents to execute in parallel
	timeout  time.Duration // Maximum execution time for all children
}

// NewParallelAgent creates a new parallel execution coordinator. Children
// execute concurrently, each in an isolated branch context.
func NewParallelAgent(name string, timeout time.Duration, children ...core.Agent) *ParallelAgent {
	return &ParallelAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
		timeout:   timeout,
	}
}

// createBranchCtxForSubAgent clones the parent context and assigns a branch
// path for the child agent ensuring isolation of pending deltas / artifacts.
// Branch naming follows the pattern "ParentAgent.SubAgent"; nested parallel
// agents produce hierarchical paths.
func (p *ParallelAgent) createBranchCtxForSubAgent(runCtx *core.RunContext, subAgent core.Agent) *core.RunContext {
	clonedCtx := runCtx.Clone()

	branchSuffix := fmt.Sprintf("%s.%s", p.Name(), subAgent.Name())
	clonedCtx.Branch = buildBranchPath(runCtx.Branch, branchSuffix)

	return clonedCtx
}

// Run implements core.Agent launching all children concurrently. The first
// error encountered (after all complete) is returned; successful children
// continue even if siblings fail.
func (p *ParallelAgent) Run(runCtx *core.RunContext) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(p.children))

	ctx := runCtx.Context
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	for _, child := range p.children {
		wg.Add(1)
		go func(c core.Agent) {
			defer wg.Done()

			// Create isolated branch context for state separation
			branchCtx := p.createBranchCtxForSubAgent(runCtx, c)
			branchCtx.Context = ctx

			if err := c.Run(branchCtx); err != nil {
				errCh <- fmt.Errorf("parallel execution failed for agent %s: %w", c.Name(), err)
			}
		}(child)
	}

	wg.Wait()
	close(errCh)

	// Return first error encountered, if any
	if len(errCh) > 0 {
		return <-errCh
	}

	return nil
}
