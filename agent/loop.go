package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/fincoach/fincoach/core"
)

// ErrEscalated is returned when a child agent signals escalation.
var ErrEscalated = errors.New("child agent escalated")

// LoopAgent coordinates the repeated execution of a child agent.
//
// The loop is controlled by a maximum iteration count, an optional
// termination predicate over the child's final text output, an optional
// interval between iterations and an error handling strategy. Escalation
// events emitted by the child terminate the loop immediately.
//
// LoopAgent is suited for polling scenarios, retry logic with custom
// conditions and workflows requiring convergence checking.
type LoopAgent struct {
	BaseAgent
	child       core.Agent        // Child agent to execute repeatedly
	maxIters    int               // Maximum number of iterations allowed
	interval    time.Duration     // Time delay between iterations
	stopOnError bool              // Whether to stop execution on child agent errors
	predicate   func(string) bool // Custom termination condition based on output
}

// NewLoopAgent constructs a looping coordinator around a child agent.
// Defaults: 100 iterations, no interval, stop on first error.
func NewLoopAgent(name string, child core.Agent, opts ...LoopOption) *LoopAgent {
	la := &LoopAgent{
		BaseAgent:   NewBaseAgent(name),
		child:       child,
		maxIters:    100,
		interval:    0,
		stopOnError: true,
	}

	for _, o := range opts {
		o(la)
	}

	return la
}

// LoopOption defines a configuration function for customizing LoopAgent behavior.
type LoopOption func(*LoopAgent)

// WithMaxIters sets the maximum number of iterations for the loop.
func WithMaxIters(n int) LoopOption {
	return func(l *LoopAgent) { l.maxIters = n }
}

// WithInterval sets the time delay between loop iterations.
// Useful for rate limiting and polling; 0 means no delay.
func WithInterval(d time.Duration) LoopOption {
	return func(l *LoopAgent) { l.interval = d }
}

// WithStopOnError controls whether child errors terminate the loop.
func WithStopOnError(stop bool) LoopOption {
	return func(l *LoopAgent) { l.stopOnError = stop }
}

// WithPredicate sets a custom termination condition evaluated against the
// child's final text output after each iteration. Returning true terminates
// the loop early.
//
// Example:
//
//	WithPredicate(func(output string) bool {
//	    return strings.Contains(output, "COMPLETE")
//	})
func WithPredicate(pred func(string) bool) LoopOption {
	return func(l *LoopAgent) { l.predicate = pred }
}

// Run implements core.Agent performing iterative execution with escalation
// detection. It returns early (nil error) on escalation or a satisfied
// predicate. The same RunContext is shared across iterations so the child
// accumulates session state.
func (l *LoopAgent) Run(runCtx *core.RunContext) error {
	for i := 0; i < l.maxIters; i++ {
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		default:
		}

		runCtx.LogDebug("agent.loop.iteration", "agent", l.Name(), "iteration", i+1)

		lastText, childErr := l.runChildWithEscalationMonitoring(runCtx)

		if errors.Is(childErr, ErrEscalated) {
			runCtx.LogInfo("agent.loop.escalated", "agent", l.Name(), "iteration", i+1)
			return nil // Escalation is not an error, just early termination
		}

		if childErr != nil {
			if l.stopOnError {
				return fmt.Errorf("loop iteration %d failed for agent %s: %w", i+1, l.child.Name(), childErr)
			}
			runCtx.LogWarn("agent.loop.iteration.error", "agent", l.Name(), "iteration", i+1, "error", childErr.Error())
		}

		if l.predicate != nil && l.predicate(lastText) {
			runCtx.LogDebug("agent.loop.predicate_met", "agent", l.Name(), "iteration", i+1)
			return nil
		}

		// Apply interval delay between iterations (except after last iteration)
		if l.interval > 0 && i < l.maxIters-1 {
			select {
			case <-runCtx.Done():
				return runCtx.Err()
			case <-time.After(l.interval):
			}
		}
	}

	runCtx.LogDebug("agent.loop.complete", "agent", l.Name(), "iterations", l.maxIters)

	return nil
}

// runChildWithEscalationMonitoring wraps child execution routing its emitted
// events through an intercept channel to inspect for escalation flags before
// forwarding to the parent context. It returns the text of the last final
// event so the loop predicate can evaluate it.
func (l *LoopAgent) runChildWithEscalationMonitoring(runCtx *core.RunContext) (string, error) {
	interceptChan := make(chan core.Event, 10)
	resumeChan := make(chan struct{}, 10)
	childCtx := runCtx.NewChildContext(interceptChan, resumeChan, runCtx.Branch)

	done := make(chan error, 1)

	go func() {
		defer close(done)
		done <- l.child.Run(childCtx)
	}()

	var lastText string

	for {
		select {
		case event, ok := <-interceptChan:
			if !ok {
				return lastText, <-done
			}

			if txt := event.Text(); txt != "" && !event.IsPartial() {
				lastText = txt
			}

			if event.Actions.Escalate != nil && *event.Actions.Escalate {
				// Forward the escalation event to the parent
				if err := runCtx.EmitEvent(event); err != nil {
					return lastText, err
				}
				// Release the child so it can finish its turn before we wait
				select {
				case resumeChan <- struct{}{}:
				default:
				}
				<-done
				return lastText, ErrEscalated
			}

			// Forward non-escalation events to the parent context
			if err := runCtx.EmitEvent(event); err != nil {
				return lastText, err
			}

			// Send resume signal to child
			select {
			case resumeChan <- struct{}{}:
			case <-runCtx.Done():
				return lastText, runCtx.Err()
			}

		case err := <-done:
			// Child completed without escalation
			close(interceptChan)
			close(resumeChan)
			return lastText, err

		case <-runCtx.Done():
			close(interceptChan)
			close(resumeChan)
			return lastText, runCtx.Err()
		}
	}
}

// CreateEscalationEvent constructs an event that signals escalation to the
// parent agent. Agents use this when they cannot complete their task and
// need to hand control back up the hierarchy.
func CreateEscalationEvent(runID, author string, content *core.Content) core.Event {
	escalate := true
	ev := core.NewEvent(runID, author)
	ev.Actions.Escalate = &escalate
	ev.Content = content
	return ev
}
