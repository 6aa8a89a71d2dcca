package flow

import (
	"fmt"

	"github.com/fincoach/fincoach/core"
	"github.com/fincoach/fincoach/model"
	"github.com/fincoach/fincoach/tool"
)

// BaseFlow is a minimal single‑agent flow implementation that supports a
// request -> LLM -> (optional tool loop) cycle with pluggable pre/post processors.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	functionExecutor   FunctionExecutor
}

// NewBaseFlow creates a new basic single-agent flow.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:              agent,
		requestProcessors:  []RequestProcessor{},
		responseProcessors: []ResponseProcessor{},
		functionExecutor:   NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true}),
	}
}

// AddRequestProcessor appends a request processor; order of registration defines execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed after each model chunk.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetFunctionExecutor replaces the default tool-call executor.
func (f *BaseFlow) SetFunctionExecutor(executor FunctionExecutor) {
	f.functionExecutor = executor
}

// Execute launches the flow asynchronously and returns a channel of Events.
// The channel is closed when a final response is emitted or an unrecoverable
// error occurs. Callers should range over the returned channel.
func (f *BaseFlow) Execute(runCtx *core.RunContext) (<-chan core.Event, error) {
	eventChan := make(chan core.Event, 100)

	go func() {
		defer close(eventChan)

		for {
			last := f.runOnce(runCtx, eventChan)
			if last == nil {
				break
			}
			// A transfer ends this agent's turn; the caller decides what runs next.
			if last.Actions.TransferToAgent != nil {
				break
			}
			// If we just emitted function responses, we want another LLM turn
			if len(last.GetFunctionResponses()) > 0 {
				continue
			}
			if last.IsPartial() {
				runCtx.LogWarn("flow.unexpected_partial", "agent", f.agent.GetName())
				break
			}
			if last.IsFinalResponse() {
				break
			}
		}
	}()

	return eventChan, nil
}

// emitError converts an internal error to a system Event.
func (f *BaseFlow) emitError(eventChan chan<- core.Event, runCtx *core.RunContext, err error) {
	ev := core.NewEvent(runCtx.RunID, "system")
	msg := err.Error()
	ev.ErrorMessage = &msg
	eventChan <- ev
}

// runOnce performs one model turn (including any tool executions) and returns
// the last emitted Event (final or intermediate). A nil return signals termination.
func (f *BaseFlow) runOnce(runCtx *core.RunContext, eventChan chan<- core.Event) *core.Event {
	// Refresh session snapshot so request processors see latest conversation (including tool responses)
	if runCtx.SessionStore != nil {
		if latest, err := runCtx.SessionStore.Get(runCtx.SessionID); err == nil && latest != nil {
			runCtx.Session = latest
		}
	}

	if err := runCtx.Limiter.Increment(); err != nil {
		f.emitError(eventChan, runCtx, err)
		return nil
	}

	req := new(model.Request)
	req.Stream = f.agent.IsStreamingEnabled()

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			f.emitError(eventChan, runCtx, fmt.Errorf("request processor %s failed: %w", processor.Name(), err))
			return nil
		}
	}

	// Build tool definitions
	tools := f.agent.GetTools()
	if len(tools) > 0 {
		toolDefinitions := make([]model.ToolDefinition, 0, len(tools))
		for _, t := range tools {
			toolDefinitions = append(toolDefinitions, model.ToolDefinition{
				Type: "function",
				Function: model.FunctionDefinition{
					Name:        t.Name(),
					Description: t.Description(),
					Parameters:  t.Parameters(),
				},
			})
		}
		req.Tools = append(req.Tools, toolDefinitions...)
	}

	llm := f.agent.GetLLM()

	respCh, errCh := llm.Generate(runCtx.Context, *req)

	var lastEvent *core.Event

loop:
	for {
		select {
		case resp, ok := <-respCh:
			if !ok {
				break loop
			}

			for _, processor := range f.responseProcessors {
				if err := processor.ProcessResponse(runCtx, &resp, f.agent); err != nil {
					f.emitError(eventChan, runCtx, fmt.Errorf("response processor %s failed: %w", processor.Name(), err))
					return nil
				}
			}

			ev := core.NewEvent(runCtx.RunID, f.agent.GetName())
			ev.Content = &resp.Content
			ev.Partial = &resp.Partial

			// Mark turn complete if this is a final assistant response with no pending tool calls
			if !resp.Partial && len(ev.GetFunctionCalls()) == 0 {
				complete := true
				ev.TurnComplete = &complete
			}

			lastEvent = &ev

			eventChan <- ev

			// Wait for session persistence (engine sends resume after append)
			if !ev.IsPartial() && runCtx.Resume != nil {
				select {
				case <-runCtx.Context.Done():
					return lastEvent
				case <-runCtx.Resume:
				}
			}

			if fnCalls := ev.GetFunctionCalls(); len(fnCalls) > 0 {
				merged := f.executeFunctionCalls(runCtx, fnCalls)
				if merged != nil {
					lastEvent = merged

					eventChan <- *merged

					// Wait for session persistence of tool responses
					if runCtx.Resume != nil {
						select {
						case <-runCtx.Context.Done():
							return lastEvent
						case <-runCtx.Resume:
						}
					}
				}
			}
		case err, ok := <-errCh:
			if ok && err != nil {
				runCtx.LogError("flow.model.error", "agent", f.agent.GetName(), "error", err.Error())
				f.emitError(eventChan, runCtx, err)
				return nil
			}
			// Closed error channel: responses may still be buffered, keep
			// draining respCh until it closes too.
			errCh = nil
		}
	}

	return lastEvent
}

// executeFunctionCalls runs the batch through the function executor and merges
// all responses into a single tool event so one model turn yields one
// persisted response, mirroring how providers expect paired tool results.
func (f *BaseFlow) executeFunctionCalls(runCtx *core.RunContext, fnCalls []core.FunctionCall) *core.Event {
	registry := f.agent.GetTools()
	if f.agent.IsTransferEnabled() {
		transferTool := tool.NewTransferToAgentTool()
		if _, ok := registry[transferTool.Name()]; !ok {
			withTransfer := make(map[string]tool.Tool, len(registry)+1)
			for k, v := range registry {
				withTransfer[k] = v
			}
			withTransfer[transferTool.Name()] = transferTool
			registry = withTransfer
		}
	}

	var responses []core.Event
	f.functionExecutor.Execute(runCtx, f.agent, registry, fnCalls, func(ev core.Event) error {
		responses = append(responses, ev)
		return nil
	})
	if len(responses) == 0 {
		return nil
	}

	merged := responses[0]
	for _, ev := range responses[1:] {
		if ev.Content != nil {
			if merged.Content == nil {
				merged.Content = &core.Content{Role: "tool"}
			}
			merged.Content.Parts = append(merged.Content.Parts, ev.Content.Parts...)
		}
		mergeActions(&merged.Actions, ev.Actions)
	}
	return &merged
}

// mergeActions folds src into dst. State deltas union (later wins), boolean
// flags OR, first transfer target wins.
func mergeActions(dst *core.EventActions, src core.EventActions) {
	if len(src.StateDelta) > 0 {
		if dst.StateDelta == nil {
			dst.StateDelta = map[string]any{}
		}
		for k, v := range src.StateDelta {
			dst.StateDelta[k] = v
		}
	}
	if len(src.ArtifactDelta) > 0 {
		if dst.ArtifactDelta == nil {
			dst.ArtifactDelta = map[string]int{}
		}
		for k, v := range src.ArtifactDelta {
			dst.ArtifactDelta[k] = v
		}
	}
	if src.SkipSummarization != nil && *src.SkipSummarization {
		dst.SkipSummarization = src.SkipSummarization
	}
	if dst.TransferToAgent == nil && src.TransferToAgent != nil {
		dst.TransferToAgent = src.TransferToAgent
	}
	if src.Escalate != nil && *src.Escalate {
		dst.Escalate = src.Escalate
	}
}
