package core

import (
	"context"
	"fmt"

	"github.com/fincoach/fincoach/logging"
)

// ToolContext is the surface a tool sees while it runs: read access to the
// run, plus mutation helpers that accumulate EventActions (state deltas,
// artifact diffs, transfer and escalation signals) instead of touching the
// session directly. The executor folds the accumulated actions into the
// function response event once the tool returns, so a failed tool leaves no
// half-applied state behind in the persisted record.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string
	agentInfo      AgentInfo
	eventActions   EventActions
	valid          bool

	*loggerAdapter
}

// NewToolContext binds a tool invocation to its parent run. functionCallID
// is the model-assigned call id and correlates the tool's log lines and
// response event with the request that triggered it.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		agentInfo:      runCtx.Agent,
		eventActions:   EventActions{},
		valid:          true,
		loggerAdapter:  newLoggerAdapter(runCtx.Logger()),
	}
}

// Context returns the run's context; long-running tools must honor its
// cancellation.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// UserID returns the owner of the current session, empty when unknown.
func (tc *ToolContext) UserID() string { return tc.runCtx.UserID }

func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

func (tc *ToolContext) AgentName() string { return tc.agentInfo.Name }

func (tc *ToolContext) AgentType() string { return tc.agentInfo.Type }

// GetState reads a session state value through the run context.
func (tc *ToolContext) GetState(k string) (any, bool) {
	return tc.runCtx.GetState(k)
}

// SetState writes a state value immediately for in-run visibility and
// records it in the pending StateDelta so it persists with the response
// event.
func (tc *ToolContext) SetState(k string, v any) {
	tc.runCtx.SetState(k, v)
	if tc.eventActions.StateDelta == nil {
		tc.eventActions.StateDelta = map[string]any{}
	}
	tc.eventActions.StateDelta[k] = v
}

// Actions exposes the pending event actions, mainly for tests.
func (tc *ToolContext) Actions() *EventActions { return &tc.eventActions }

// SkipSummarization marks the originating event to bypass post-processing
// summarization.
func (tc *ToolContext) SkipSummarization() {
	b := true
	if tc.eventActions.SkipSummarization == nil {
		tc.eventActions.SkipSummarization = &b
	}
}

// TransferToAgent asks the flow to hand the conversation to another agent
// once this tool batch completes.
func (tc *ToolContext) TransferToAgent(name string) {
	tc.eventActions.TransferToAgent = &name
	tc.LogInfo("tool.transfer.request", "from_agent", tc.AgentName(), "to_agent", name, "function_call_id", tc.functionCallID)
}

// Escalate signals that the current agent cannot handle the request.
func (tc *ToolContext) Escalate() {
	b := true
	if tc.eventActions.Escalate == nil {
		tc.eventActions.Escalate = &b
	}
	tc.LogInfo("tool.escalate.request", "agent", tc.AgentName(), "function_call_id", tc.functionCallID)
}

// SaveArtifact stores artifact bytes under the session and records the size
// in the ArtifactDelta. Chart tools use this to persist visualization JSON.
func (tc *ToolContext) SaveArtifact(id string, data []byte) error {
	if tc.runCtx.ArtifactStore == nil {
		return fmt.Errorf("artifact service not configured")
	}

	if err := tc.runCtx.ArtifactStore.Save(tc.SessionID(), id, data); err != nil {
		return err
	}

	if tc.eventActions.ArtifactDelta == nil {
		tc.eventActions.ArtifactDelta = map[string]int{}
	}
	tc.eventActions.ArtifactDelta[id] = len(data)

	return nil
}

// LoadArtifact reads a stored artifact by id.
func (tc *ToolContext) LoadArtifact(id string) ([]byte, error) {
	if tc.runCtx.ArtifactStore == nil {
		return nil, fmt.Errorf("artifact service not configured")
	}
	return tc.runCtx.ArtifactStore.Get(tc.SessionID(), id)
}

// ListArtifacts lists artifact ids stored for the session.
func (tc *ToolContext) ListArtifacts() ([]string, error) {
	if tc.runCtx.ArtifactStore == nil {
		return nil, fmt.Errorf("artifact service not configured")
	}
	return tc.runCtx.ArtifactStore.List(tc.SessionID())
}

// SearchMemory runs a recall query scoped to the session's user.
func (tc *ToolContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	if tc.runCtx.MemoryStore == nil {
		return nil, fmt.Errorf("memory store not configured")
	}
	return tc.runCtx.MemoryStore.Search(tc.Context(), tc.runCtx.MemoryScope(), q, limit)
}

// StoreMemory writes content with metadata into the user's memory.
func (tc *ToolContext) StoreMemory(content string, md map[string]any) error {
	if tc.runCtx.MemoryStore == nil {
		return fmt.Errorf("memory store not configured")
	}
	return tc.runCtx.MemoryStore.Store(tc.Context(), tc.runCtx.MemoryScope(), content, md)
}

// ListMemories returns everything stored for the user, newest first.
func (tc *ToolContext) ListMemories() ([]SearchResult, error) {
	if tc.runCtx.MemoryStore == nil {
		return nil, fmt.Errorf("memory store not configured")
	}
	return tc.runCtx.MemoryStore.List(tc.Context(), tc.runCtx.MemoryScope())
}

// DeleteMemory removes a single stored memory by id.
func (tc *ToolContext) DeleteMemory(memoryID string) error {
	if tc.runCtx.MemoryStore == nil {
		return fmt.Errorf("memory store not configured")
	}
	return tc.runCtx.MemoryStore.Delete(tc.Context(), tc.runCtx.MemoryScope(), memoryID)
}

// GetSessionHistory returns the session's conversation events.
func (tc *ToolContext) GetSessionHistory() []Event {
	if tc.runCtx.Session == nil {
		return nil
	}
	return tc.runCtx.Session.GetConversationHistory()
}

// RefreshSession replaces the run's session snapshot with a fresh read from
// the store, for tools that need to observe writes made outside this run.
func (tc *ToolContext) RefreshSession() error {
	if tc.runCtx.SessionStore == nil {
		return fmt.Errorf("session service not configured")
	}

	s, err := tc.runCtx.SessionStore.Get(tc.SessionID())
	if err != nil {
		return err
	}
	tc.runCtx.Session = s

	return nil
}

// EmitEvent sends an event to the run's emit channel without folding in the
// accumulated actions.
func (tc *ToolContext) EmitEvent(ev Event) error {
	if tc.runCtx.Emit == nil {
		return fmt.Errorf("emit channel not configured")
	}

	select {
	case <-tc.runCtx.Context.Done():
		return tc.runCtx.Context.Err()
	case tc.runCtx.Emit <- ev:
	}

	return nil
}

// Validate checks the context is usable: constructed properly, bound to a
// session and a function call.
func (tc *ToolContext) Validate() error {
	if !tc.IsValid() {
		return fmt.Errorf("invalid ToolContext")
	}
	return nil
}

// IsValid is the boolean form of Validate.
func (tc *ToolContext) IsValid() bool {
	return tc.valid && tc.runCtx != nil && tc.runCtx.SessionID != "" && tc.functionCallID != ""
}

// InternalRunContext exposes the parent run context to infrastructure like
// the agent tool, which spawns a child run from it.
func (tc *ToolContext) InternalRunContext() *RunContext { return tc.runCtx }

// InternalApplyActions merges the pending actions into ev. The function
// executor calls this when finalizing a tool's response event.
func (tc *ToolContext) InternalApplyActions(ev *Event) {
	if len(tc.eventActions.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		for k, v := range tc.eventActions.StateDelta {
			ev.Actions.StateDelta[k] = v
		}
	}

	if tc.eventActions.TransferToAgent != nil {
		ev.Actions.TransferToAgent = tc.eventActions.TransferToAgent
		tc.LogInfo("tool.transfer.applied", "from_agent", tc.AgentName(), "to_agent", *tc.eventActions.TransferToAgent, "function_call_id", tc.functionCallID)
	}

	if tc.eventActions.Escalate != nil {
		ev.Actions.Escalate = tc.eventActions.Escalate
		tc.LogInfo("tool.escalate.applied", "agent", tc.AgentName(), "function_call_id", tc.functionCallID)
	}
}
