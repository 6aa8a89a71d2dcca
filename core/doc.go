// Package core provides the foundational domain types, interfaces and
// execution contexts shared by the agent runtime. It defines:
//
//   - Agents (units of autonomous / orchestrated work)
//   - Sessions (stateful conversational containers with event history)
//   - Events (immutable communication + orchestration records)
//   - RunContext / ToolContext (scoped execution & tool sandboxing)
//   - Pluggable stores for session state, artifacts and memory recall/search
//
// The package intentionally keeps implementation concerns (persistence,
// engine orchestration, concrete agents) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
