package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/fincoach/fincoach/artifact"
	"github.com/fincoach/fincoach/core"
	"github.com/fincoach/fincoach/logging"
	"github.com/fincoach/fincoach/memory"
	"github.com/fincoach/fincoach/session"
)

// Config contains operational parameters for engine behavior.
type Config struct {
	// MaxConcurrentRuns limits the number of agent runs that can execute
	// simultaneously, providing backpressure. 0 means unlimited.
	MaxConcurrentRuns int

	// EventBufferSize sets the channel buffer size for event processing.
	// Larger buffers reduce blocking but increase memory usage.
	EventBufferSize int

	// MaxModelCalls caps the number of model calls a single run may make,
	// guarding against tool-call loops. 0 means unlimited.
	MaxModelCalls int
}

// DefaultConfig provides conservative defaults suitable for most deployments.
var DefaultConfig = Config{
	MaxConcurrentRuns: 10,
	EventBufferSize:   100,
	MaxModelCalls:     25,
}

// Options configures an Engine instance using the functional options pattern.
// All services have in-memory defaults so the engine works out of the box for
// development and testing.
type Options struct {
	Config Config

	// SessionStore manages session persistence and state.
	SessionStore core.SessionStore

	// ArtifactStore handles binary/blob artifact storage.
	ArtifactStore core.ArtifactStore

	// MemoryStore provides user-scoped long-term memory.
	MemoryStore core.MemoryStore

	// Logger provides structured logging; defaults to NoOpLogger.
	Logger logging.Logger
}

// WithConfig overrides the engine configuration.
func WithConfig(cfg Config) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithSessionStore sets the session persistence backend.
func WithSessionStore(s core.SessionStore) func(o *Options) {
	return func(o *Options) { o.SessionStore = s }
}

// WithArtifactStore sets the artifact storage backend.
func WithArtifactStore(s core.ArtifactStore) func(o *Options) {
	return func(o *Options) { o.ArtifactStore = s }
}

// WithMemoryStore sets the long-term memory backend.
func WithMemoryStore(s core.MemoryStore) func(o *Options) {
	return func(o *Options) { o.MemoryStore = s }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Engine orchestrates agent execution: it owns the agent registry, spawns
// per-run goroutines, applies event actions to the backing stores, persists
// non-partial events and streams events to the caller.
//
// Event flow per run:
//  1. User content is persisted as the starting event
//  2. The agent's Run produces a stream of events on an internal channel
//  3. Event actions (state deltas, transfers, escalations) are applied
//  4. Non-partial events are appended to session history
//  5. Events are forwarded to the caller; a resume signal tells the agent
//     the event was persisted so multi-turn flows stay ordered
//
// All public methods are safe for concurrent use.
type Engine struct {
	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	memoryStore   core.MemoryStore
	logger        logging.Logger

	config Config

	agents map[string]core.Agent
	mu     sync.RWMutex

	activeRuns map[string]context.CancelFunc
	runsMu     sync.RWMutex

	sem chan struct{} // bounds concurrent runs; nil when unlimited
}

// New creates an Engine with in-memory service defaults. Production
// deployments typically supply their own stores via options:
//
//	eng := engine.New(
//	    engine.WithSessionStore(sessionStore),
//	    engine.WithMemoryStore(vectorStore),
//	    engine.WithLogger(logger),
//	)
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:        DefaultConfig,
		SessionStore:  session.NewInMemoryStore(),
		ArtifactStore: artifact.NewInMemoryStore(),
		MemoryStore:   memory.NewInMemoryStore(),
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := &Engine{
		sessionStore:  opts.SessionStore,
		artifactStore: opts.ArtifactStore,
		memoryStore:   opts.MemoryStore,
		config:        opts.Config,
		agents:        make(map[string]core.Agent),
		activeRuns:    make(map[string]context.CancelFunc),
		logger:        opts.Logger,
	}

	if opts.Config.MaxConcurrentRuns > 0 {
		e.sem = make(chan struct{}, opts.Config.MaxConcurrentRuns)
	}

	return e
}

// Register adds an agent to the registry under its Name. Registering a second
// agent with the same name replaces the first.
func (e *Engine) Register(a core.Agent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.agents[a.Name()] = a
}

// GetAgent looks up a registered agent by name.
func (e *Engine) GetAgent(name string) (core.Agent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.agents[name]
	return a, ok
}

// Agents returns the names of all registered agents.
func (e *Engine) Agents() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.agents))
	for name := range e.agents {
		names = append(names, name)
	}
	return names
}

// Invoke starts an asynchronous agent run. It returns the run ID, a channel
// of streamed events, a terminal error channel (buffered size 1) and any
// immediate startup error. Both channels are closed when the run terminates.
func (e *Engine) Invoke(
	ctx context.Context,
	sessionID string,
	agentName string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	agent, ok := e.GetAgent(agentName)
	if !ok {
		return "", nil, nil, fmt.Errorf("agent %s not found", agentName)
	}

	if e.sem != nil {
		select {
		case e.sem <- struct{}{}:
		case <-ctx.Done():
			return "", nil, nil, ctx.Err()
		}
	}

	sess, err := e.sessionStore.Get(sessionID)
	if err != nil {
		e.release()
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	runID := uuid.NewString()

	eventsCh := make(chan core.Event, e.config.EventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, e.config.EventBufferSize)
	resumeCh := make(chan struct{}, 1)

	runCtx, cancel := context.WithCancel(ctx)

	e.runsMu.Lock()
	e.activeRuns[runID] = cancel
	e.runsMu.Unlock()

	agentInfo := core.AgentInfo{Name: agent.Name(), Type: "agent"}

	rc := core.NewRunContext(
		runCtx,
		sessionID,
		runID,
		agentInfo,
		userContent,
		e.config.MaxModelCalls,
		agentEmit,
		resumeCh,
		sess,
		e.sessionStore,
		e.artifactStore,
		e.memoryStore,
		e.logger,
	)

	// Persist user input as the starting event for this run
	userEvent := core.NewUserContentEvent(runID, &userContent)

	if err := e.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		e.cleanupRun(runID, cancel)
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	e.logger.Debug("engine.run.start", "run_id", runID, "session_id", sessionID, "agent", agentName)

	agentDone := make(chan struct{})

	go func() {
		defer func() {
			close(agentEmit)
			close(agentDone)
			e.cleanupRun(runID, nil)
		}()

		if err := e.runAgent(rc, agent); err != nil {
			select {
			case <-runCtx.Done():
				return
			case errorsCh <- fmt.Errorf("agent execution failed: %w", err):
			}
		}
	}()

	go func() {
		defer func() {
			close(eventsCh)
			close(errorsCh)
		}()

		e.processEvents(runCtx, sessionID, agentEmit, resumeCh, eventsCh, errorsCh)

		// Cancel unblocks the agent goroutine if the pump bailed out early,
		// so its cleanup runs and the concurrency slot frees up; it also
		// releases the per-run context on clean completion. The channels stay
		// open until the agent goroutine is done sending.
		cancel()
		<-agentDone
	}()

	return runID, eventsCh, errorsCh, nil
}

// InvokeSync executes an agent to completion, collecting all emitted events.
// Prefer Invoke for streaming consumption; this buffers everything in memory.
func (e *Engine) InvokeSync(
	ctx context.Context,
	sessionID string,
	agentName string,
	userContent core.Content,
) (string, []core.Event, error) {
	runID, eventsCh, errorsCh, err := e.Invoke(ctx, sessionID, agentName, userContent)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	for {
		select {
		case <-ctx.Done():
			return runID, events, ctx.Err()

		case event, ok := <-eventsCh:
			if !ok {
				// Events channel closed - check for terminal error
				select {
				case err := <-errorsCh:
					return runID, events, err
				default:
					return runID, events, nil
				}
			}
			events = append(events, event)

		case err := <-errorsCh:
			if err != nil {
				return runID, events, err
			}
		}
	}
}

// StopRun cancels a running invocation by its run ID. The run's goroutines
// terminate and its channels close once cancellation propagates.
func (e *Engine) StopRun(runID string) error {
	e.runsMu.Lock()
	cancel, exists := e.activeRuns[runID]
	e.runsMu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()
	return nil
}

// GetSession retrieves a point-in-time snapshot of a session by ID.
func (e *Engine) GetSession(sessionID string) (*core.Session, error) {
	return e.sessionStore.Get(sessionID)
}

func (e *Engine) runAgent(rc *core.RunContext, agent core.Agent) error {
	if err := agent.Start(rc); err != nil {
		return err
	}
	defer func() {
		if err := agent.Stop(rc); err != nil {
			e.logger.Warn("engine.agent.stop.error", "agent", agent.Name(), "error", err.Error())
		}
	}()

	return agent.Run(rc)
}

// cleanupRun removes run tracking state and releases the concurrency slot.
// A non-nil cancel is invoked first (startup failure path); during a run the
// event pump owns cancellation.
func (e *Engine) cleanupRun(runID string, cancel context.CancelFunc) {
	if cancel != nil {
		cancel()
	}
	e.runsMu.Lock()
	delete(e.activeRuns, runID)
	e.runsMu.Unlock()
	e.release()
}

func (e *Engine) release() {
	if e.sem != nil {
		select {
		case <-e.sem:
		default:
		}
	}
}

// processEvents drains the agent emit channel: applies event actions,
// persists non-partial events, forwards them to the caller and signals
// resumption so the agent knows the event was persisted. Store errors are
// terminal for the run.
func (e *Engine) processEvents(
	ctx context.Context,
	sessionID string,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-agentEmit:
			if !ok {
				// Agent closed emit channel - normal completion
				return
			}

			if err := e.applyEventActions(sessionID, ev); err != nil {
				select {
				case <-ctx.Done():
					return
				case errorsCh <- fmt.Errorf("failed to process event actions: %w", err):
				}
				return
			}

			if !ev.IsPartial() {
				if err := e.sessionStore.AppendEvent(sessionID, ev); err != nil {
					select {
					case <-ctx.Done():
						return
					case errorsCh <- fmt.Errorf("failed to append event to session: %w", err):
					}
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case eventsCh <- ev:
				e.logger.Debug("engine.event.delivered", "event_id", ev.ID, "session_id", sessionID)
			}

			// Signal resumption for non-partial events
			if !ev.IsPartial() {
				select {
				case <-ctx.Done():
					return
				case resumeCh <- struct{}{}:
				default:
					// Channel full, skip signal (non-blocking)
				}
			}
		}
	}
}

// applyEventActions applies the side-effects encoded in an event's Actions
// field to the backing stores.
func (e *Engine) applyEventActions(sessionID string, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := e.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	if ev.Actions.TransferToAgent != nil && *ev.Actions.TransferToAgent != "" {
		e.logger.Debug("engine.event.transfer_to_agent", "target", *ev.Actions.TransferToAgent, "session_id", sessionID)
	}

	if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
		e.logger.Debug("engine.event.escalate", "session_id", sessionID)
	}

	return nil
}
