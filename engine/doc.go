// Package engine implements the orchestration layer that coordinates agent
// execution against the backing stores.
//
// The Engine owns a thread-safe agent registry and manages the complete
// lifecycle of a run: it persists the user's input, executes the agent in a
// dedicated goroutine, applies event actions (state deltas, transfers,
// escalations) to the session store, appends non-partial events to session
// history and streams events to the caller. A resume signal per persisted
// event keeps multi-turn flows ordered.
//
// Two execution styles are offered: Invoke returns streaming event and error
// channels for interactive consumption, while InvokeSync drains the stream
// and returns the collected events. Concurrent runs are bounded by
// Config.MaxConcurrentRuns and individual runs are capped at
// Config.MaxModelCalls model invocations.
//
// Basic usage:
//
//	eng := engine.New(
//	    engine.WithSessionStore(sessionStore),
//	    engine.WithMemoryStore(memoryStore),
//	    engine.WithLogger(logger),
//	)
//	eng.Register(agent.NewModelAgent("Assistant", llm))
//
//	runID, events, errs, err := eng.Invoke(ctx, "session-1", "Assistant", userContent)
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    handleEvent(ev)
//	}
//	if err := <-errs; err != nil {
//	    return err
//	}
//	_ = runID // usable for StopRun
package engine
