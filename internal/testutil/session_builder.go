package testutil

import (
	"github.com/fincoach/fincoach/core"
)

// SessionBuilder assembles a *core.Session with preset state and history.
//
//	sess := NewSessionBuilder("sess-1").
//	    State("user_name", "Alice").
//	    Events(userTurn, assistantTurn).
//	    Build()
type SessionBuilder struct {
	id     string
	state  map[string]any
	events []core.Event
}

func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, state: map[string]any{}}
}

// State seeds a session state key.
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// Event appends one event to the session history.
func (b *SessionBuilder) Event(ev core.Event) *SessionBuilder {
	b.events = append(b.events, ev)
	return b
}

// Events appends several events to the session history.
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	for k, v := range b.state {
		s.State[k] = v
	}
	s.Events = append(s.Events, b.events...)
	return s
}
