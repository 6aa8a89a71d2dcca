package core

import (
	"context"
)

type testLogger struct{}

func (l testLogger) Debug(string, ...interface{}) {}
func (l testLogger) Info(string, ...interface{})  {}
func (l testLogger) Warn(string, ...interface{})  {}
func (l testLogger) Error(string, ...interface{}) {}

// fakeSessionStore records applied deltas so tests can assert what a commit
// pushed to the store.
type fakeSessionStore struct {
	applied map[string]map[string]interface{}
}

func (s *fakeSessionStore) Get(id string) (*Session, error)       { return NewSession(id), nil }
func (s *fakeSessionStore) Create(id string) (*Session, error)    { return NewSession(id), nil }
func (s *fakeSessionStore) AppendEvent(id string, ev Event) error { return nil }

func (s *fakeSessionStore) ApplyDelta(id string, delta map[string]interface{}) error {
	if s.applied == nil {
		s.applied = map[string]map[string]interface{}{}
	}
	cp := make(map[string]interface{}, len(delta))
	for k, v := range delta {
		cp[k] = v
	}
	s.applied[id] = cp
	return nil
}

type fakeArtifactStore struct {
	saved map[string]map[string][]byte
}

func (a *fakeArtifactStore) Save(sessionID, artifactID string, data []byte) error {
	if a.saved == nil {
		a.saved = map[string]map[string][]byte{}
	}
	if _, ok := a.saved[sessionID]; !ok {
		a.saved[sessionID] = map[string][]byte{}
	}
	a.saved[sessionID][artifactID] = append([]byte(nil), data...)
	return nil
}

func (a *fakeArtifactStore) Get(sessionID, artifactID string) ([]byte, error) {
	if m, ok := a.saved[sessionID]; ok {
		return m[artifactID], nil
	}
	return nil, nil
}

func (a *fakeArtifactStore) List(sessionID string) ([]string, error) {
	ids := []string{}
	for id := range a.saved[sessionID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *fakeArtifactStore) Delete(sessionID, artifactID string) error { return nil }

type fakeMemoryStore struct{}

func (m *fakeMemoryStore) Store(ctx context.Context, userID, content string, metadata map[string]any) error {
	return nil
}

func (m *fakeMemoryStore) Search(ctx context.Context, userID, q string, limit int) ([]SearchResult, error) {
	return []SearchResult{}, nil
}

func (m *fakeMemoryStore) List(ctx context.Context, userID string) ([]SearchResult, error) {
	return []SearchResult{}, nil
}

func (m *fakeMemoryStore) Delete(ctx context.Context, userID, memoryID string) error { return nil }

func newRunContextForTest() (*RunContext, chan Event) {
	emit := make(chan Event, 5)
	resume := make(chan struct{}, 5)
	sess := NewSession("sess-x")
	return NewRunContext(
		context.Background(), "sess-x", "run-x",
		AgentInfo{Name: "coach", Type: "test"},
		Content{}, 0, emit, resume, sess,
		&fakeSessionStore{}, &fakeArtifactStore{}, &fakeMemoryStore{}, testLogger{},
	), emit
}
