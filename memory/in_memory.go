package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fincoach/fincoach/core"
)

// storedMemory is the internal representation persisted by InMemoryStore.
type storedMemory struct {
	ID        string
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// InMemoryStore is a process-local MemoryStore keeping append-only memories
// per user with case-insensitive substring search. Suitable for tests and
// demos; swap for a vector backend (chromem, qdrant) for semantic retrieval.
//
// Concurrency: protected by RWMutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	storage map[string]map[string]storedMemory // userID -> memoryID -> memory
}

// NewInMemoryStore creates a new in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		storage: make(map[string]map[string]storedMemory),
	}
}

// Store appends a new memory under the user's scope.
func (m *InMemoryStore) Store(_ context.Context, userID string, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.storage[userID]; !exists {
		m.storage[userID] = make(map[string]storedMemory)
	}

	md := make(map[string]any, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}

	id := uuid.NewString()
	m.storage[userID][id] = storedMemory{
		ID:        id,
		Content:   content,
		Metadata:  md,
		CreatedAt: time.Now(),
	}

	return nil
}

// Search performs a case-insensitive substring match over the user's
// memories. Hits receive a constant score of 1.0 and are returned newest
// first up to limit. An empty query matches everything.
func (m *InMemoryStore) Search(_ context.Context, userID string, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userStorage, exists := m.storage[userID]
	if !exists {
		return []core.SearchResult{}, nil
	}

	needle := strings.ToLower(query)

	results := make([]core.SearchResult, 0, len(userStorage))
	for _, stored := range userStorage {
		if needle == "" || strings.Contains(strings.ToLower(stored.Content), needle) {
			results = append(results, toSearchResult(stored, 1.0))
		}
	}

	sortNewestFirst(results)

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// List returns every memory stored for the user, newest first.
func (m *InMemoryStore) List(_ context.Context, userID string) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userStorage, exists := m.storage[userID]
	if !exists {
		return []core.SearchResult{}, nil
	}

	results := make([]core.SearchResult, 0, len(userStorage))
	for _, stored := range userStorage {
		results = append(results, toSearchResult(stored, 1.0))
	}

	sortNewestFirst(results)

	return results, nil
}

// Delete removes a stored memory by id.
func (m *InMemoryStore) Delete(_ context.Context, userID string, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	userStorage, exists := m.storage[userID]
	if !exists {
		return fmt.Errorf("memory %s not found", memoryID)
	}

	if _, exists := userStorage[memoryID]; !exists {
		return fmt.Errorf("memory %s not found", memoryID)
	}

	delete(userStorage, memoryID)

	return nil
}

func toSearchResult(stored storedMemory, score float64) core.SearchResult {
	md := make(map[string]any, len(stored.Metadata))
	for k, v := range stored.Metadata {
		md[k] = v
	}

	return core.SearchResult{
		ID:        stored.ID,
		Content:   stored.Content,
		Score:     score,
		Metadata:  md,
		CreatedAt: stored.CreatedAt,
	}
}

func sortNewestFirst(results []core.SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
}
