package core

import "context"

// MemoryStore defines persistence + retrieval (search) for long-term memory
// snippets scoped by user. Implementations can back search with embeddings,
// keywords or any heuristic. Blocking operations accept a context because
// implementations may call out to external vector / search services.
type MemoryStore interface {
	// Store persists content plus metadata under the user's scope.
	Store(ctx context.Context, userID string, content string, metadata map[string]any) error

	// Search returns up to limit results relevant to query, most relevant
	// first. Scores are in [0,1].
	Search(ctx context.Context, userID string, query string, limit int) ([]SearchResult, error)

	// List returns all stored memories for the user, newest first.
	List(ctx context.Context, userID string) ([]SearchResult, error)

	// Delete removes a single memory by id.
	Delete(ctx context.Context, userID string, memoryID string) error
}
