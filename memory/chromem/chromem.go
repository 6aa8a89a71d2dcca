// Package chromem provides a MemoryStore backed by chromem-go, a pure Go
// embedded vector database. Memories are embedded on write and retrieved by
// cosine similarity, so search is semantic rather than substring-based. Each
// user gets an isolated collection.
package chromem

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	chromemgo "github.com/philippgille/chromem-go"

	"github.com/fincoach/fincoach/core"
	"github.com/fincoach/fincoach/memory/embedding"
)

type indexedMemory struct {
	ID        string
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Store implements core.MemoryStore on top of chromem-go. Everything lives in
// process memory; the vector index handles Search while a side index per user
// supports List and Delete, which chromem does not expose as enumeration.
type Store struct {
	db       *chromemgo.DB
	embedder embedding.Embedder

	mu          sync.RWMutex
	collections map[string]*chromemgo.Collection
	index       map[string]map[string]indexedMemory // userID -> memoryID -> memory
}

// New creates a chromem-backed store using the given embedder.
func New(embedder embedding.Embedder) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("chromem: embedder is required")
	}

	return &Store{
		db:          chromemgo.NewDB(),
		embedder:    embedder,
		collections: make(map[string]*chromemgo.Collection),
		index:       make(map[string]map[string]indexedMemory),
	}, nil
}

func (s *Store) getOrCreateCollection(userID string) (*chromemgo.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[userID]
	s.mu.RUnlock()

	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring the write lock.
	if col, exists := s.collections[userID]; exists {
		return col, nil
	}

	name := "user_" + userID
	if userID == "" {
		name = "global"
	}

	col, err := s.db.CreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s.collections[userID] = col
	return col, nil
}

// Store embeds the content and adds it to the user's collection.
func (s *Store) Store(ctx context.Context, userID string, content string, metadata map[string]any) error {
	col, err := s.getOrCreateCollection(userID)
	if err != nil {
		return err
	}

	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed content: %w", err)
	}

	id := uuid.NewString()
	createdAt := time.Now()

	docMeta := map[string]string{
		"created_at": createdAt.Format(time.RFC3339Nano),
	}
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		docMeta["metadata"] = string(raw)
	}

	err = col.AddDocument(ctx, chromemgo.Document{
		ID:        id,
		Content:   content,
		Embedding: vec,
		Metadata:  docMeta,
	})
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	md := make(map[string]any, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}

	s.mu.Lock()
	if _, exists := s.index[userID]; !exists {
		s.index[userID] = make(map[string]indexedMemory)
	}
	s.index[userID][id] = indexedMemory{
		ID:        id,
		Content:   content,
		Metadata:  md,
		CreatedAt: createdAt,
	}
	s.mu.Unlock()

	return nil
}

// Search embeds the query and returns the most similar memories, best match
// first. Similarity below zero is clamped so scores stay in [0,1].
func (s *Store) Search(ctx context.Context, userID string, query string, limit int) ([]core.SearchResult, error) {
	col, err := s.getOrCreateCollection(userID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 10
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// chromem requires nResults <= collection size; shrink until it fits.
	var hits []chromemgo.Result
	for current := limit; current >= 1; current-- {
		hits, err = col.QueryEmbedding(ctx, vec, current, nil, nil)
		if err == nil {
			break
		}

		if isInsufficientDocsError(err) {
			if current == 1 {
				return []core.SearchResult{}, nil
			}
			continue
		}

		return nil, fmt.Errorf("chromem query: %w", err)
	}

	results := make([]core.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, s.toSearchResult(userID, hit))
	}

	return results, nil
}

// List returns every memory stored for the user, newest first.
func (s *Store) List(_ context.Context, userID string) ([]core.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userIndex, exists := s.index[userID]
	if !exists {
		return []core.SearchResult{}, nil
	}

	results := make([]core.SearchResult, 0, len(userIndex))
	for _, mem := range userIndex {
		md := make(map[string]any, len(mem.Metadata))
		for k, v := range mem.Metadata {
			md[k] = v
		}
		results = append(results, core.SearchResult{
			ID:        mem.ID,
			Content:   mem.Content,
			Score:     1.0,
			Metadata:  md,
			CreatedAt: mem.CreatedAt,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	return results, nil
}

// Delete removes a memory from both the vector index and the side index.
func (s *Store) Delete(ctx context.Context, userID string, memoryID string) error {
	s.mu.Lock()
	userIndex, exists := s.index[userID]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("memory %s not found", memoryID)
	}
	if _, exists := userIndex[memoryID]; !exists {
		s.mu.Unlock()
		return fmt.Errorf("memory %s not found", memoryID)
	}
	delete(userIndex, memoryID)
	col := s.collections[userID]
	s.mu.Unlock()

	if err := col.Delete(ctx, nil, nil, memoryID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	return nil
}

func (s *Store) toSearchResult(userID string, hit chromemgo.Result) core.SearchResult {
	score := float64(hit.Similarity)
	if score < 0 {
		score = 0
	}

	result := core.SearchResult{
		ID:      hit.ID,
		Content: hit.Content,
		Score:   score,
	}

	if raw, ok := hit.Metadata["created_at"]; ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			result.CreatedAt = t
		}
	}
	if raw, ok := hit.Metadata["metadata"]; ok {
		var md map[string]any
		if err := json.Unmarshal([]byte(raw), &md); err == nil {
			result.Metadata = md
		}
	}
	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}

	return result
}

func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
