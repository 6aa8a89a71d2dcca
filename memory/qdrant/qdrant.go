// Package qdrant provides a MemoryStore backed by a Qdrant server over its
// REST API. All users share one collection; isolation is enforced with a
// user_id payload filter on every query.
// Reference: https://qdrant.tech/documentation/concepts/search/
package qdrant

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/fincoach/fincoach/core"
	"github.com/fincoach/fincoach/memory/embedding"
)

const (
	defaultCollection = "fincoach_memories"
	defaultTimeout    = 30 * time.Second
	scrollPageSize    = 100
)

// Config holds connection settings for a Qdrant server.
type Config struct {
	APIBase    string
	APIKey     string
	Collection string
	Timeout    time.Duration

	// ScoreThreshold drops search hits below this cosine similarity on the
	// server side. Zero means no cutoff.
	ScoreThreshold float64

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Store implements core.MemoryStore against a Qdrant instance.
type Store struct {
	client         *http.Client
	apiBase        string
	apiKey         string
	collection     string
	scoreThreshold float64
	embedder       embedding.Embedder
}

// New creates a Qdrant-backed store. Call EnsureCollection before first use.
func New(cfg Config, embedder embedding.Embedder) (*Store, error) {
	if cfg.APIBase == "" {
		return nil, fmt.Errorf("qdrant api_base is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("qdrant embedder is required")
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Store{
		client:         client,
		apiBase:        cfg.APIBase,
		apiKey:         cfg.APIKey,
		collection:     cfg.Collection,
		scoreThreshold: cfg.ScoreThreshold,
		embedder:       embedder,
	}, nil
}

// EnsureCollection creates the collection with cosine distance if it does not
// exist yet.
func (s *Store) EnsureCollection(ctx context.Context) error {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}

	createBody := map[string]any{
		"vectors": map[string]any{
			"size":     s.embedder.Dimensions(),
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", s.apiBase, s.collection)
	return s.do(ctx, http.MethodPut, url, createBody, nil)
}

func (s *Store) collectionExists(ctx context.Context) (bool, error) {
	var result struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}

	url := fmt.Sprintf("%s/collections/%s/exists", s.apiBase, s.collection)
	if err := s.do(ctx, http.MethodGet, url, nil, &result); err != nil {
		return false, err
	}

	return result.Result.Exists, nil
}

// Store embeds the content and upserts it as a single point with the user id
// in the payload.
func (s *Store) Store(ctx context.Context, userID string, content string, metadata map[string]any) error {
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed content: %w", err)
	}

	point := qdrantPoint{
		ID:     uuid.NewString(),
		Vector: vec,
		Payload: qdrantPayload{
			UserID:    userID,
			Content:   content,
			Metadata:  metadata,
			CreatedAt: time.Now().Format(time.RFC3339Nano),
		},
	}

	url := fmt.Sprintf("%s/collections/%s/points", s.apiBase, s.collection)
	if err := s.do(ctx, http.MethodPut, url, map[string]any{"points": []qdrantPoint{point}}, nil); err != nil {
		return fmt.Errorf("upsert point: %w", err)
	}

	return nil
}

// Search embeds the query and runs a filtered similarity search.
func (s *Store) Search(ctx context.Context, userID string, query string, limit int) ([]core.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	searchBody := map[string]any{
		"vector":       vec,
		"limit":        limit,
		"with_payload": true,
		"filter":       userFilter(userID),
	}
	if s.scoreThreshold > 0 {
		searchBody["score_threshold"] = s.scoreThreshold
	}

	var searchResp struct {
		Result []qdrantScoredPoint `json:"result"`
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", s.apiBase, s.collection)
	if err := s.do(ctx, http.MethodPost, url, searchBody, &searchResp); err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	results := make([]core.SearchResult, 0, len(searchResp.Result))
	for _, p := range searchResp.Result {
		results = append(results, toSearchResult(p.ID, p.Payload, p.Score))
	}

	return results, nil
}

// List scrolls through every point owned by the user, newest first.
func (s *Store) List(ctx context.Context, userID string) ([]core.SearchResult, error) {
	url := fmt.Sprintf("%s/collections/%s/points/scroll", s.apiBase, s.collection)

	var results []core.SearchResult
	var offset any

	for {
		scrollBody := map[string]any{
			"limit":        scrollPageSize,
			"with_payload": true,
			"filter":       userFilter(userID),
		}
		if offset != nil {
			scrollBody["offset"] = offset
		}

		var scrollResp struct {
			Result struct {
				Points         []qdrantScoredPoint `json:"points"`
				NextPageOffset any                 `json:"next_page_offset"`
			} `json:"result"`
		}

		if err := s.do(ctx, http.MethodPost, url, scrollBody, &scrollResp); err != nil {
			return nil, fmt.Errorf("scroll points: %w", err)
		}

		for _, p := range scrollResp.Result.Points {
			results = append(results, toSearchResult(p.ID, p.Payload, 1.0))
		}

		if scrollResp.Result.NextPageOffset == nil {
			break
		}
		offset = scrollResp.Result.NextPageOffset
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	if results == nil {
		results = []core.SearchResult{}
	}

	return results, nil
}

// Delete removes a single point by id.
func (s *Store) Delete(ctx context.Context, _ string, memoryID string) error {
	url := fmt.Sprintf("%s/collections/%s/points/delete", s.apiBase, s.collection)
	if err := s.do(ctx, http.MethodPost, url, map[string]any{"points": []string{memoryID}}, nil); err != nil {
		return fmt.Errorf("delete point: %w", err)
	}

	return nil
}

// Ping checks that the server answers.
func (s *Store) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/collections", s.apiBase)
	return s.do(ctx, http.MethodGet, url, nil, nil)
}

// do sends a JSON request and decodes the response into out when non-nil.
func (s *Store) do(ctx context.Context, method, url string, body any, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant request failed: status=%d, body=%s", resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func userFilter(userID string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{
				"key":   "user_id",
				"match": map[string]any{"value": userID},
			},
		},
	}
}

func toSearchResult(id string, payload qdrantPayload, score float64) core.SearchResult {
	result := core.SearchResult{
		ID:       id,
		Content:  payload.Content,
		Score:    score,
		Metadata: payload.Metadata,
	}
	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	if t, err := time.Parse(time.RFC3339Nano, payload.CreatedAt); err == nil {
		result.CreatedAt = t
	}

	return result
}

// Qdrant API types

type qdrantPoint struct {
	ID      string        `json:"id"`
	Vector  []float32     `json:"vector"`
	Payload qdrantPayload `json:"payload"`
}

type qdrantPayload struct {
	UserID    string         `json:"user_id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"created_at,omitempty"`
}

type qdrantScoredPoint struct {
	ID      string        `json:"id"`
	Score   float64       `json:"score"`
	Payload qdrantPayload `json:"payload"`
}
