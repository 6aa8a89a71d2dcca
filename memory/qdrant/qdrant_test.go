package qdrant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincoach/fincoach/core"
	"github.com/fincoach/fincoach/memory/embedding"
)

var _ core.MemoryStore = (*Store)(nil)

// fakeQdrant emulates the subset of the Qdrant REST API the store uses.
type fakeQdrant struct {
	t      *testing.T
	points map[string]qdrantPoint
	exists bool
	apiKey string
}

func newFakeQdrant(t *testing.T) *fakeQdrant {
	return &fakeQdrant{t: t, points: make(map[string]qdrantPoint)}
}

func (f *fakeQdrant) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /collections", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"result": map[string]any{}})
	})

	mux.HandleFunc("GET /collections/{name}/exists", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"result": map[string]any{"exists": f.exists}})
	})

	mux.HandleFunc("PUT /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(f.t, "Cosine", body.Vectors.Distance)
		assert.Positive(f.t, body.Vectors.Size)

		f.exists = true
		writeJSON(w, map[string]any{"result": true})
	})

	mux.HandleFunc("PUT /collections/{name}/points", func(w http.ResponseWriter, r *http.Request) {
		f.apiKey = r.Header.Get("api-key")

		var body struct {
			Points []qdrantPoint `json:"points"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		for _, p := range body.Points {
			f.points[p.ID] = p
		}
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})
	})

	mux.HandleFunc("POST /collections/{name}/points/search", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Limit  int            `json:"limit"`
			Filter map[string]any `json:"filter"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))

		userID := filterUserID(f.t, body.Filter)

		var result []qdrantScoredPoint
		for _, p := range f.points {
			if p.Payload.UserID != userID {
				continue
			}
			result = append(result, qdrantScoredPoint{ID: p.ID, Score: 0.9, Payload: p.Payload})
			if len(result) == body.Limit {
				break
			}
		}
		writeJSON(w, map[string]any{"result": result})
	})

	mux.HandleFunc("POST /collections/{name}/points/scroll", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Filter map[string]any `json:"filter"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))

		userID := filterUserID(f.t, body.Filter)

		var points []qdrantScoredPoint
		for _, p := range f.points {
			if p.Payload.UserID == userID {
				points = append(points, qdrantScoredPoint{ID: p.ID, Payload: p.Payload})
			}
		}
		writeJSON(w, map[string]any{"result": map[string]any{
			"points":           points,
			"next_page_offset": nil,
		}})
	})

	mux.HandleFunc("POST /collections/{name}/points/delete", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Points []string `json:"points"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		for _, id := range body.Points {
			delete(f.points, id)
		}
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})
	})

	return mux
}

func filterUserID(t *testing.T, filter map[string]any) string {
	t.Helper()

	must, ok := filter["must"].([]any)
	require.True(t, ok, "filter must clause missing")
	require.Len(t, must, 1)

	clause := must[0].(map[string]any)
	assert.Equal(t, "user_id", clause["key"])

	match := clause["match"].(map[string]any)
	return match["value"].(string)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestStore(t *testing.T) (*Store, *fakeQdrant) {
	t.Helper()

	fake := newFakeQdrant(t)
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	store, err := New(Config{
		APIBase: srv.URL,
		APIKey:  "secret",
	}, embedding.NewLocalEmbedder())
	require.NoError(t, err)

	return store, fake
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, embedding.NewLocalEmbedder())
	assert.ErrorContains(t, err, "api_base is required")

	_, err = New(Config{APIBase: "http://localhost:6333"}, nil)
	assert.ErrorContains(t, err, "embedder is required")
}

func TestStore_EnsureCollection(t *testing.T) {
	store, fake := newTestStore(t)

	require.NoError(t, store.EnsureCollection(context.Background()))
	assert.True(t, fake.exists)

	// Second call is a no-op because the collection now exists.
	require.NoError(t, store.EnsureCollection(context.Background()))
}

func TestStore_StoreAndSearch(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, "alice", "save 800 per month for retirement", map[string]any{"topic": "savings"}))
	require.NoError(t, store.Store(ctx, "bob", "bob likes bonds", nil))

	assert.Equal(t, "secret", fake.apiKey)
	assert.Len(t, fake.points, 2)

	results, err := store.Search(ctx, "alice", "retirement savings", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "save 800 per month for retirement", results[0].Content)
	assert.Equal(t, "savings", results[0].Metadata["topic"])
	assert.InDelta(t, 0.9, results[0].Score, 1e-9)
	assert.False(t, results[0].CreatedAt.IsZero())
}

func TestStore_ListNewestFirst(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		require.NoError(t, store.Store(ctx, "alice", content, nil))
		time.Sleep(2 * time.Millisecond)
	}

	results, err := store.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "third", results[0].Content)
	assert.Equal(t, "first", results[2].Content)
}

func TestStore_ListEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	results, err := store.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_Delete(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, "alice", "temporary", nil))
	require.Len(t, fake.points, 1)

	var id string
	for pid := range fake.points {
		id = pid
	}

	require.NoError(t, store.Delete(ctx, "alice", id))
	assert.Empty(t, fake.points)
}

func TestStore_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"status":{"error":"wrong input"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	store, err := New(Config{APIBase: srv.URL}, embedding.NewLocalEmbedder())
	require.NoError(t, err)

	err = store.Store(context.Background(), "alice", "anything", nil)
	assert.ErrorContains(t, err, "status=400")
}
