package artifact

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincoach/fincoach/core"
)

var _ core.ArtifactStore = (*InMemoryStore)(nil)

func TestInMemoryStore_CopiesOnSaveAndGet(t *testing.T) {
	store := NewInMemoryStore()

	chart := []byte(`{"title":"Budget Allocation"}`)
	require.NoError(t, store.Save("sess-1", "chart_budget.json", chart))

	// Mutating the caller's slice must not reach the stored copy.
	chart[2] = 'X'
	out, err := store.Get("sess-1", "chart_budget.json")
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Budget Allocation"}`, string(out))

	// Nor must mutating a returned slice.
	out[2] = 'Y'
	again, err := store.Get("sess-1", "chart_budget.json")
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Budget Allocation"}`, string(again))
}

func TestInMemoryStore_ListAndDelete(t *testing.T) {
	store := NewInMemoryStore()
	require.NoError(t, store.Save("sess-1", "chart_allocation.json", []byte("1")))
	require.NoError(t, store.Save("sess-1", "chart_performance.json", []byte("2")))

	ids, err := store.List("sess-1")
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	require.NoError(t, store.Delete("sess-1", "chart_allocation.json"))

	_, err = store.Get("sess-1", "chart_allocation.json")
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err = store.List("sess-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"chart_performance.json"}, ids)
}

func TestInMemoryStore_SessionIsolation(t *testing.T) {
	store := NewInMemoryStore()
	require.NoError(t, store.Save("sess-1", "chart.json", []byte("one")))
	require.NoError(t, store.Save("sess-2", "chart.json", []byte("two")))

	out, err := store.Get("sess-2", "chart.json")
	require.NoError(t, err)
	assert.Equal(t, "two", string(out))

	ids, err := store.List("sess-1")
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestInMemoryStore_ConcurrentSaves(t *testing.T) {
	store := NewInMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("chart_%d.json", i%10)
			assert.NoError(t, store.Save("sess-1", id, []byte("data")))
			_, _ = store.List("sess-1")
		}(i)
	}
	wg.Wait()

	ids, err := store.List("sess-1")
	require.NoError(t, err)
	assert.Len(t, ids, 10)
}
