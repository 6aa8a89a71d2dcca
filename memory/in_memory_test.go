package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/fincoach/fincoach/core"
)

// Interface compliance (compile-time assertions)
var _ core.MemoryStore = (*InMemoryStore)(nil)

func TestInMemoryStore_StoreSearchDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()
	// store memories
	for i := 0; i < 5; i++ {
		if err := svc.Store(ctx, "user-1", "content"+string(rune('A'+i)), map[string]any{"idx": i}); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}
	// search all (empty query) limit larger than stored
	res, err := svc.Search(ctx, "user-1", "", 10)
	if err != nil {
		t.Fatalf("search all failed: %v", err)
	}
	if len(res) != 5 {
		t.Fatalf("expected 5 results, got %d", len(res))
	}
	// search with query substring, case insensitive
	res2, _ := svc.Search(ctx, "user-1", "contenta", 5)
	if len(res2) != 1 || res2[0].Content != "contentA" {
		t.Fatalf("expected single match, got %#v", res2)
	}
	// limit test
	res3, _ := svc.Search(ctx, "user-1", "", 3)
	if len(res3) != 3 {
		t.Fatalf("expected 3 limited results, got %d", len(res3))
	}
	// delete existing id (take first)
	if err := svc.Delete(ctx, "user-1", res[0].ID); err != nil {
		t.Fatalf("delete existing failed: %v", err)
	}
	res4, _ := svc.Search(ctx, "user-1", "", 10)
	if len(res4) != 4 {
		t.Fatalf("expected 4 after delete, got %d", len(res4))
	}
	// delete nonexistent
	if err := svc.Delete(ctx, "user-1", "does_not_exist"); err == nil {
		t.Fatalf("expected error deleting nonexistent memory")
	}
}

func TestInMemoryStore_UserIsolation(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()
	if err := svc.Store(ctx, "alice", "prefers index funds", nil); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if err := svc.Store(ctx, "bob", "prefers bonds", nil); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	res, err := svc.Search(ctx, "alice", "prefers", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(res) != 1 || res[0].Content != "prefers index funds" {
		t.Fatalf("expected only alice's memory, got %#v", res)
	}
	other, _ := svc.List(ctx, "bob")
	if len(other) != 1 {
		t.Fatalf("expected one memory for bob, got %d", len(other))
	}
}

func TestInMemoryStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()
	for i := 0; i < 3; i++ {
		if err := svc.Store(ctx, "user-2", fmt.Sprintf("note %d", i), nil); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}
	res, err := svc.List(ctx, "user-2")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("expected 3 memories, got %d", len(res))
	}
	for i := 1; i < len(res); i++ {
		if res[i].CreatedAt.After(res[i-1].CreatedAt) {
			t.Fatalf("expected newest first ordering, got %v before %v", res[i-1].CreatedAt, res[i].CreatedAt)
		}
	}
}

func TestInMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()
	wg := sync.WaitGroup{}
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := svc.Store(ctx, "user-3", fmt.Sprintf("memory %d", i), map[string]any{"idx": i}); err != nil {
				t.Errorf("store error: %v", err)
			}
			if _, err := svc.Search(ctx, "user-3", "memory", 5); err != nil {
				t.Errorf("search error: %v", err)
			}
			if _, err := svc.List(ctx, "user-3"); err != nil {
				t.Errorf("list error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	res, _ := svc.List(ctx, "user-3")
	if len(res) != 25 {
		t.Fatalf("expected 25 memories after concurrent stores, got %d", len(res))
	}
}
