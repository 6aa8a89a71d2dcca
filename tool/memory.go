package tool

import (
	"fmt"

	"github.com/fincoach/fincoach/core"
)

// MemoryTool lets an agent persist and recall user-scoped memories through
// ToolContext. The model picks an operation and the tool dispatches against
// the configured MemoryStore, so the same tool works with the in-memory,
// chromem or qdrant backends.
type MemoryTool struct {
	name        string
	description string
}

// NewMemoryTool creates a memory management tool supporting the operations
// store_memory, search_memory, list_memories and delete_memory.
func NewMemoryTool() *MemoryTool {
	return &MemoryTool{
		name: "manage_memory",
		description: "Manages long-term memories about the user. " +
			"Supports operations: store_memory (save a fact worth remembering), " +
			"search_memory (recall relevant facts), list_memories (show everything stored), " +
			"delete_memory (forget a memory by id).",
	}
}

// Name returns the tool identifier.
func (t *MemoryTool) Name() string {
	return t.name
}

// Description returns the tool description.
func (t *MemoryTool) Description() string {
	return t.description
}

// Parameters returns the JSON schema for tool parameters.
func (t *MemoryTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"operation": map[string]interface{}{
				"type": "string",
				"enum": []string{
					"store_memory", "search_memory", "list_memories", "delete_memory",
				},
				"description": "The memory operation to perform",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Content to store (store_memory)",
			},
			"metadata": map[string]interface{}{
				"type":        "object",
				"description": "Optional metadata attached to the stored memory",
			},
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search query (search_memory)",
			},
			"memory_id": map[string]interface{}{
				"type":        "string",
				"description": "Memory identifier (delete_memory)",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum results for search_memory (default: 10)",
				"default":     10,
			},
		},
		"required": []string{"operation"},
	}
}

// Call implements the Tool interface with structured arguments.
func (t *MemoryTool) Call(toolCtx *core.ToolContext, args map[string]interface{}) (interface{}, error) {
	operation, ok := args["operation"].(string)
	if !ok {
		return nil, fmt.Errorf("operation parameter is required")
	}

	switch operation {
	case "store_memory":
		return t.handleStore(args, toolCtx)
	case "search_memory":
		return t.handleSearch(args, toolCtx)
	case "list_memories":
		return t.handleList(toolCtx)
	case "delete_memory":
		return t.handleDelete(args, toolCtx)
	default:
		return nil, fmt.Errorf("unknown operation: %s", operation)
	}
}

func (t *MemoryTool) handleStore(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	content, ok := args["content"].(string)
	if !ok || content == "" {
		return nil, fmt.Errorf("content parameter is required for store_memory operation")
	}

	metadata := make(map[string]interface{})
	if m, ok := args["metadata"].(map[string]interface{}); ok {
		metadata = m
	}

	if err := toolCtx.StoreMemory(content, metadata); err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}

	return map[string]interface{}{
		"content":  content,
		"metadata": metadata,
		"success":  true,
		"message":  "Memory stored successfully",
	}, nil
}

func (t *MemoryTool) handleSearch(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	query, ok := args["query"].(string)
	if !ok {
		return nil, fmt.Errorf("query parameter is required for search_memory operation")
	}

	limit := 10
	if l, ok := args["limit"].(float64); ok {
		limit = int(l)
	}

	results, err := toolCtx.SearchMemory(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search memory: %w", err)
	}

	return map[string]interface{}{
		"query":   query,
		"limit":   limit,
		"count":   len(results),
		"results": formatMemories(results),
		"success": true,
	}, nil
}

func (t *MemoryTool) handleList(toolCtx *core.ToolContext) (interface{}, error) {
	results, err := toolCtx.ListMemories()
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}

	return map[string]interface{}{
		"count":    len(results),
		"memories": formatMemories(results),
		"success":  true,
	}, nil
}

func (t *MemoryTool) handleDelete(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	memoryID, ok := args["memory_id"].(string)
	if !ok || memoryID == "" {
		return nil, fmt.Errorf("memory_id parameter is required for delete_memory operation")
	}

	if err := toolCtx.DeleteMemory(memoryID); err != nil {
		return nil, fmt.Errorf("failed to delete memory: %w", err)
	}

	return map[string]interface{}{
		"memory_id": memoryID,
		"success":   true,
		"message":   fmt.Sprintf("Memory '%s' deleted", memoryID),
	}, nil
}

// formatMemories converts search results into plain maps so the model sees a
// stable JSON shape regardless of the backing store.
func formatMemories(results []core.SearchResult) []map[string]interface{} {
	out := make([]map[string]interface{}, len(results))
	for i, r := range results {
		out[i] = map[string]interface{}{
			"id":         r.ID,
			"content":    r.Content,
			"score":      r.Score,
			"metadata":   r.Metadata,
			"created_at": r.CreatedAt,
		}
	}
	return out
}
