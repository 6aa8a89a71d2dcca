package assistant

import (
	"context"
	"fmt"

	"github.com/fincoach/fincoach/core"
	"github.com/fincoach/fincoach/tool"
)

const preferencesPrefix = "USER PREFERENCES: "

// InitializePreferences stores the user's stated preferences as a long-term
// memory so every agent type can recall them later.
func (s *Service) InitializePreferences(ctx context.Context, userID, preferences string) error {
	if preferences == "" {
		return fmt.Errorf("preferences must not be empty")
	}
	if userID == "" {
		userID = s.defaultUser
	}

	err := s.memoryStore.Store(ctx, userID, preferencesPrefix+preferences, map[string]any{
		"kind": "preferences",
	})
	if err != nil {
		return fmt.Errorf("store preferences: %w", err)
	}

	s.logger.Info("assistant.preferences.initialized", "user_id", userID)

	return nil
}

// newSetPreferenceTool lets the memory agent record a single preference into
// session state (via the state delta) and into long-term memory at once.
func newSetPreferenceTool() tool.Tool {
	return tool.NewFunctionTool(
		"set_user_preference",
		"Record a user preference so future conversations can use it",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": map[string]any{
					"type":        "string",
					"description": "Preference name, e.g. risk_tolerance",
				},
				"value": map[string]any{
					"type":        "string",
					"description": "Preference value, e.g. moderate",
				},
			},
			"required": []string{"key", "value"},
		},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			key, _ := args["key"].(string)
			value, _ := args["value"].(string)
			if key == "" || value == "" {
				return nil, fmt.Errorf("key and value are required")
			}

			toolCtx.SetState("pref_"+key, value)

			if err := toolCtx.StoreMemory(
				fmt.Sprintf("%s%s = %s", preferencesPrefix, key, value),
				map[string]any{"kind": "preferences", "key": key},
			); err != nil {
				return nil, fmt.Errorf("store preference: %w", err)
			}

			return map[string]any{
				"key":     key,
				"value":   value,
				"success": true,
			}, nil
		},
	)
}
