package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/relaycore/agentd/pkg/toolregistry"
)

// RegisterTools wires memory_search, memory_write, memory_delete,
// memory_list, writeMemoryEntry, writeGoalEntry, and rememberThis into
// registry. memory_search is skipped if manager has no search engine
// configured.
func RegisterTools(registry *toolregistry.Registry, manager *Manager) error {
	if manager.Search() != nil {
		if err := registry.Register(toolregistry.ToolDefinition{
			Name:        "memory_search",
			Description: "Search memory files by query using hybrid vector and keyword search",
			Parameters: []toolregistry.ToolParameter{
				{Name: "query", Type: "string", Description: "Search query", Required: true},
				{Name: "limit", Type: "integer", Description: "Maximum number of results to return", Default: 20},
				{Name: "vector_weight", Type: "number", Description: "Weight for vector similarity (0-1)", Default: 0.7},
				{Name: "keyword_weight", Type: "number", Description: "Weight for keyword matching (0-1)", Default: 0.3},
				{Name: "min_score", Type: "number", Description: "Minimum relevance score threshold", Default: 0.0},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				result, err := MemorySearch(ctx, manager.Search(), MemorySearchParams{
					Query:         stringArg(args, "query"),
					Limit:         intArg(args, "limit"),
					VectorWeight:  floatArg(args, "vector_weight"),
					KeywordWeight: floatArg(args, "keyword_weight"),
					MinScore:      floatArg(args, "min_score"),
				})
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d results for %q", result.Count, result.Query), nil
			},
		}); err != nil {
			return err
		}
	}

	if err := registry.Register(toolregistry.ToolDefinition{
		Name:        "memory_write",
		Description: "Create or update a memory file",
		Parameters: []toolregistry.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative path to the memory file (must end with .md)", Required: true},
			{Name: "content", Type: "string", Description: "Content to write to the file", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			result, err := MemoryWrite(ctx, manager.Search(), manager.WorkspacePath(), MemoryWriteParams{
				Path:    stringArg(args, "path"),
				Content: stringArg(args, "content"),
			})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("wrote %d bytes to %s", result.BytesWritten, result.Path), nil
		},
	}); err != nil {
		return err
	}

	if err := registry.Register(toolregistry.ToolDefinition{
		Name:        "memory_delete",
		Description: "Delete a memory file",
		Parameters: []toolregistry.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative path to the memory file to delete", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			result, err := MemoryDelete(ctx, manager.Search(), manager.WorkspacePath(), MemoryDeleteParams{
				Path: stringArg(args, "path"),
			})
			if err != nil {
				return "", err
			}
			if !result.Deleted {
				return fmt.Sprintf("%s did not exist", result.Path), nil
			}
			return fmt.Sprintf("deleted %s", result.Path), nil
		},
	}); err != nil {
		return err
	}

	if err := registry.Register(toolregistry.ToolDefinition{
		Name:        "memory_list",
		Description: "List all memory files with metadata",
		Parameters: []toolregistry.ToolParameter{
			{Name: "pattern", Type: "string", Description: "Optional glob pattern to filter files"},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			result, err := MemoryList(ctx, manager.WorkspacePath(), MemoryListParams{Pattern: stringArg(args, "pattern")})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d memory files", result.Count), nil
		},
	}); err != nil {
		return err
	}

	if err := registry.Register(toolregistry.ToolDefinition{
		Name:        "writeMemoryEntry",
		Description: "Append a bullet to the semantic or procedural memory store",
		Parameters: []toolregistry.ToolParameter{
			{Name: "store", Type: "string", Description: "semantic or procedural", Required: true},
			{Name: "content", Type: "string", Description: "Entry text", Required: true},
			{Name: "section", Type: "string", Description: "Section heading, store-specific default if omitted"},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return manager.WriteMemoryEntry(stringArg(args, "store"), stringArg(args, "content"), stringArg(args, "section"))
		},
	}); err != nil {
		return err
	}

	if err := registry.Register(toolregistry.ToolDefinition{
		Name:        "writeGoalEntry",
		Description: "Create or update a persistent goal",
		Parameters: []toolregistry.ToolParameter{
			{Name: "title", Type: "string", Description: "Goal title", Required: true},
			{Name: "progress", Type: "string", Description: "Progress note to append"},
			{Name: "status", Type: "string", Description: "active, completed, paused, or cancelled"},
			{Name: "tags", Type: "array", Description: "Tags to merge onto the goal"},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return manager.WriteGoalEntry(stringArg(args, "title"), stringArg(args, "progress"), stringArg(args, "status"), stringsArg(args, "tags"))
		},
	}); err != nil {
		return err
	}

	if err := registry.Register(toolregistry.ToolDefinition{
		Name:        "rememberThis",
		Description: "Record a fact to semantic memory, upsert a goal, and log it to today's episodic file",
		Parameters: []toolregistry.ToolParameter{
			{Name: "text", Type: "string", Description: "The statement to remember", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return manager.RememberThis(stringArg(args, "text"), time.Now())
		},
	}); err != nil {
		return err
	}

	return nil
}

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func floatArg(args map[string]interface{}, key string) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return 0
}

func stringsArg(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
