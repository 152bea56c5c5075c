package coretools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/relaycore/agentd/pkg/sandbox"
	"github.com/relaycore/agentd/pkg/toolregistry"
)

// Options configures core tool registration. Sandbox is optional; when nil
// the exec tool refuses to run rather than falling back to the host shell.
type Options struct {
	WorkspaceRoot string
	Sandbox       sandbox.Sandbox
}

type hunkLine struct {
	kind byte
	text string
}

type hunk struct {
	start int
	lines []hunkLine
}

type filePatch struct {
	path  string
	hunks []hunk
}

// RegisterCoreTools registers baseline runtime and filesystem tools.
func RegisterCoreTools(registry *toolregistry.Registry, opts Options) error {
	if registry == nil {
		return errors.New("tool registry is required")
	}

	tools := []toolregistry.ToolDefinition{
		execTool(opts),
		readFileTool(opts),
		writeFileTool(opts),
		editFileTool(opts),
		applyPatchTool(opts),
	}

	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}
	return nil
}

func execTool(opts Options) toolregistry.ToolDefinition {
	return toolregistry.ToolDefinition{
		Name:        "exec",
		Description: "Execute a shell command in the configured sandbox.",
		Parameters: []toolregistry.ToolParameter{
			{Name: "command", Type: "string", Description: "Command to execute", Required: true},
			{Name: "args", Type: "array", Description: "Command arguments", Required: false},
			{Name: "cwd", Type: "string", Description: "Working directory (relative to workspace)", Required: false},
			{Name: "timeout", Type: "number", Description: "Timeout in seconds", Required: false},
			{Name: "env", Type: "object", Description: "Environment variables", Required: false},
			{Name: "stdin", Type: "string", Description: "Standard input", Required: false},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			if opts.Sandbox == nil {
				return "", fmt.Errorf("exec tool requires a sandbox")
			}

			command, _ := args["command"].(string)
			command = strings.TrimSpace(command)
			if command == "" {
				return "", fmt.Errorf("command is required")
			}

			workspaceRoot, err := resolveWorkspaceRoot(opts)
			if err != nil {
				return "", err
			}

			req := sandbox.ExecuteRequest{
				Command:    command,
				Args:       toStringSlice(args["args"]),
				Env:        toStringMap(args["env"]),
				WorkingDir: resolveWorkspacePath(workspaceRoot, args["cwd"]),
				Timeout:    parseDurationSeconds(args["timeout"], 30*time.Second),
			}
			if stdin, ok := args["stdin"].(string); ok && stdin != "" {
				req.Stdin = []byte(stdin)
			}

			res, err := opts.Sandbox.Execute(ctx, req)
			if err != nil {
				return "", err
			}

			out, _ := json.Marshal(map[string]interface{}{
				"stdout":    string(res.Stdout),
				"stderr":    string(res.Stderr),
				"exit_code": res.ExitCode,
				"duration_ms": res.Duration.Milliseconds(),
			})
			return string(out), nil
		},
	}
}

func readFileTool(opts Options) toolregistry.ToolDefinition {
	return toolregistry.ToolDefinition{
		Name:        "read_file",
		Description: "Read a file from the workspace.",
		Parameters: []toolregistry.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "max_bytes", Type: "number", Description: "Maximum bytes to read (default 200000)", Required: false, Default: 200000},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			workspaceRoot, err := resolveWorkspaceRoot(opts)
			if err != nil {
				return "", err
			}
			pathValue, _ := args["path"].(string)
			target, err := resolvePathInWorkspace(workspaceRoot, pathValue)
			if err != nil {
				return "", err
			}

			maxBytes := int64(200000)
			if raw, ok := args["max_bytes"].(float64); ok && raw > 0 {
				maxBytes = int64(raw)
			}

			data, truncated, err := readFileWithLimit(target, maxBytes)
			if err != nil {
				return "", err
			}
			if truncated {
				return fmt.Sprintf("%s\n\n[truncated at %d bytes]", string(data), len(data)), nil
			}
			return string(data), nil
		},
	}
}

func writeFileTool(opts Options) toolregistry.ToolDefinition {
	return toolregistry.ToolDefinition{
		Name:        "write_file",
		Description: "Write content to a file in the workspace.",
		Parameters: []toolregistry.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "content", Type: "string", Description: "File content", Required: true},
			{Name: "append", Type: "boolean", Description: "Append to file (default false)", Required: false},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			workspaceRoot, err := resolveWorkspaceRoot(opts)
			if err != nil {
				return "", err
			}
			pathValue, _ := args["path"].(string)
			target, err := resolvePathInWorkspace(workspaceRoot, pathValue)
			if err != nil {
				return "", err
			}
			content, _ := args["content"].(string)
			appendMode, _ := args["append"].(bool)

			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", err
			}

			flag := os.O_CREATE | os.O_WRONLY
			if appendMode {
				flag |= os.O_APPEND
			} else {
				flag |= os.O_TRUNC
			}
			file, err := os.OpenFile(target, flag, 0644)
			if err != nil {
				return "", err
			}
			defer file.Close()
			if _, err := file.WriteString(content); err != nil {
				return "", err
			}

			return fmt.Sprintf("wrote %d bytes to %s", len(content), pathValue), nil
		},
	}
}

func editFileTool(opts Options) toolregistry.ToolDefinition {
	return toolregistry.ToolDefinition{
		Name:        "edit_file",
		Description: "Replace text in a workspace file.",
		Parameters: []toolregistry.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "search", Type: "string", Description: "Text to search for", Required: true},
			{Name: "replace", Type: "string", Description: "Replacement text", Required: true},
			{Name: "replace_all", Type: "boolean", Description: "Replace all occurrences (default false)", Required: false},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			workspaceRoot, err := resolveWorkspaceRoot(opts)
			if err != nil {
				return "", err
			}
			pathValue, _ := args["path"].(string)
			target, err := resolvePathInWorkspace(workspaceRoot, pathValue)
			if err != nil {
				return "", err
			}
			search, _ := args["search"].(string)
			replace, _ := args["replace"].(string)
			replaceAll, _ := args["replace_all"].(bool)
			if search == "" {
				return "", fmt.Errorf("search is required")
			}

			data, err := os.ReadFile(target)
			if err != nil {
				return "", err
			}
			content := string(data)

			var updated string
			occurrences := 0
			if replaceAll {
				occurrences = strings.Count(content, search)
				updated = strings.ReplaceAll(content, search, replace)
			} else {
				if idx := strings.Index(content, search); idx >= 0 {
					occurrences = 1
					updated = content[:idx] + replace + content[idx+len(search):]
				} else {
					updated = content
				}
			}
			if occurrences == 0 {
				return "", fmt.Errorf("search text not found")
			}

			if err := os.WriteFile(target, []byte(updated), 0644); err != nil {
				return "", err
			}

			return fmt.Sprintf("replaced %d occurrence(s) in %s", occurrences, pathValue), nil
		},
	}
}

func applyPatchTool(opts Options) toolregistry.ToolDefinition {
	return toolregistry.ToolDefinition{
		Name:        "apply_patch",
		Description: "Apply a unified diff patch within the workspace.",
		Parameters: []toolregistry.ToolParameter{
			{Name: "patch", Type: "string", Description: "Unified diff patch", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			workspaceRoot, err := resolveWorkspaceRoot(opts)
			if err != nil {
				return "", err
			}
			patchText, _ := args["patch"].(string)
			if strings.TrimSpace(patchText) == "" {
				return "", fmt.Errorf("patch is required")
			}

			results, err := applyUnifiedPatch(workspaceRoot, patchText)
			if err != nil {
				return "", err
			}

			paths := make([]string, 0, len(results))
			for _, r := range results {
				paths = append(paths, fmt.Sprintf("%s (%d hunks)", r.Path, r.HunksApplied))
			}
			return "patched: " + strings.Join(paths, ", "), nil
		},
	}
}

type patchApplyResult struct {
	Path         string
	Applied      bool
	HunksApplied int
}

func applyUnifiedPatch(workspaceRoot string, patchText string) ([]patchApplyResult, error) {
	var patches []filePatch
	lines := strings.Split(patchText, "\n")
	var current *filePatch
	var currentHunk *hunk

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		if strings.HasPrefix(line, "--- ") {
			continue
		}
		if strings.HasPrefix(line, "+++ ") {
			path := strings.TrimSpace(strings.TrimPrefix(line, "+++ "))
			path = strings.TrimPrefix(path, "a/")
			path = strings.TrimPrefix(path, "b/")
			if path == "" {
				continue
			}
			patches = append(patches, filePatch{path: path})
			current = &patches[len(patches)-1]
			currentHunk = nil
			continue
		}
		if strings.HasPrefix(line, "@@") {
			if current == nil {
				continue
			}
			start, err := parseUnifiedHunkHeader(line)
			if err != nil {
				return nil, err
			}
			current.hunks = append(current.hunks, hunk{start: start})
			currentHunk = &current.hunks[len(current.hunks)-1]
			continue
		}
		if currentHunk == nil || len(line) == 0 {
			continue
		}
		switch line[0] {
		case ' ', '+', '-':
			currentHunk.lines = append(currentHunk.lines, hunkLine{kind: line[0], text: line[1:]})
		default:
		}
	}

	results := make([]patchApplyResult, 0, len(patches))
	for _, patch := range patches {
		target, err := resolvePathInWorkspace(workspaceRoot, patch.path)
		if err != nil {
			return nil, err
		}
		orig, err := os.ReadFile(target)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		origLines := splitLines(string(orig))
		newLines, hunksApplied, err := applyHunks(origLines, patch.hunks)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(target, []byte(strings.Join(newLines, "\n")), 0644); err != nil {
			return nil, err
		}
		results = append(results, patchApplyResult{
			Path:         patch.path,
			Applied:      true,
			HunksApplied: hunksApplied,
		})
	}

	return results, nil
}

func parseUnifiedHunkHeader(line string) (int, error) {
	// format: @@ -start,count +start,count @@
	parts := strings.Split(line, " ")
	if len(parts) < 3 {
		return 0, fmt.Errorf("invalid hunk header: %s", line)
	}
	left := strings.TrimPrefix(parts[1], "-")
	fields := strings.Split(left, ",")
	start := fields[0]
	var startInt int
	if _, err := fmt.Sscanf(start, "%d", &startInt); err != nil {
		return 0, err
	}
	if startInt < 1 {
		startInt = 1
	}
	return startInt, nil
}

func applyHunks(orig []string, hunks []hunk) ([]string, int, error) {
	out := make([]string, 0, len(orig))
	idx := 0
	applied := 0

	for _, h := range hunks {
		target := h.start - 1
		if target < 0 {
			target = 0
		}
		if target > len(orig) {
			target = len(orig)
		}
		out = append(out, orig[idx:target]...)
		idx = target

		for _, ln := range h.lines {
			switch ln.kind {
			case ' ':
				if idx >= len(orig) || orig[idx] != ln.text {
					return nil, applied, fmt.Errorf("context mismatch at line %d", idx+1)
				}
				out = append(out, orig[idx])
				idx++
			case '-':
				if idx >= len(orig) || orig[idx] != ln.text {
					return nil, applied, fmt.Errorf("delete mismatch at line %d", idx+1)
				}
				idx++
			case '+':
				out = append(out, ln.text)
			}
		}
		applied++
	}

	out = append(out, orig[idx:]...)
	return out, applied, nil
}

func splitLines(content string) []string {
	if content == "" {
		return []string{}
	}
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}

func readFileWithLimit(path string, limit int64) ([]byte, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	var buf bytes.Buffer
	truncated := false
	if limit <= 0 {
		limit = 200000
	}
	if _, err := io.CopyN(&buf, file, limit); err != nil && !errors.Is(err, io.EOF) {
		return nil, false, err
	}
	if extra := make([]byte, 1); true {
		if _, err := file.Read(extra); err == nil {
			truncated = true
		}
	}
	return buf.Bytes(), truncated, nil
}

func resolveWorkspaceRoot(opts Options) (string, error) {
	if strings.TrimSpace(opts.WorkspaceRoot) != "" {
		return filepath.Clean(opts.WorkspaceRoot), nil
	}
	return "", fmt.Errorf("workspace root is not configured")
}

func resolveWorkspacePath(workspaceRoot string, value interface{}) string {
	raw, _ := value.(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return workspaceRoot
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(workspaceRoot, raw))
}

func resolvePathInWorkspace(workspaceRoot string, pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return "", fmt.Errorf("path is required")
	}
	if strings.Contains(pathValue, "://") {
		return "", fmt.Errorf("path must be a local file")
	}
	candidate := pathValue
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(workspaceRoot, candidate)
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(workspaceRoot, candidate)
	if err != nil {
		return "", err
	}
	if rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..") {
		return candidate, nil
	}
	return "", fmt.Errorf("path %q is outside workspace root", pathValue)
}

func toStringSlice(value interface{}) []string {
	raw, ok := value.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toStringMap(value interface{}) map[string]string {
	raw, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch typed := v.(type) {
		case string:
			out[k] = typed
		default:
			b, _ := json.Marshal(typed)
			out[k] = string(b)
		}
	}
	return out
}

func parseDurationSeconds(value interface{}, fallback time.Duration) time.Duration {
	switch v := value.(type) {
	case float64:
		if v > 0 {
			return time.Duration(v * float64(time.Second))
		}
	case int:
		if v > 0 {
			return time.Duration(v) * time.Second
		}
	case int64:
		if v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	return fallback
}
