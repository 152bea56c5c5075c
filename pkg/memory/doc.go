// Package memory implements the layered memory manager: semantic,
// procedural, episodic, and goal markdown stores with deterministic
// per-turn extraction, de-duplication, bootstrap-context assembly, and
// compaction-triggered summarization. A separate hybrid search engine
// (vector + FTS5 keyword) backs the optional memory_search tool.
//
// Invariants:
// - Memory bullet append is a no-op if an equivalent normalized bullet
//   already exists anywhere in the same file.
// - Goal identity is title-equivalence: normalized-equal, containment, or
//   Jaccard-token overlap >= 0.72.
// - All writes are atomic (write temp file, rename).
// - Indexed search chunks remain consistent with file content hashes.
//
// Usage:
//
//	mgr, _ := memory.NewManager(memory.ManagerConfig{WorkspacePath: "/workspace"})
//	_, _ = mgr.ApplyTurn(ctx, memory.TurnPair{UserMessage: "...", AssistantReply: "...", At: time.Now()})
//	ctx, _ := mgr.BootstrapContext(time.Now())
package memory
