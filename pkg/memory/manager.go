package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const maxRecentEpisodes = 5
const defaultExtractEveryNTurns = 3
const maxCompactionPairs = 40

// Summarizer produces a session summary from conversation history; it is
// supplied by the agent loop since it requires an LLM call.
type Summarizer func(ctx context.Context, history []TurnPair) (string, error)

// TurnPair is one user/assistant exchange, as consumed by extraction and
// compaction summarization.
type TurnPair struct {
	UserMessage    string
	AssistantReply string
	At             time.Time
}

type storeMetrics struct {
	mu             sync.Mutex
	writesByStore  map[string]int
	duplicateSkips int
	errorCount     int
	lastWriteAt    time.Time
}

func newStoreMetrics() *storeMetrics {
	return &storeMetrics{writesByStore: map[string]int{}}
}

func (sm *storeMetrics) recordWrite(name string, wrote bool, err error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if err != nil {
		sm.errorCount++
		return
	}
	if wrote {
		sm.writesByStore[name]++
		sm.lastWriteAt = time.Now()
	} else {
		sm.duplicateSkips++
	}
}

func (sm *storeMetrics) snapshot() map[string]interface{} {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	writes := make(map[string]int, len(sm.writesByStore))
	for k, v := range sm.writesByStore {
		writes[k] = v
	}
	return map[string]interface{}{
		"writesByStore":  writes,
		"duplicateSkips": sm.duplicateSkips,
		"errors":         sm.errorCount,
		"lastWriteAt":    sm.lastWriteAt,
	}
}

// Manager is the layered memory manager (semantic/procedural/episodic/goal
// stores) with deterministic extraction, bootstrap-context assembly, and
// compaction-triggered summarization. The hybrid search engine used by the
// memory_search tool is a separate, optional collaborator (see SearchEngine).
type Manager struct {
	mu sync.Mutex

	workspacePath string
	logger        zerolog.Logger

	semantic       *store
	procedural     *store
	sessionContext *store
	episodicDir    string

	goals     *goalStore
	extractor *Extractor

	search *SearchEngine // optional; nil disables memory_search

	turnCount          int
	extractEveryNTurns int

	metrics *storeMetrics
}

// ManagerConfig configures the layered memory manager.
type ManagerConfig struct {
	WorkspacePath      string
	Logger             zerolog.Logger
	Search             *SearchEngine
	ExtractEveryNTurns int
}

// NewManager builds the layered memory manager rooted at
// cfg.WorkspacePath/memory.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.WorkspacePath == "" {
		return nil, fmt.Errorf("memory: workspace path is required")
	}

	memoryDir, err := EnsureMemoryDirectory(cfg.WorkspacePath)
	if err != nil {
		return nil, err
	}

	every := cfg.ExtractEveryNTurns
	if every <= 0 {
		every = defaultExtractEveryNTurns
	}

	semantic := newStore(filepath.Join(memoryDir, "semantic", "memory.md"))
	procedural := newStore(filepath.Join(memoryDir, "procedural", "rules.md"))
	sessionContext := newStore(filepath.Join(memoryDir, "semantic", "session_context.md"))
	goals := newGoalStore(filepath.Join(memoryDir, "goals", "goals.md"))

	m := &Manager{
		workspacePath:      cfg.WorkspacePath,
		logger:             cfg.Logger,
		semantic:           semantic,
		procedural:         procedural,
		sessionContext:     sessionContext,
		episodicDir:        filepath.Join(memoryDir, "episodic"),
		goals:              goals,
		extractor:          newExtractor(semantic, procedural, goals),
		search:             cfg.Search,
		extractEveryNTurns: every,
		metrics:            newStoreMetrics(),
	}
	return m, nil
}

func (m *Manager) episodicPath(day time.Time) string {
	return filepath.Join(m.episodicDir, day.Format("2006-01-02")+".md")
}

func (m *Manager) episodicStore(day time.Time) *store {
	return newStore(m.episodicPath(day))
}

// BootstrapContext concatenates non-empty sections across stores for
// injection into the agent loop's system prompt.
func (m *Manager) BootstrapContext(now time.Time) (string, error) {
	var parts []string

	if section, err := m.semantic.NonEmptySections(); err != nil {
		return "", err
	} else if section != "" {
		parts = append(parts, "=== SEMANTIC MEMORY ===\n"+section)
	}

	if section, err := m.procedural.NonEmptySections(); err != nil {
		return "", err
	} else if section != "" {
		parts = append(parts, "=== PROCEDURAL MEMORY ===\n"+section)
	}

	if goalsSection, err := m.renderActiveGoals(); err != nil {
		return "", err
	} else if goalsSection != "" {
		parts = append(parts, "=== PERSISTENT GOALS ===\n"+goalsSection)
	}

	if episodic, err := m.renderRecentEpisodes(now); err != nil {
		return "", err
	} else if episodic != "" {
		parts = append(parts, "=== EPISODIC MEMORY ===\n"+episodic)
	}

	sessionContent, err := readFile(m.sessionContext.path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(sessionContent) != "" {
		parts = append(parts, "=== ACTIVE SESSION CONTEXT ===\n"+strings.TrimSpace(sessionContent))
	}

	return strings.Join(parts, "\n\n"), nil
}

func (m *Manager) renderActiveGoals() (string, error) {
	goals, err := m.goals.Load()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, g := range goals {
		if g.Status != GoalActive {
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s\n", g.ID, g.Title)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// renderRecentEpisodes lists the maxRecentEpisodes most recent episodic
// files (by filename, which sorts chronologically), most-recent-first.
func (m *Manager) renderRecentEpisodes(now time.Time) (string, error) {
	var days []string
	for i := 0; i < 30; i++ {
		day := now.AddDate(0, 0, -i)
		if exists, _ := FileExists(m.episodicPath(day)); exists {
			days = append(days, day.Format("2006-01-02"))
		}
		if len(days) >= maxRecentEpisodes {
			break
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	var b strings.Builder
	for _, day := range days {
		content, err := readFile(filepath.Join(m.episodicDir, day+".md"))
		if err != nil {
			return "", err
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		fmt.Fprintf(&b, "## %s\n%s\n", day, content)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// ApplyTurn runs per-turn deterministic extraction over one exchange and
// fires the periodic episodic summary write when due.
func (m *Manager) ApplyTurn(ctx context.Context, pair TurnPair) (ExtractionResult, error) {
	result, err := m.extractor.Apply(pair.UserMessage, pair.AssistantReply, pair.At)
	m.recordExtraction(result, err)
	if err != nil {
		return result, err
	}

	m.mu.Lock()
	m.turnCount++
	due := m.turnCount%m.extractEveryNTurns == 0
	m.mu.Unlock()

	if due {
		if err := m.writePeriodicEpisodicSummary(pair); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (m *Manager) recordExtraction(result ExtractionResult, err error) {
	if err != nil {
		m.metrics.recordWrite("extraction", false, err)
		return
	}
	for i := 0; i < result.GoalsUpserted+result.ProgressAppended; i++ {
		m.metrics.recordWrite("goals", true, nil)
	}
	for i := 0; i < result.PreferencesWritten; i++ {
		m.metrics.recordWrite("semantic", true, nil)
	}
	for i := 0; i < result.RulesWritten; i++ {
		m.metrics.recordWrite("procedural", true, nil)
	}
}

func (m *Manager) writePeriodicEpisodicSummary(pair TurnPair) error {
	line := fmt.Sprintf("- [%s] Task: %s | Approach: %s | Outcome: %s",
		pair.At.Format(time.RFC3339),
		truncate(pair.UserMessage, 120),
		"agent loop turn",
		truncate(firstSentence(pair.AssistantReply, 180), 120))

	wrote, err := m.episodicStore(pair.At).AppendBullet("Turn Summaries", line)
	m.metrics.recordWrite("episodic", wrote, err)
	return err
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n])
}

// WriteMemoryEntry implements the writeMemoryEntry tool-callable operation.
func (m *Manager) WriteMemoryEntry(storeName, content, section string) (string, error) {
	var target *store
	switch storeName {
	case "semantic":
		target = m.semantic
		if section == "" {
			section = "Known Facts"
		}
	case "procedural":
		target = m.procedural
		if section == "" {
			section = "Operating Rules"
		}
	default:
		return "", fmt.Errorf("writeMemoryEntry: unknown store %q", storeName)
	}

	wrote, err := target.AppendBullet(section, "- "+strings.TrimSpace(content))
	m.metrics.recordWrite(storeName, wrote, err)
	if err != nil {
		return "", err
	}
	if !wrote {
		return "skipped: equivalent entry already present", nil
	}
	return fmt.Sprintf("wrote to %s/%s", storeName, section), nil
}

// WriteGoalEntry implements the writeGoalEntry tool-callable operation.
func (m *Manager) WriteGoalEntry(title, progress, status string, tags []string) (string, error) {
	now := time.Now()
	source := ProgressFromUser
	if progress == "" {
		progress = title
	}

	goal, err := m.goals.Upsert(title, source, progress, now)
	m.metrics.recordWrite("goals", err == nil, err)
	if err != nil {
		return "", err
	}

	if len(tags) > 0 {
		if err := m.mergeGoalTags(goal.ID, tags); err != nil {
			return "", err
		}
	}

	if status != "" {
		if _, ok, err := m.goals.SetStatusByTitle(title, GoalStatus(status), now); err != nil {
			return "", err
		} else if !ok {
			return "", fmt.Errorf("writeGoalEntry: goal %q not found after upsert", title)
		}
	}

	return fmt.Sprintf("goal %s updated", goal.ID), nil
}

func (m *Manager) mergeGoalTags(id string, tags []string) error {
	_, err := m.goals.MergeTags(id, tags, time.Now())
	return err
}

// RememberThis implements the rememberThis tool-callable operation: a
// semantic "Known Facts" entry, a user-sourced goal upsert, and an
// episodic log line, all from a single free-text statement.
func (m *Manager) RememberThis(text string, now time.Time) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("rememberThis: text is required")
	}

	wrote, err := m.semantic.AppendBullet("Known Facts", "- "+text)
	m.metrics.recordWrite("semantic", wrote, err)
	if err != nil {
		return "", err
	}

	if _, err := m.goals.Upsert(text, ProgressFromUser, text, now); err != nil {
		m.metrics.recordWrite("goals", false, err)
		return "", err
	}

	line := fmt.Sprintf("- [%s] Remembered: %s", now.Format(time.RFC3339), text)
	epWrote, epErr := m.episodicStore(now).AppendBullet("Remembered Facts", line)
	m.metrics.recordWrite("episodic", epWrote, epErr)
	if epErr != nil {
		return "", epErr
	}

	return "remembered", nil
}

// FlushBeforeCompaction iterates the last maxCompactionPairs turns applying
// extraction, then writes a session summary (via summarizer, falling back
// to a deterministic summary on error) to session_context.md.
func (m *Manager) FlushBeforeCompaction(ctx context.Context, history []TurnPair, summarizer Summarizer) error {
	tail := history
	if len(tail) > maxCompactionPairs {
		tail = tail[len(tail)-maxCompactionPairs:]
	}

	for _, pair := range tail {
		if _, err := m.extractor.Apply(pair.UserMessage, pair.AssistantReply, pair.At); err != nil {
			m.metrics.recordWrite("extraction", false, err)
		}
	}

	var summary string
	if summarizer != nil {
		s, err := summarizer(ctx, tail)
		if err == nil {
			summary = s
		}
	}
	if strings.TrimSpace(summary) == "" {
		summary = m.deterministicSummary(tail)
	}

	err := m.sessionContext.Replace(summary)
	m.metrics.recordWrite("session_context", err == nil, err)
	return err
}

func (m *Manager) deterministicSummary(tail []TurnPair) string {
	goals, _ := m.goals.Load()
	var currentGoal string
	for _, g := range goals {
		if g.Status == GoalActive {
			currentGoal = g.Title
			break
		}
	}

	var nextSteps []string
	for i := len(tail) - 1; i >= 0 && len(nextSteps) < 3; i-- {
		if s := firstSentence(tail[i].AssistantReply, 160); s != "" {
			nextSteps = append(nextSteps, s)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Current Goal\n%s\n\n", orDefault(currentGoal, "none recorded"))
	b.WriteString("## Important Facts About User\nsee semantic/memory.md\n\n")
	b.WriteString("## Progress and Next Steps\n")
	for _, step := range nextSteps {
		fmt.Fprintf(&b, "- %s\n", step)
	}
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// HealthMetrics reports write counts, duplicate skips, errors, last write
// time, and live goal counts by status.
func (m *Manager) HealthMetrics() (map[string]interface{}, error) {
	snapshot := m.metrics.snapshot()
	counts, err := m.goals.CountsByStatus()
	if err != nil {
		return nil, err
	}
	goalCounts := map[string]int{}
	for status, n := range counts {
		goalCounts[string(status)] = n
	}
	snapshot["goalCountsByStatus"] = goalCounts
	return snapshot, nil
}

// Search exposes the hybrid search engine, if configured.
func (m *Manager) Search() *SearchEngine {
	return m.search
}

// WorkspacePath returns the root workspace path memory files live under.
func (m *Manager) WorkspacePath() string {
	return m.workspacePath
}
