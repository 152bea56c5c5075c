package memory

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManagerForTest(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(ManagerConfig{WorkspacePath: t.TempDir(), Logger: zerolog.Nop(), ExtractEveryNTurns: 2})
	require.NoError(t, err)
	return m
}

func TestManager_BootstrapContext_ConcatenatesNonEmptySections(t *testing.T) {
	m := newManagerForTest(t)
	now := time.Now()

	_, err := m.WriteMemoryEntry("semantic", "enjoys hiking on weekends", "")
	require.NoError(t, err)
	_, err = m.WriteGoalEntry("launch the new pricing page", "drafted copy", "", nil)
	require.NoError(t, err)

	ctx, err := m.BootstrapContext(now)
	require.NoError(t, err)
	assert.Contains(t, ctx, "=== SEMANTIC MEMORY ===")
	assert.Contains(t, ctx, "=== PERSISTENT GOALS ===")
	assert.NotContains(t, ctx, "=== PROCEDURAL MEMORY ===", "empty sections should be omitted")
}

func TestManager_ApplyTurn_RunsExtractionAndPeriodicEpisodic(t *testing.T) {
	m := newManagerForTest(t)
	now := time.Now()

	_, err := m.ApplyTurn(context.Background(), TurnPair{
		UserMessage:    "we need to finalize the Q3 roadmap",
		AssistantReply: "I'll start drafting it.",
		At:             now,
	})
	require.NoError(t, err)

	_, err = m.ApplyTurn(context.Background(), TurnPair{
		UserMessage:    "any update on the Q3 roadmap?",
		AssistantReply: "The Q3 roadmap draft is ready for review.",
		At:             now.Add(time.Minute),
	})
	require.NoError(t, err)

	episodic, err := m.renderRecentEpisodes(now.Add(time.Hour))
	require.NoError(t, err)
	assert.Contains(t, episodic, "Turn Summaries")
}

func TestManager_WriteMemoryEntry_DefaultsSectionByStore(t *testing.T) {
	m := newManagerForTest(t)

	status, err := m.WriteMemoryEntry("semantic", "owns a 2019 Subaru", "")
	require.NoError(t, err)
	assert.Contains(t, status, "Known Facts")

	status, err = m.WriteMemoryEntry("procedural", "always squash commits before merge", "")
	require.NoError(t, err)
	assert.Contains(t, status, "Operating Rules")
}

func TestManager_WriteMemoryEntry_RejectsUnknownStore(t *testing.T) {
	m := newManagerForTest(t)
	_, err := m.WriteMemoryEntry("episodic", "x", "")
	assert.Error(t, err)
}

func TestManager_RememberThis_WritesSemanticGoalAndEpisodic(t *testing.T) {
	m := newManagerForTest(t)
	now := time.Now()

	status, err := m.RememberThis("the user's company is called Northwind", now)
	require.NoError(t, err)
	assert.Equal(t, "remembered", status)

	facts, err := m.semantic.Section("Known Facts")
	require.NoError(t, err)
	assert.NotEmpty(t, facts)

	goals, err := m.goals.Load()
	require.NoError(t, err)
	assert.NotEmpty(t, goals)
}

func TestManager_FlushBeforeCompaction_FallsBackWithoutSummarizer(t *testing.T) {
	m := newManagerForTest(t)
	now := time.Now()
	history := []TurnPair{
		{UserMessage: "we need to finish the audit", AssistantReply: "Working on it now.", At: now},
	}

	err := m.FlushBeforeCompaction(context.Background(), history, nil)
	require.NoError(t, err)

	content, err := readFile(m.sessionContext.path)
	require.NoError(t, err)
	assert.Contains(t, content, "## Current Goal")
	assert.Contains(t, content, "## Progress and Next Steps")
}

func TestManager_FlushBeforeCompaction_UsesSummarizerWhenItSucceeds(t *testing.T) {
	m := newManagerForTest(t)
	history := []TurnPair{{UserMessage: "hi", AssistantReply: "hello", At: time.Now()}}

	called := false
	summarizer := func(ctx context.Context, pairs []TurnPair) (string, error) {
		called = true
		return "custom summary", nil
	}

	err := m.FlushBeforeCompaction(context.Background(), history, summarizer)
	require.NoError(t, err)
	assert.True(t, called)

	content, err := readFile(m.sessionContext.path)
	require.NoError(t, err)
	assert.Equal(t, "custom summary", content)
}

func TestManager_HealthMetrics_ReportsGoalCounts(t *testing.T) {
	m := newManagerForTest(t)
	_, err := m.WriteGoalEntry("onboard the new hire", "scheduled kickoff", "", nil)
	require.NoError(t, err)

	metrics, err := m.HealthMetrics()
	require.NoError(t, err)
	counts, ok := metrics["goalCountsByStatus"].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 1, counts["active"])
}
