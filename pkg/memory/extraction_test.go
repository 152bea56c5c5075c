package memory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(t *testing.T) (*Extractor, *store, *store, *goalStore) {
	t.Helper()
	dir := t.TempDir()
	semantic := newStore(filepath.Join(dir, "semantic", "memory.md"))
	procedural := newStore(filepath.Join(dir, "procedural", "rules.md"))
	goals := newGoalStore(filepath.Join(dir, "goals", "goals.md"))
	return newExtractor(semantic, procedural, goals), semantic, procedural, goals
}

func TestExtractGoalCandidates(t *testing.T) {
	cases := map[string][]string{
		"we need to migrate the billing service":       {"migrate the billing service"},
		"I want to finish the onboarding flow":          {"finish the onboarding flow"},
		"let's ship the release by Friday":              {"ship the release by Friday"},
		"goal: reduce churn":                            {"reduce churn"},
		"just chatting about the weather today":          nil,
	}
	for text, want := range cases {
		got := extractGoalCandidates(text)
		if want == nil {
			assert.Empty(t, got, text)
			continue
		}
		assert.Equal(t, want, got, text)
	}
}

func TestExtractor_Apply_UpsertsGoalFromUserMessage(t *testing.T) {
	ex, _, _, goals := newTestExtractor(t)
	now := time.Now()

	_, err := ex.Apply("we need to rewrite the onboarding docs", "Sounds good, I'll get started on that.", now)
	require.NoError(t, err)

	loaded, err := goals.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "rewrite the onboarding docs", loaded[0].Title)
}

func TestExtractor_Apply_AppendsProgressForOverlappingTurn(t *testing.T) {
	ex, _, _, goals := newTestExtractor(t)
	now := time.Now()

	_, err := ex.Apply("we need to rewrite the onboarding docs", "Starting now.", now)
	require.NoError(t, err)

	_, err = ex.Apply("any update on the onboarding docs rewrite?", "The onboarding docs rewrite is halfway done.", now.Add(time.Minute))
	require.NoError(t, err)

	loaded, err := goals.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.GreaterOrEqual(t, len(loaded[0].Progress), 2)
}

func TestExtractor_Apply_DetectsCompletion(t *testing.T) {
	ex, _, _, goals := newTestExtractor(t)
	now := time.Now()

	_, err := ex.Apply("we need to rewrite the onboarding docs", "ok", now)
	require.NoError(t, err)
	_, err = ex.Apply("the onboarding docs rewrite is done, thanks", "Great, closing it out.", now.Add(time.Minute))
	require.NoError(t, err)

	loaded, err := goals.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, GoalCompleted, loaded[0].Status)
}

func TestExtractor_Apply_MinesPreferences(t *testing.T) {
	ex, semantic, _, _ := newTestExtractor(t)

	_, err := ex.Apply("I prefer dark mode everywhere", "Noted, I'll use dark mode.", time.Now())
	require.NoError(t, err)

	lines, err := semantic.Section("User Preferences")
	require.NoError(t, err)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "Prefers")
}

func TestExtractor_Apply_MinesRulesCappedAtFour(t *testing.T) {
	ex, _, procedural, _ := newTestExtractor(t)

	text := "You must always confirm before deploying. Never skip the tests. " +
		"You should review the diff. Don't merge without approval. Always tag the release. Never force push."
	_, err := ex.Apply(text, "Understood.", time.Now())
	require.NoError(t, err)

	lines, err := procedural.Section("Learned Behaviors")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(lines), maxRuleMiningPerTurn)
}

func TestFirstSentence_TruncatesToMaxLen(t *testing.T) {
	long := "This is a very long sentence that goes on and on and on and on and on and on and on and on and on and on and on and on."
	got := firstSentence(long, 40)
	assert.LessOrEqual(t, len(got), 40)
}
