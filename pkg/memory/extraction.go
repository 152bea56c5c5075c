package memory

import (
	"regexp"
	"strings"
	"time"
)

const goalProgressJaccardThreshold = 0.12
const maxRuleMiningPerTurn = 4
const maxAssistantNoteLen = 180

var goalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwe need to\s+(.+?)[.!?]?$`),
	regexp.MustCompile(`(?i)\bi want to\s+(.+?)[.!?]?$`),
	regexp.MustCompile(`(?i)\blet'?s\s+(.+?)[.!?]?$`),
	regexp.MustCompile(`(?i)\bgoal:\s*(.+?)[.!?]?$`),
	regexp.MustCompile(`(?i)\bmission:\s*(.+?)[.!?]?$`),
	regexp.MustCompile(`(?i)\bpriority:\s*(.+?)[.!?]?$`),
}

var priorityBulletPattern = regexp.MustCompile(`(?im)^\s*[-*]\s*(.+)$`)
var prioritiesHeaderPattern = regexp.MustCompile(`(?i)priorities`)

var completionWords = []string{"done", "completed", "finished", "wrapped up", "closed out"}
var pauseWords = []string{"pause", "paused", "on hold", "holding off"}
var cancelWords = []string{"cancel", "cancelled", "canceled", "dropping", "no longer need"}

var preferencePatterns = []struct {
	pattern *regexp.Regexp
	label   string
}{
	{regexp.MustCompile(`(?i)\bi prefer\s+(.+?)[.!?]?$`), "Prefers %s"},
	{regexp.MustCompile(`(?i)\bi like\s+(.+?)[.!?]?$`), "Prefers %s"},
	{regexp.MustCompile(`(?i)\bi dislike\s+(.+?)[.!?]?$`), "Dislikes %s"},
	{regexp.MustCompile(`(?i)\bi hate\s+(.+?)[.!?]?$`), "Dislikes %s"},
	{regexp.MustCompile(`(?i)\bi'?m (?:located )?in\s+(.+?)[.!?]?$`), "Location: %s"},
	{regexp.MustCompile(`(?i)\bmy timezone is\s+(.+?)[.!?]?$`), "Timezone: %s"},
	{regexp.MustCompile(`(?i)\bi'?m in the\s+(.+?)\s+timezone\b`), "Timezone: %s"},
}

var ruleTriggerWords = []string{"always", "never", "should", "must", "don't", "do not"}

// Extractor applies the per-turn deterministic extraction rules (§4.5) to
// a (userMessage, assistantReply) pair, writing into the layered stores.
type Extractor struct {
	semantic   *store
	procedural *store
	goals      *goalStore
}

func newExtractor(semantic, procedural *store, goals *goalStore) *Extractor {
	return &Extractor{semantic: semantic, procedural: procedural, goals: goals}
}

// ExtractionResult reports what the extractor wrote, for health metrics.
type ExtractionResult struct {
	GoalsUpserted      int
	ProgressAppended   int
	PreferencesWritten int
	RulesWritten       int
}

// Apply runs goal upsert, goal progress, preference mining, and rule
// mining over one turn.
func (e *Extractor) Apply(userMessage, assistantReply string, now time.Time) (ExtractionResult, error) {
	var result ExtractionResult

	for _, title := range extractGoalCandidates(userMessage) {
		if _, err := e.goals.Upsert(title, ProgressFromUser, title, now); err != nil {
			return result, err
		}
		result.GoalsUpserted++
	}

	goals, err := e.goals.Load()
	if err != nil {
		return result, err
	}
	turnText := userMessage + " " + assistantReply
	for _, g := range goals {
		if g.Status != GoalActive {
			continue
		}
		if jaccardTokens(normalizeTitle(g.Title), normalizeTitle(turnText)) < goalProgressJaccardThreshold {
			continue
		}
		note := firstSentence(assistantReply, maxAssistantNoteLen)
		if note != "" {
			if ok, err := e.goals.AppendProgress(g.ID, ProgressFromAssistant, note, now); err != nil {
				return result, err
			} else if ok {
				result.ProgressAppended++
			}
		}
		if status, changed := detectStatusChange(turnText); changed {
			if _, _, err := e.goals.SetStatusByTitle(g.Title, status, now); err != nil {
				return result, err
			}
		}
	}

	for _, pref := range extractPreferences(userMessage) {
		appended, err := e.semantic.AppendBullet("User Preferences", "- "+pref)
		if err != nil {
			return result, err
		}
		if appended {
			result.PreferencesWritten++
		}
	}

	rules := extractRules(userMessage)
	if len(rules) > maxRuleMiningPerTurn {
		rules = rules[:maxRuleMiningPerTurn]
	}
	for _, rule := range rules {
		appended, err := e.procedural.AppendBullet("Learned Behaviors", "- "+rule)
		if err != nil {
			return result, err
		}
		if appended {
			result.RulesWritten++
		}
	}

	return result, nil
}

func extractGoalCandidates(userMessage string) []string {
	var candidates []string

	if prioritiesHeaderPattern.MatchString(userMessage) {
		for _, m := range priorityBulletPattern.FindAllStringSubmatch(userMessage, -1) {
			if title := strings.TrimSpace(m[1]); title != "" {
				candidates = append(candidates, title)
			}
		}
	}

	for _, sentence := range splitSentences(userMessage) {
		for _, pattern := range goalPatterns {
			if m := pattern.FindStringSubmatch(sentence); m != nil {
				if title := strings.TrimSpace(m[1]); title != "" {
					candidates = append(candidates, title)
				}
			}
		}
	}

	return candidates
}

func extractPreferences(userMessage string) []string {
	var out []string
	for _, sentence := range splitSentences(userMessage) {
		for _, p := range preferencePatterns {
			if m := p.pattern.FindStringSubmatch(sentence); m != nil {
				value := strings.TrimSpace(m[1])
				if value != "" {
					out = append(out, sprintfLabel(p.label, value))
				}
			}
		}
	}
	return out
}

func sprintfLabel(label, value string) string {
	idx := strings.Index(label, "%s")
	if idx < 0 {
		return label
	}
	return label[:idx] + value + label[idx+2:]
}

func extractRules(userMessage string) []string {
	var out []string
	for _, sentence := range splitSentences(userMessage) {
		lower := strings.ToLower(sentence)
		for _, word := range ruleTriggerWords {
			if strings.Contains(lower, word) {
				out = append(out, strings.TrimSpace(sentence))
				break
			}
		}
	}
	return out
}

func detectStatusChange(turnText string) (GoalStatus, bool) {
	lower := strings.ToLower(turnText)
	for _, w := range cancelWords {
		if strings.Contains(lower, w) {
			return GoalCancelled, true
		}
	}
	for _, w := range pauseWords {
		if strings.Contains(lower, w) {
			return GoalPaused, true
		}
	}
	for _, w := range completionWords {
		if strings.Contains(lower, w) {
			return GoalCompleted, true
		}
	}
	return "", false
}

func splitSentences(text string) []string {
	raw := regexp.MustCompile(`[.!?\n]+`).Split(text, -1)
	var out []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstSentence(text string, maxLen int) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}
	s := sentences[0]
	if len(s) > maxLen {
		s = strings.TrimSpace(s[:maxLen])
	}
	return s
}
