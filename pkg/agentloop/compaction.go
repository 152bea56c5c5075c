package agentloop

import "math"

// compactionTokenRatio is the fraction of the context window that triggers
// a compaction flush (step 1: "90% of context window").
const compactionTokenRatio = 0.9

// historyTailOnCompact is how many messages survive a compaction truncate.
const historyTailOnCompact = 10

// estimateTokens counts tokens for systemPrompt + the stringified history +
// userText. It reports "estimate" for the deterministic fallback; a real
// encoder-backed counter (unavailable in this codebase) would report
// "exact-ish" instead, per step 1.
func estimateTokens(systemPrompt string, history []Message, userText string) (count int, mode string) {
	chars := len(systemPrompt) + len(userText)
	for _, m := range history {
		chars += len(m.Content)
	}
	return int(math.Ceil(float64(chars) / 3.5)), "estimate"
}

func compactionThreshold(contextWindowTokens int) int {
	if contextWindowTokens <= 0 {
		contextWindowTokens = DefaultConfig().ContextWindowTokens
	}
	return int(float64(contextWindowTokens) * compactionTokenRatio)
}

// truncateHistoryTail keeps only the last historyTailOnCompact messages,
// per step 1's post-flush truncation.
func truncateHistoryTail(history []Message) []Message {
	if len(history) <= historyTailOnCompact {
		return history
	}
	return history[len(history)-historyTailOnCompact:]
}
