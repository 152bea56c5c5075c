package agentloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteIntent(t *testing.T) {
	t.Run("should match wallet address intent", func(t *testing.T) {
		match, ok := routeIntent("what's my wallet address?")
		assert.True(t, ok)
		assert.Equal(t, "wallet_address", match.Tool)
	})

	t.Run("should match wallet balance intent", func(t *testing.T) {
		match, ok := routeIntent("what's my wallet balance right now")
		assert.True(t, ok)
		assert.Equal(t, "wallet_balance", match.Tool)
	})

	t.Run("should match scheduler intent and carry the text", func(t *testing.T) {
		match, ok := routeIntent("remind me to call the dentist tomorrow")
		assert.True(t, ok)
		assert.Equal(t, "scheduler_add_reminder", match.Tool)
		assert.Equal(t, "remind me to call the dentist tomorrow", match.Args["text"])
	})

	t.Run("should not match free-form chat", func(t *testing.T) {
		_, ok := routeIntent("tell me a joke about compilers")
		assert.False(t, ok)
	})
}

func TestMentionsWalletIntent(t *testing.T) {
	assert.True(t, mentionsWalletIntent("send to my wallet address please"))
	assert.False(t, mentionsWalletIntent("how's the weather"))
}

func TestMentionsRealtimeIntent(t *testing.T) {
	assert.True(t, mentionsRealtimeIntent("what's the latest news on this"))
	assert.False(t, mentionsRealtimeIntent("summarize the plot of that book"))
}

func TestMentionsPlanSignal(t *testing.T) {
	assert.True(t, mentionsPlanSignal("can you break this down step by step"))
	assert.False(t, mentionsPlanSignal("thanks, that's all"))
}
