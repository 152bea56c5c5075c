package coretools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/relaycore/agentd/pkg/lanequeue"
	"github.com/relaycore/agentd/pkg/scheduler"
	"github.com/relaycore/agentd/pkg/toolregistry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReminderRunner struct{}

func (fakeReminderRunner) RunReminder(ctx context.Context, reminderID, prompt string) (string, error) {
	return "ok", nil
}

func newTestScheduler(t *testing.T) *scheduler.Service {
	t.Helper()
	dir := t.TempDir()
	svc, err := scheduler.New(scheduler.Options{
		StorePath:    filepath.Join(dir, "scheduler.json"),
		TickInterval: time.Second,
		Queue:        lanequeue.New(),
		Runner:       fakeReminderRunner{},
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc
}

func TestRegisterGuardTools_RegistersExpectedNames(t *testing.T) {
	registry := toolregistry.New()
	require.NoError(t, RegisterGuardTools(registry, GuardToolsOptions{Scheduler: newTestScheduler(t)}))
	registry.Lock()

	for _, name := range []string{"wallet_address", "wallet_balance", "perplexity_search", "social_post", "scheduler_add_reminder"} {
		assert.NotEqual(t, "Unknown tool: "+name, registry.Execute(context.Background(), name, map[string]interface{}{}))
	}
}

func TestWalletAddressTool(t *testing.T) {
	t.Run("returns the configured address", func(t *testing.T) {
		tool := walletAddressTool(GuardToolsOptions{WalletAddress: "0xabc123"})
		out, err := tool.Handler(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "0xabc123", out)
	})

	t.Run("errors when unconfigured", func(t *testing.T) {
		tool := walletAddressTool(GuardToolsOptions{})
		_, err := tool.Handler(context.Background(), nil)
		assert.Error(t, err)
	})
}

func TestWalletBalanceTool(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"balance":"1.5"}`))
	}))
	defer server.Close()

	tool := walletBalanceTool(GuardToolsOptions{
		WalletBalanceURL:  server.URL,
		WalletBalanceUnit: "ETH",
		HTTPClient:        server.Client(),
	})
	out, err := tool.Handler(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "1.5 ETH", out)
}

func TestWalletBalanceTool_Unconfigured(t *testing.T) {
	tool := walletBalanceTool(GuardToolsOptions{})
	_, err := tool.Handler(context.Background(), nil)
	assert.Error(t, err)
}

func TestPerplexitySearchTool_DisabledByDefault(t *testing.T) {
	tool := perplexitySearchTool(GuardToolsOptions{})
	_, err := tool.Handler(context.Background(), map[string]interface{}{"query": "weather today"})
	assert.Error(t, err)
}

func TestPerplexitySearchTool_ReturnsAnswerAndCitations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"citations":["https://a.example","https://b.example"],"choices":[{"message":{"role":"assistant","content":"it's sunny"}}]}`))
	}))
	defer server.Close()

	tool := perplexitySearchTool(GuardToolsOptions{
		PerplexityEnabled: true,
		PerplexityAPIKey:  "test-key",
		PerplexityBaseURL: server.URL,
		HTTPClient:        server.Client(),
	})
	out, err := tool.Handler(context.Background(), map[string]interface{}{"query": "weather today"})
	require.NoError(t, err)
	assert.Contains(t, out, "it's sunny")
	assert.Contains(t, out, "https://a.example")
}

func TestSocialPostTool_DisabledByDefault(t *testing.T) {
	tool := socialPostTool(GuardToolsOptions{})
	_, err := tool.Handler(context.Background(), map[string]interface{}{"text": "hello world"})
	assert.Error(t, err)
}

func TestSocialPostTool_Posts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"1","url":"https://feed.example/1"}`))
	}))
	defer server.Close()

	tool := socialPostTool(GuardToolsOptions{
		SocialEnabled:  true,
		SocialEndpoint: server.URL,
		HTTPClient:     server.Client(),
	})
	out, err := tool.Handler(context.Background(), map[string]interface{}{"text": "hello world"})
	require.NoError(t, err)
	assert.Equal(t, "Posted: https://feed.example/1", out)
}

func TestSchedulerAddReminderTool(t *testing.T) {
	svc := newTestScheduler(t)
	tool := schedulerAddReminderTool(GuardToolsOptions{Scheduler: svc})

	out, err := tool.Handler(context.Background(), map[string]interface{}{"text": "call the dentist", "minutes": float64(15)})
	require.NoError(t, err)
	assert.Contains(t, out, "scheduled in 15 minutes")
	assert.Len(t, svc.ListOneTime(), 1)
}

func TestSchedulerAddReminderTool_RequiresScheduler(t *testing.T) {
	tool := schedulerAddReminderTool(GuardToolsOptions{})
	_, err := tool.Handler(context.Background(), map[string]interface{}{"text": "call the dentist"})
	assert.Error(t, err)
}
