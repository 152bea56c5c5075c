package coretools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/relaycore/agentd/pkg/lanequeue"
	"github.com/relaycore/agentd/pkg/scheduler"
	"github.com/relaycore/agentd/pkg/toolregistry"
)

// GuardToolsOptions configures the wallet, realtime-search, social, and
// scheduler tool family that the agent loop's deterministic router and
// integrity guards call by name.
type GuardToolsOptions struct {
	WalletAddress     string
	WalletBalanceURL  string
	WalletBalanceUnit string

	PerplexityEnabled    bool
	PerplexityAPIKey     string
	PerplexityModel      string
	PerplexityMaxResults int
	PerplexityBaseURL    string

	SocialEnabled  bool
	SocialEndpoint string
	SocialAPIKey   string

	Scheduler *scheduler.Service

	HTTPClient *http.Client
}

// RegisterGuardTools registers the wallet_*, perplexity_search, social_post,
// and scheduler_add_reminder tools into registry.
func RegisterGuardTools(registry *toolregistry.Registry, opts GuardToolsOptions) error {
	if registry == nil {
		return fmt.Errorf("tool registry is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 20 * time.Second}
	}

	tools := []toolregistry.ToolDefinition{
		walletAddressTool(opts),
		walletBalanceTool(opts),
		perplexitySearchTool(opts),
		socialPostTool(opts),
		schedulerAddReminderTool(opts),
	}

	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}
	return nil
}

func walletAddressTool(opts GuardToolsOptions) toolregistry.ToolDefinition {
	return toolregistry.ToolDefinition{
		Name:        "wallet_address",
		Description: "Return the agent's configured wallet address.",
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			address := strings.TrimSpace(opts.WalletAddress)
			if address == "" {
				return "", fmt.Errorf("no wallet address configured")
			}
			return address, nil
		},
	}
}

func walletBalanceTool(opts GuardToolsOptions) toolregistry.ToolDefinition {
	return toolregistry.ToolDefinition{
		Name:        "wallet_balance",
		Description: "Look up the current balance of the configured wallet.",
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			balanceURL := strings.TrimSpace(opts.WalletBalanceURL)
			if balanceURL == "" {
				return "", fmt.Errorf("no wallet balance source configured")
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, balanceURL, nil)
			if err != nil {
				return "", fmt.Errorf("failed to build wallet balance request: %w", err)
			}

			resp, err := opts.HTTPClient.Do(req)
			if err != nil {
				return "", fmt.Errorf("failed to reach wallet balance API: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return "", err
			}
			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("wallet balance API error (status %d): %s", resp.StatusCode, string(body))
			}

			unit := strings.TrimSpace(opts.WalletBalanceUnit)
			if unit == "" {
				unit = "units"
			}

			var parsed struct {
				Balance string `json:"balance"`
			}
			if err := json.Unmarshal(body, &parsed); err == nil && parsed.Balance != "" {
				return fmt.Sprintf("%s %s", parsed.Balance, unit), nil
			}
			return strings.TrimSpace(string(body)), nil
		},
	}
}

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityRequest struct {
	Model    string              `json:"model"`
	Messages []perplexityMessage `json:"messages"`
}

type perplexityResponse struct {
	Citations []string `json:"citations"`
	Choices   []struct {
		Message perplexityMessage `json:"message"`
	} `json:"choices"`
}

func perplexitySearchTool(opts GuardToolsOptions) toolregistry.ToolDefinition {
	return toolregistry.ToolDefinition{
		Name:        "perplexity_search",
		Description: "Search the live web for current information via Perplexity and return a cited answer.",
		Parameters: []toolregistry.ToolParameter{
			{Name: "query", Type: "string", Description: "What to search for", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			if !opts.PerplexityEnabled {
				return "", fmt.Errorf("perplexity search is not enabled")
			}
			if strings.TrimSpace(opts.PerplexityAPIKey) == "" {
				return "", fmt.Errorf("perplexity API key is not configured")
			}
			query, _ := args["query"].(string)
			query = strings.TrimSpace(query)
			if query == "" {
				return "", fmt.Errorf("query is required")
			}

			model := opts.PerplexityModel
			if model == "" {
				model = "sonar"
			}

			reqBody := perplexityRequest{
				Model: model,
				Messages: []perplexityMessage{
					{Role: "user", Content: query},
				},
			}
			jsonData, err := json.Marshal(reqBody)
			if err != nil {
				return "", fmt.Errorf("failed to marshal perplexity request: %w", err)
			}

			baseURL := strings.TrimSpace(opts.PerplexityBaseURL)
			if baseURL == "" {
				baseURL = "https://api.perplexity.ai/chat/completions"
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewBuffer(jsonData))
			if err != nil {
				return "", fmt.Errorf("failed to build perplexity request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+opts.PerplexityAPIKey)

			resp, err := opts.HTTPClient.Do(req)
			if err != nil {
				return "", fmt.Errorf("failed to call perplexity API: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return "", err
			}
			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("perplexity API error (status %d): %s", resp.StatusCode, string(body))
			}

			var parsed perplexityResponse
			if err := json.Unmarshal(body, &parsed); err != nil {
				return "", fmt.Errorf("failed to parse perplexity response: %w", err)
			}
			if len(parsed.Choices) == 0 {
				return "", fmt.Errorf("perplexity returned no answer")
			}

			answer := strings.TrimSpace(parsed.Choices[0].Message.Content)
			maxResults := opts.PerplexityMaxResults
			if maxResults <= 0 {
				maxResults = 5
			}
			citations := parsed.Citations
			if len(citations) > maxResults {
				citations = citations[:maxResults]
			}
			if len(citations) == 0 {
				return answer, nil
			}
			return fmt.Sprintf("%s\n\nSources:\n%s", answer, strings.Join(citations, "\n")), nil
		},
	}
}

type socialPostResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func socialPostTool(opts GuardToolsOptions) toolregistry.ToolDefinition {
	return toolregistry.ToolDefinition{
		Name:        "social_post",
		Description: "Publish a short post to the configured social feed.",
		Parameters: []toolregistry.ToolParameter{
			{Name: "text", Type: "string", Description: "Post content", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			if !opts.SocialEnabled {
				return "", fmt.Errorf("social posting is not enabled")
			}
			endpoint := strings.TrimSpace(opts.SocialEndpoint)
			if endpoint == "" {
				return "", fmt.Errorf("social posting endpoint is not configured")
			}
			text, _ := args["text"].(string)
			text = strings.TrimSpace(text)
			if text == "" {
				return "", fmt.Errorf("text is required")
			}

			jsonData, err := json.Marshal(map[string]string{"text": text})
			if err != nil {
				return "", fmt.Errorf("failed to marshal social post: %w", err)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
			if err != nil {
				return "", fmt.Errorf("failed to build social post request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			if opts.SocialAPIKey != "" {
				req.Header.Set("Authorization", "Bearer "+opts.SocialAPIKey)
			}

			resp, err := opts.HTTPClient.Do(req)
			if err != nil {
				return "", fmt.Errorf("failed to reach social posting API: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return "", err
			}
			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
				return "", fmt.Errorf("social posting API error (status %d): %s", resp.StatusCode, string(body))
			}

			var parsed socialPostResponse
			if err := json.Unmarshal(body, &parsed); err == nil && parsed.URL != "" {
				return fmt.Sprintf("Posted: %s", parsed.URL), nil
			}
			return "Posted to the social feed.", nil
		},
	}
}

func schedulerAddReminderTool(opts GuardToolsOptions) toolregistry.ToolDefinition {
	return toolregistry.ToolDefinition{
		Name:        "scheduler_add_reminder",
		Description: "Schedule a one-time reminder that replays a prompt as a future agent turn.",
		Parameters: []toolregistry.ToolParameter{
			{Name: "text", Type: "string", Description: "Reminder prompt", Required: true},
			{Name: "minutes", Type: "number", Description: "Minutes from now to fire", Required: false, Default: 30},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			if opts.Scheduler == nil {
				return "", fmt.Errorf("scheduler is not configured")
			}
			text, _ := args["text"].(string)
			text = strings.TrimSpace(text)
			if text == "" {
				return "", fmt.Errorf("text is required")
			}

			minutes := 30
			if raw, ok := args["minutes"].(float64); ok && raw > 0 {
				minutes = int(raw)
			}

			id := opts.Scheduler.ScheduleOneTimeIn(minutes, text, lanequeue.LaneBackground)
			return fmt.Sprintf("Reminder %s scheduled in %d minutes.", id, minutes), nil
		},
	}
}
