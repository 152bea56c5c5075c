package agentloop

import (
	"context"
	"fmt"
)

// GeminiProvider is a placeholder LLMProvider for Google Gemini. Wiring a
// real client is left for when a Gemini auth profile is actually configured.
type GeminiProvider struct {
	apiKey string
}

func NewGeminiProvider(apiKey string) *GeminiProvider {
	return &GeminiProvider{apiKey: apiKey}
}

func (p *GeminiProvider) Provider() string { return "gemini" }

func (p *GeminiProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	return nil, fmt.Errorf("gemini provider not yet implemented - use anthropic or openai")
}

func (p *GeminiProvider) Stream(ctx context.Context, request LLMRequest, onDelta func(text string)) (*LLMResponse, error) {
	return nil, fmt.Errorf("gemini provider not yet implemented - use anthropic or openai")
}
