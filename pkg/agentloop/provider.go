package agentloop

import (
	"context"
	"fmt"
)

// LLMProvider is the external collaborator interface for a chat-completion
// backend. Call is a non-streaming round trip; Stream drives the same
// request but forwards content deltas to onDelta as they arrive, returning
// the fully accumulated response once the stream ends.
type LLMProvider interface {
	Call(ctx context.Context, request LLMRequest) (*LLMResponse, error)
	Stream(ctx context.Context, request LLMRequest, onDelta func(text string)) (*LLMResponse, error)
	Provider() string
}

// LLMRequest is a provider-agnostic chat completion request.
type LLMRequest struct {
	Model        string
	Messages     []Message
	Tools        []interface{} // each entry: map[string]interface{}{"name","description","input_schema"}
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// LLMResponse is a provider-agnostic chat completion response.
type LLMResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// ProviderFactory builds an LLMProvider from an AuthProfile.
type ProviderFactory struct{}

// NewProvider dispatches on profile.Provider.
func (f *ProviderFactory) NewProvider(profile AuthProfile) (LLMProvider, error) {
	switch profile.Provider {
	case "anthropic":
		return NewAnthropicProvider(profile.APIKey), nil
	case "openai":
		return NewOpenAIProvider(profile.APIKey), nil
	case "gemini":
		return NewGeminiProvider(profile.APIKey), nil
	default:
		return nil, fmt.Errorf("agentloop: unsupported provider %q", profile.Provider)
	}
}

// ProviderCreator lets callers (tests) substitute a fake provider factory.
type ProviderCreator interface {
	NewProvider(profile AuthProfile) (LLMProvider, error)
}

// toolCallAccumulator reassembles streamed tool-call argument fragments,
// keyed by the provider's tool_call index, into complete ToolCall values.
type toolCallAccumulator struct {
	order []int
	byIdx map[int]*accumulatingCall
}

type accumulatingCall struct {
	id      string
	name    string
	argsRaw string
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{byIdx: make(map[int]*accumulatingCall)}
}

func (a *toolCallAccumulator) addDelta(index int, id, name, argsFragment string) {
	call, ok := a.byIdx[index]
	if !ok {
		call = &accumulatingCall{}
		a.byIdx[index] = call
		a.order = append(a.order, index)
	}
	if id != "" {
		call.id = id
	}
	if name != "" {
		call.name = name
	}
	call.argsRaw += argsFragment
}

func (a *toolCallAccumulator) finalize(parse func(raw string) (map[string]interface{}, error)) ([]ToolCall, error) {
	out := make([]ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		call := a.byIdx[idx]
		params := map[string]interface{}{}
		if call.argsRaw != "" {
			parsed, err := parse(call.argsRaw)
			if err != nil {
				return nil, fmt.Errorf("agentloop: parse tool call arguments for %q: %w", call.name, err)
			}
			params = parsed
		}
		out = append(out, ToolCall{ID: call.id, Name: call.name, Parameters: params})
	}
	return out, nil
}
