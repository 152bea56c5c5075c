package agentloop

import (
	"encoding/json"
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements LLMProvider against Claude models.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a provider bound to a single API key.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

func (p *AnthropicProvider) Provider() string { return "anthropic" }

func (p *AnthropicProvider) buildParams(request LLMRequest) (anthropic.MessageNewParams, error) {
	messages := []anthropic.MessageParam{}

	for _, msg := range request.Messages {
		switch msg.Role {
		case "system":
			continue
		case "tool":
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				blocks := []anthropic.ContentBlockParamUnion{}
				if msg.Content != "" {
					blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
				}
				for _, tc := range msg.ToolCalls {
					blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Parameters, tc.Name))
				}
				messages = append(messages, anthropic.MessageParam{
					Role:    anthropic.MessageParamRoleAssistant,
					Content: blocks,
				})
			} else {
				messages = append(messages, anthropic.MessageParam{
					Role:    anthropic.MessageParamRoleAssistant,
					Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
				})
			}
		case "user":
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.Model),
		Messages:  messages,
		MaxTokens: int64(request.MaxTokens),
	}
	if request.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: request.SystemPrompt}}
	}
	if request.Temperature > 0 {
		params.Temperature = anthropic.Float(request.Temperature)
	}

	if len(request.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(request.Tools))
		for _, tool := range request.Tools {
			toolMap := tool.(map[string]interface{})
			inputSchema := toolMap["input_schema"].(map[string]interface{})

			toolParam := anthropic.ToolParam{
				Name:        toolMap["name"].(string),
				Description: anthropic.String(toolMap["description"].(string)),
				InputSchema: anthropic.ToolInputSchemaParam{Properties: inputSchema["properties"]},
			}
			if required, ok := inputSchema["required"].([]interface{}); ok {
				strs := make([]string, len(required))
				for i, v := range required {
					strs[i] = v.(string)
				}
				toolParam.InputSchema.Required = strs
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		params.Tools = tools
	}

	return params, nil
}

func (p *AnthropicProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	params, err := p.buildParams(request)
	if err != nil {
		return nil, err
	}

	response, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	content := ""
	toolCalls := []ToolCall{}
	for _, block := range response.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += b.Text
		case anthropic.ToolUseBlock:
			var args map[string]interface{}
			if err := json.Unmarshal([]byte(b.JSON.Input.Raw()), &args); err != nil {
				return nil, fmt.Errorf("agentloop: parse anthropic tool input: %w", err)
			}
			toolCalls = append(toolCalls, ToolCall{ID: b.ID, Name: b.Name, Parameters: args})
		}
	}

	return &LLMResponse{
		Content:   content,
		ToolCalls: toolCalls,
		Usage: &TokenUsage{
			InputTokens:  int(response.Usage.InputTokens),
			OutputTokens: int(response.Usage.OutputTokens),
		},
	}, nil
}

// Stream drives a streaming completion, forwarding text deltas to onDelta
// and accumulating tool-call argument fragments by content-block index.
func (p *AnthropicProvider) Stream(ctx context.Context, request LLMRequest, onDelta func(text string)) (*LLMResponse, error) {
	params, err := p.buildParams(request)
	if err != nil {
		return nil, err
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	var content string
	var usage TokenUsage
	blockNames := map[int64]string{}
	blockIDs := map[int64]string{}
	acc := newToolCallAccumulator()

	for stream.Next() {
		event := stream.Current()
		switch e := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			if tu, ok := e.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				blockNames[e.Index] = tu.Name
				blockIDs[e.Index] = tu.ID
			}
		case anthropic.ContentBlockDeltaEvent:
			switch d := e.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				content += d.Text
				if onDelta != nil {
					onDelta(d.Text)
				}
			case anthropic.InputJSONDelta:
				acc.addDelta(int(e.Index), blockIDs[e.Index], blockNames[e.Index], d.PartialJSON)
			}
		case anthropic.MessageDeltaEvent:
			usage.OutputTokens = int(e.Usage.OutputTokens)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	toolCalls, err := acc.finalize(func(raw string) (map[string]interface{}, error) {
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, err
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}

	return &LLMResponse{Content: content, ToolCalls: toolCalls, Usage: &usage}, nil
}
