// Package providers adapts third-party chat-completion SDKs to the
// modelclient.Provider interface.
//
// Wraps github.com/anthropics/anthropic-sdk-go, converting between its
// request/response shapes and modelclient's own, and calls the SDK's
// non-streaming Messages.New rather than Messages.NewStreaming, since
// the Model Client contract is synchronous.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/rlmd/internal/modelclient"
	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int
}

// AnthropicProvider implements modelclient.Provider over Claude's Messages API.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	maxTokens    int
}

// NewAnthropicProvider constructs an AnthropicProvider. APIKey is required.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		maxTokens:    cfg.MaxTokens,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Complete(ctx context.Context, req modelclient.CompletionRequest) (modelclient.CompletionResult, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	messages, err := convertMessages(req.Messages)
	if err != nil {
		return modelclient.CompletionResult{}, p.wrapErr(err, model)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return modelclient.CompletionResult{}, p.wrapErr(err, model)
		}
		params.Tools = tools
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return modelclient.CompletionResult{}, p.wrapErr(err, model)
	}

	return toCompletionResult(msg, model), nil
}

func convertMessages(messages []rlmtypes.Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, m := range messages {
		if m.Role == rlmtypes.RoleSystem {
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if m.Content != "" {
			content = append(content, anthropic.NewTextBlock(m.Content))
		}
		if m.Role == rlmtypes.RoleTool {
			content = append(content, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
		}
		for _, tc := range m.ToolCalls {
			content = append(content, anthropic.NewToolUseBlock(tc.ID, tc.Arguments, string(tc.Name)))
		}

		if m.Role == rlmtypes.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func convertTools(tools []modelclient.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if len(t.Schema) > 0 {
			if err := json.Unmarshal(t.Schema, &schema); err != nil {
				return nil, fmt.Errorf("invalid tool schema for %s: %w", t.Name, err)
			}
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, string(t.Name))
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", t.Name)
		}
		toolParam.OfTool.Description = anthropic.String(t.Description)
		result = append(result, toolParam)
	}
	return result, nil
}

func toCompletionResult(msg *anthropic.Message, model string) modelclient.CompletionResult {
	out := rlmtypes.Message{Role: rlmtypes.RoleAssistant}

	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content += variant.Text
		case anthropic.ToolUseBlock:
			var args map[string]any
			_ = json.Unmarshal(variant.Input, &args)
			out.ToolCalls = append(out.ToolCalls, rlmtypes.ToolCall{
				ID:        variant.ID,
				Name:      rlmtypes.ToolName(variant.Name),
				Arguments: args,
			})
		}
	}

	usage := rlmtypes.UsageRecord{
		PromptTokens:       msg.Usage.InputTokens,
		CachedPromptTokens: msg.Usage.CacheReadInputTokens,
		CompletionTokens:   msg.Usage.OutputTokens,
		TotalTokens:        msg.Usage.InputTokens + msg.Usage.OutputTokens,
		ModelID:            model,
	}

	return modelclient.CompletionResult{Message: out, Usage: usage}
}

func (p *AnthropicProvider) wrapErr(err error, model string) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		kind := modelclient.ClassifyStatusCode(int(apiErr.StatusCode))
		return &rlmtypes.ModelError{
			Kind:     rlmtypes.ErrorKind(kind),
			Provider: "anthropic",
			Model:    model,
			Message:  apiErr.Error(),
			Cause:    err,
		}
	}

	if kind, ok := modelclient.ClassifyMessage(err.Error()); ok {
		return &rlmtypes.ModelError{
			Kind:     rlmtypes.ErrorKind(kind),
			Provider: "anthropic",
			Model:    model,
			Message:  err.Error(),
			Cause:    err,
		}
	}

	return &rlmtypes.ModelError{
		Kind:     rlmtypes.ErrorTransientNetwork,
		Provider: "anthropic",
		Model:    model,
		Message:  err.Error(),
		Cause:    err,
	}
}
