package providers

import (
	"context"
	"encoding/json"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/rlmd/internal/modelclient"
	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int
}

// OpenAIProvider implements modelclient.Provider over the Chat Completions
// API, calling the non-streaming CreateChatCompletion rather than
// CreateChatCompletionStream, per the Model Client's synchronous contract.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	maxTokens    int
}

// NewOpenAIProvider constructs an OpenAIProvider. APIKey is required.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: cfg.DefaultModel,
		maxTokens:    cfg.MaxTokens,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, req modelclient.CompletionRequest) (modelclient.CompletionResult, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	messages := convertMessagesOpenAI(req.Messages, req.System)

	chatReq := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertToolsOpenAI(req.Tools)
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return modelclient.CompletionResult{}, p.wrapErr(err, model)
	}
	if len(resp.Choices) == 0 {
		return modelclient.CompletionResult{}, &rlmtypes.ModelError{
			Kind:     rlmtypes.ErrorInvalidRequest,
			Provider: "openai",
			Model:    model,
			Message:  "empty choices in response",
		}
	}

	choice := resp.Choices[0].Message
	out := rlmtypes.Message{Role: rlmtypes.RoleAssistant, Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		out.ToolCalls = append(out.ToolCalls, rlmtypes.ToolCall{
			ID:        tc.ID,
			Name:      rlmtypes.ToolName(tc.Function.Name),
			Arguments: args,
		})
	}

	usage := rlmtypes.UsageRecord{
		PromptTokens:     int64(resp.Usage.PromptTokens),
		CompletionTokens: int64(resp.Usage.CompletionTokens),
		TotalTokens:      int64(resp.Usage.TotalTokens),
		ModelID:          model,
	}

	return modelclient.CompletionResult{Message: out, Usage: usage}, nil
}

func convertMessagesOpenAI(messages []rlmtypes.Message, system string) []openai.ChatCompletionMessage {
	var result []openai.ChatCompletionMessage
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range messages {
		switch m.Role {
		case rlmtypes.RoleSystem:
			continue
		case rlmtypes.RoleTool:
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		case rlmtypes.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Arguments)
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      string(tc.Name),
						Arguments: string(args),
					},
				})
			}
			result = append(result, msg)
		default:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		}
	}
	return result
}

func convertToolsOpenAI(tools []modelclient.ToolSpec) []openai.Tool {
	var result []openai.Tool
	for _, t := range tools {
		var params any
		if len(t.Schema) > 0 {
			_ = json.Unmarshal(t.Schema, &params)
		}
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(t.Name),
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return result
}

func (p *OpenAIProvider) wrapErr(err error, model string) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind := modelclient.ClassifyStatusCode(apiErr.HTTPStatusCode)
		return &rlmtypes.ModelError{
			Kind:     rlmtypes.ErrorKind(kind),
			Provider: "openai",
			Model:    model,
			Message:  apiErr.Message,
			Cause:    err,
		}
	}

	if kind, ok := modelclient.ClassifyMessage(err.Error()); ok {
		return &rlmtypes.ModelError{
			Kind:     rlmtypes.ErrorKind(kind),
			Provider: "openai",
			Model:    model,
			Message:  err.Error(),
			Cause:    err,
		}
	}

	return &rlmtypes.ModelError{
		Kind:     rlmtypes.ErrorTransientNetwork,
		Provider: "openai",
		Model:    model,
		Message:  err.Error(),
		Cause:    err,
	}
}
