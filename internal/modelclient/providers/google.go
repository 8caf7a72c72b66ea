package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/haasonsaas/rlmd/internal/modelclient"
	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

// GoogleConfig configures a GoogleProvider.
type GoogleConfig struct {
	APIKey       string
	DefaultModel string
	MaxTokens    int
}

// GoogleProvider implements modelclient.Provider over the Gemini API,
// calling the SDK's non-streaming Models.GenerateContent rather than
// Models.GenerateContentStream, per the Model Client's synchronous contract.
type GoogleProvider struct {
	client       *genai.Client
	defaultModel string
	maxTokens    int
}

// NewGoogleProvider constructs a GoogleProvider. APIKey is required.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("google: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.0-flash"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: failed to create client: %w", err)
	}

	return &GoogleProvider{
		client:       client,
		defaultModel: cfg.DefaultModel,
		maxTokens:    cfg.MaxTokens,
	}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Complete(ctx context.Context, req modelclient.CompletionRequest) (modelclient.CompletionResult, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	contents := convertMessagesGoogle(req.Messages)
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertToolsGoogle(req.Tools)
		if err != nil {
			return modelclient.CompletionResult{}, p.wrapErr(err, model)
		}
		config.Tools = tools
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return modelclient.CompletionResult{}, p.wrapErr(err, model)
	}
	if len(resp.Candidates) == 0 {
		return modelclient.CompletionResult{}, &rlmtypes.ModelError{
			Kind:     rlmtypes.ErrorInvalidRequest,
			Provider: "google",
			Model:    model,
			Message:  "empty candidates in response",
		}
	}

	return toCompletionResultGoogle(resp, model), nil
}

func convertMessagesGoogle(messages []rlmtypes.Message) []*genai.Content {
	var result []*genai.Content
	for _, m := range messages {
		if m.Role == rlmtypes.RoleSystem {
			continue
		}

		content := &genai.Content{}
		switch m.Role {
		case rlmtypes.RoleAssistant:
			content.Role = genai.RoleModel
		default:
			content.Role = genai.RoleUser
		}

		if m.Content != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: m.Content})
		}
		if m.Role == rlmtypes.RoleTool {
			var response map[string]any
			if err := json.Unmarshal([]byte(m.Content), &response); err != nil {
				response = map[string]any{"result": m.Content}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{Name: m.ToolCallID, Response: response},
			})
		}
		for _, tc := range m.ToolCalls {
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: string(tc.Name), Args: tc.Arguments},
			})
		}

		if len(content.Parts) > 0 {
			result = append(result, content)
		}
	}
	return result
}

func convertToolsGoogle(tools []modelclient.ToolSpec) ([]*genai.Tool, error) {
	var decls []*genai.FunctionDeclaration
	for _, t := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        string(t.Name),
			Description: t.Description,
		}
		if len(t.Schema) > 0 {
			var schema genai.Schema
			if err := json.Unmarshal(t.Schema, &schema); err != nil {
				return nil, fmt.Errorf("invalid tool schema for %s: %w", t.Name, err)
			}
			decl.Parameters = &schema
		}
		decls = append(decls, decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

func toCompletionResultGoogle(resp *genai.GenerateContentResponse, model string) modelclient.CompletionResult {
	out := rlmtypes.Message{Role: rlmtypes.RoleAssistant}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.Content += part.Text
		}
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, rlmtypes.ToolCall{
				ID:        part.FunctionCall.Name,
				Name:      rlmtypes.ToolName(part.FunctionCall.Name),
				Arguments: part.FunctionCall.Args,
			})
		}
	}

	usage := rlmtypes.UsageRecord{ModelID: model}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int64(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(resp.UsageMetadata.TotalTokenCount)
	}

	return modelclient.CompletionResult{Message: out, Usage: usage}
}

// wrapErr classifies a Gemini SDK error by message text rather than a
// typed status code, since the SDK surfaces API failures as plain errors
// without a structured status field to switch on.
func (p *GoogleProvider) wrapErr(err error, model string) error {
	if err == nil {
		return nil
	}

	if kind, ok := modelclient.ClassifyMessage(err.Error()); ok {
		return &rlmtypes.ModelError{
			Kind:     rlmtypes.ErrorKind(kind),
			Provider: "google",
			Model:    model,
			Message:  err.Error(),
			Cause:    err,
		}
	}

	return &rlmtypes.ModelError{
		Kind:     rlmtypes.ErrorTransientNetwork,
		Provider: "google",
		Model:    model,
		Message:  err.Error(),
		Cause:    err,
	}
}
