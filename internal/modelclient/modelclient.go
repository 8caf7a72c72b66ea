// Package modelclient implements the Model Client: a typed, synchronous
// wrapper over a provider's chat-completion endpoint.
//
// Chat-completion SDKs typically expose a streaming, channel-based
// Complete() and leave chunk accumulation to the caller. The Reasoning
// Loop calls the model once per iteration and needs the whole message
// back before it can dispatch tool calls, so this package deliberately
// collapses that streaming contract into a single blocking call per
// provider. See DESIGN.md for the tradeoff.
package modelclient

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/rlmd/internal/backoff"
	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

// ToolSpec is the provider-agnostic shape of one tool advertised to the model.
type ToolSpec struct {
	Name        rlmtypes.ToolName
	Description string
	Schema      json.RawMessage
}

// CompletionRequest is one call into a provider.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []rlmtypes.Message
	Tools     []ToolSpec
	MaxTokens int
}

// CompletionResult is a provider's synchronous response.
type CompletionResult struct {
	Message rlmtypes.Message
	Usage   rlmtypes.UsageRecord
}

// Provider is implemented once per backend (Anthropic, OpenAI, ...). A
// Provider call either returns a result or a *rlmtypes.ModelError — any
// other error is treated as an unclassified transient_network failure by
// the Client wrapper.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// Client wraps a Provider with a retry policy: rate_limited and
// transient_network errors are retried with exponential backoff
// capped at 60s and at most 4 attempts total; every other ModelError kind
// is fatal to the invocation (authentication is fatal to the process, but
// that escalation is the caller's responsibility, not this package's).
type Client struct {
	provider    Provider
	policy      backoff.BackoffPolicy
	maxAttempts int
}

// Option configures a Client.
type Option func(*Client)

// WithMaxAttempts overrides the default of 4 retry attempts.
func WithMaxAttempts(n int) Option {
	return func(c *Client) { c.maxAttempts = n }
}

// WithBackoffPolicy overrides the default backoff policy.
func WithBackoffPolicy(p backoff.BackoffPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// New wraps provider in a Client applying its retry policy.
func New(provider Provider, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		policy: backoff.BackoffPolicy{
			InitialMs: 500,
			MaxMs:     60000,
			Factor:    2,
			Jitter:    0.2,
		},
		maxAttempts: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete issues req against the wrapped provider, retrying retryable
// failures and returning the first fatal error encountered.
//
// A plain backoff.RetryWithBackoff loop isn't quite right here: it sleeps
// and retries on every non-nil error, but a fatal ModelError kind
// (invalid_request, authentication, content_filtered) must abort
// immediately rather than burn the remaining attempt budget.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return CompletionResult{}, err
		}

		res, err := c.provider.Complete(ctx, req)
		if err == nil {
			return res, nil
		}

		modelErr, ok := err.(*rlmtypes.ModelError)
		if !ok {
			modelErr = &rlmtypes.ModelError{
				Kind:     rlmtypes.ErrorTransientNetwork,
				Provider: c.provider.Name(),
				Model:    req.Model,
				Cause:    err,
			}
		}
		lastErr = modelErr

		if !modelErr.Retryable() {
			return CompletionResult{}, modelErr
		}
		if attempt < c.maxAttempts {
			if err := backoff.SleepWithBackoff(ctx, c.policy, attempt); err != nil {
				return CompletionResult{}, err
			}
		}
	}

	return CompletionResult{}, lastErr
}
