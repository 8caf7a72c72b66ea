// Package reasoning implements the Reasoning Loop: the per-level
// conversation engine that seeds a message list, calls the Model
// Client, dispatches any tool calls to a REPL Environment in the order
// the model emitted them, and returns the model's terminal answer.
//
// The loop drives an init -> call model -> dispatch tools -> continue
// state machine, narrowed well below a general agentic-loop shape: no
// streaming (the model returns one complete message per call), no
// persistence/branch store (a reasoning-level message list lives only
// on the call stack), no approval policy or async-job tools (the tool
// set here is the fixed two-verb surface of the REPL Environment), and
// sequential (never parallel) tool dispatch, since only one tool call
// may be in flight per turn.
package reasoning

import (
	"context"
	"fmt"
	"time"

	"github.com/haasonsaas/rlmd/internal/modelclient"
	"github.com/haasonsaas/rlmd/internal/observability"
	"github.com/haasonsaas/rlmd/internal/repl"
	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

// DefaultHardIterationCap is the default forced-finalization threshold of
// ("hard_iteration_cap (default 20)").
const DefaultHardIterationCap = 20

const finalizeInstruction = "You have reached the iteration limit for this turn. " +
	"Provide your final answer now based on everything gathered so far. No further tool calls are available."

// Environment is the narrow surface the Reasoning Loop drives: running
// code and, where available, asking a sub-reasoner. Satisfied by
// *repl.Environment; an interface here keeps this package free of a
// circular import and lets tests use a fake.
type Environment interface {
	HasAskSub() bool
	RunCode(ctx context.Context, code string) (string, error)
	AskSub(ctx context.Context, query string) (string, error)
}

var _ Environment = (*repl.Environment)(nil)

// Config bounds one Reasoning Loop invocation.
type Config struct {
	ModelID          string
	SystemPrompt     string
	HardIterationCap int
	MaxTokens        int
}

func sanitizeConfig(cfg Config) Config {
	if cfg.HardIterationCap <= 0 {
		cfg.HardIterationCap = DefaultHardIterationCap
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return cfg
}

// Loop drives one reasoning-level conversation to a terminal answer.
type Loop struct {
	client *modelclient.Client
	env    Environment
	cfg    Config

	recorder *observability.EventRecorder
	metrics  *observability.Metrics
}

// Option configures a Loop at construction time.
type Option func(*Loop)

// WithEventRecorder attaches a run-event timeline recorder (
// "required on every telemetry event").
func WithEventRecorder(r *observability.EventRecorder) Option {
	return func(l *Loop) { l.recorder = r }
}

// WithMetrics attaches a Prometheus metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// New builds a Loop over the given Model Client and REPL Environment.
// toolsAvailable controls whether ask_sub_rlm is advertised at all: the
// base case ("depth+1 == max_depth exposes run_code only") must
// pass an Environment whose HasAskSub() is false even if a SubReasoner
// happened to be wired in, so this constructor trusts env.HasAskSub()
// rather than taking a separate flag.
func New(client *modelclient.Client, env Environment, cfg Config, opts ...Option) *Loop {
	l := &Loop{client: client, env: env, cfg: sanitizeConfig(cfg)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Result is the outcome of one Run.
type Result struct {
	Answer    string
	Usage     rlmtypes.UsageRecord
	Iterations int
}

// Run conducts the tool-using conversation until the model
// emits a terminal assistant message with no tool calls, or the hard
// iteration cap forces a no-tools finalization turn.
func (l *Loop) Run(ctx context.Context, recursionID, query string) (Result, error) {
	// RecordRunStart only attaches the run id to the context it's given,
	// not to the caller's ctx, so every later Record* call in this Run
	// needs that correlation applied up front.
	ctx = observability.AddRunID(ctx, recursionID)

	messages := []rlmtypes.Message{
		{Role: rlmtypes.RoleSystem, Content: l.cfg.SystemPrompt},
		{Role: rlmtypes.RoleUser, Content: query},
	}

	if l.recorder != nil {
		_ = l.recorder.RecordRunStart(ctx, recursionID, map[string]interface{}{"model": l.cfg.ModelID})
	}
	runStart := time.Now()

	var usage rlmtypes.UsageRecord
	iteration := 0

	for {
		select {
		case <-ctx.Done():
			return Result{}, l.fail(ctx, "call_model", recursionID, runStart, ctx.Err())
		default:
		}

		forceFinalize := iteration >= l.cfg.HardIterationCap
		if forceFinalize {
			messages = append(messages, rlmtypes.Message{Role: rlmtypes.RoleUser, Content: finalizeInstruction})
		}

		tools := l.advertisedTools(forceFinalize)

		assistant, turnUsage, err := l.callModel(ctx, messages, tools)
		if err != nil {
			return Result{}, l.fail(ctx, "call_model", recursionID, runStart, err)
		}
		usage.Add(turnUsage)
		messages = append(messages, assistant)

		if len(assistant.ToolCalls) == 0 {
			if l.recorder != nil {
				_ = l.recorder.RecordRunEnd(ctx, time.Since(runStart), nil)
			}
			return Result{Answer: assistant.Content, Usage: usage, Iterations: iteration}, nil
		}

		if forceFinalize {
			// The model was given tools=[]; it cannot have emitted tool
			// calls. Treat any as a protocol violation rather than loop
			// forever.
			return Result{}, l.fail(ctx, "finalize", recursionID, runStart,
				fmt.Errorf("reasoning: model emitted tool calls on forced finalization turn"))
		}

		messages = l.dispatchToolCalls(ctx, messages, assistant.ToolCalls)

		iteration++
	}
}

func (l *Loop) advertisedTools(forceFinalize bool) []modelclient.ToolSpec {
	if forceFinalize {
		return nil
	}
	tools := []modelclient.ToolSpec{{
		Name:        rlmtypes.ToolCodeExecution,
		Description: "Execute code against the persistent sandbox session and observe stdout/stderr.",
	}}
	if l.env.HasAskSub() {
		tools = append(tools, modelclient.ToolSpec{
			Name:        rlmtypes.ToolAskSubRLM,
			Description: "Delegate a sub-question to a fresh, independent sub-reasoner and receive its final answer.",
		})
	}
	return tools
}

func (l *Loop) callModel(ctx context.Context, messages []rlmtypes.Message, tools []modelclient.ToolSpec) (rlmtypes.Message, rlmtypes.UsageRecord, error) {
	if l.recorder != nil {
		_ = l.recorder.RecordModelRequest(ctx, "", l.cfg.ModelID)
	}
	start := time.Now()

	res, err := l.client.Complete(ctx, modelclient.CompletionRequest{
		Model:     l.cfg.ModelID,
		System:    l.cfg.SystemPrompt,
		Messages:  messages,
		Tools:     tools,
		MaxTokens: l.cfg.MaxTokens,
	})

	if l.recorder != nil {
		_ = l.recorder.RecordModelResponse(ctx, "", l.cfg.ModelID, time.Since(start), err)
	}
	if err != nil {
		if l.metrics != nil {
			l.metrics.RecordModelRequest("", l.cfg.ModelID, "error", time.Since(start).Seconds())
		}
		return rlmtypes.Message{}, rlmtypes.UsageRecord{}, err
	}
	if l.metrics != nil {
		l.metrics.RecordModelRequest("", l.cfg.ModelID, "ok", time.Since(start).Seconds())
		l.metrics.RecordModelTokens("", l.cfg.ModelID, res.Usage.PromptTokens, res.Usage.CachedPromptTokens, res.Usage.CompletionTokens)
	}
	return res.Message, res.Usage, nil
}

// dispatchToolCalls executes each tool call strictly in the order the
// model emitted it ("Ordering of tool dispatch"), appending one
// tool message per call. Dispatch failures never abort the loop: they are
// encoded into the tool message text so the model can observe and react.
func (l *Loop) dispatchToolCalls(ctx context.Context, messages []rlmtypes.Message, calls []rlmtypes.ToolCall) []rlmtypes.Message {
	for _, call := range calls {
		var content string
		switch {
		case call.Name == rlmtypes.ToolCodeExecution:
			content = l.runCode(ctx, call)
		case call.Name == rlmtypes.ToolAskSubRLM && l.env.HasAskSub():
			content = l.askSub(ctx, call)
		default:
			content = fmt.Sprintf("<error>%s</error>", rlmtypes.ErrorUnknownTool)
			if l.metrics != nil {
				l.metrics.RecordToolDispatch(string(call.Name), "unknown_tool")
			}
		}
		messages = append(messages, rlmtypes.Message{
			Role:       rlmtypes.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
		})
	}
	return messages
}

func (l *Loop) runCode(ctx context.Context, call rlmtypes.ToolCall) string {
	if l.recorder != nil {
		_ = l.recorder.RecordToolStart(ctx, string(rlmtypes.ToolCodeExecution), call.CodeArg())
	}
	start := time.Now()

	out, err := l.env.RunCode(ctx, call.CodeArg())

	if l.recorder != nil {
		_ = l.recorder.RecordToolEnd(ctx, string(rlmtypes.ToolCodeExecution), time.Since(start), out, err)
	}
	if err != nil {
		// A transport failure, not a sandboxed-program failure (repl.RunCode
		// only returns an error when the Environment itself is broken).
		if l.metrics != nil {
			l.metrics.RecordToolDispatch(string(rlmtypes.ToolCodeExecution), "transport_unavailable")
		}
		return fmt.Sprintf("<error>%s</error>", rlmtypes.ErrorTransportUnavail)
	}
	if l.metrics != nil {
		l.metrics.RecordToolDispatch(string(rlmtypes.ToolCodeExecution), "ok")
	}
	return out
}

func (l *Loop) askSub(ctx context.Context, call rlmtypes.ToolCall) string {
	if l.recorder != nil {
		_ = l.recorder.RecordToolStart(ctx, string(rlmtypes.ToolAskSubRLM), call.QueryArg())
	}
	start := time.Now()

	answer, err := l.env.AskSub(ctx, call.QueryArg())

	if l.recorder != nil {
		_ = l.recorder.RecordToolEnd(ctx, string(rlmtypes.ToolAskSubRLM), time.Since(start), answer, err)
	}
	if err != nil {
		if l.metrics != nil {
			l.metrics.RecordToolDispatch(string(rlmtypes.ToolAskSubRLM), "sub_failed")
		}
		return fmt.Sprintf("<error>%s</error>", rlmtypes.ErrorSubFailed)
	}
	if l.metrics != nil {
		l.metrics.RecordToolDispatch(string(rlmtypes.ToolAskSubRLM), "ok")
	}
	return answer
}

// fail records run-end telemetry and wraps cause as a LoopError. A
// ModelError exhausted by retry ("on exhaustion the loop fails
// with model_unavailable") is rewrapped so callers see that kind rather
// than the last transient failure's kind.
func (l *Loop) fail(ctx context.Context, phase, recursionID string, runStart time.Time, cause error) error {
	if l.recorder != nil {
		_ = l.recorder.RecordRunEnd(ctx, time.Since(runStart), cause)
	}
	if me, ok := cause.(*rlmtypes.ModelError); ok && me.Retryable() {
		cause = &rlmtypes.ModelError{Kind: rlmtypes.ErrorModelUnavailable, Provider: me.Provider, Model: me.Model, Cause: me}
	}
	return &rlmtypes.LoopError{Phase: phase, RecursionID: recursionID, Cause: cause}
}
