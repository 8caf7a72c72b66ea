// Package rlmtypes defines the data model shared by every layer of the
// recursion/reasoning engine: messages, tool calls, sandbox outputs,
// sessions, per-level context, and usage accounting.
package rlmtypes

import "time"

// Role identifies who produced a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolName enumerates the finite set of tools a Reasoning Loop may advertise.
type ToolName string

const (
	ToolCodeExecution ToolName = "code_execution"
	ToolAskSubRLM     ToolName = "ask_sub_rlm"
)

// ErrorKind enumerates the error taxonomy, spanning sandbox,
// transport, and model-client failure surfaces.
type ErrorKind string

const (
	ErrorSyntax              ErrorKind = "syntax"
	ErrorRuntime             ErrorKind = "runtime"
	ErrorTimeout             ErrorKind = "timeout"
	ErrorMemory              ErrorKind = "memory"
	ErrorOutputOverflow      ErrorKind = "output_overflow"
	ErrorTransportUnavail    ErrorKind = "transport_unavailable"
	ErrorUnknownTool         ErrorKind = "unknown_tool"
	ErrorSubFailed           ErrorKind = "sub_failed"
	ErrorCapacityExhausted   ErrorKind = "capacity_exhausted"
	ErrorNoSuchSession       ErrorKind = "no_such_session"
	ErrorRateLimited         ErrorKind = "rate_limited"
	ErrorTransientNetwork    ErrorKind = "transient_network"
	ErrorInvalidRequest      ErrorKind = "invalid_request"
	ErrorAuthentication      ErrorKind = "authentication"
	ErrorContentFiltered     ErrorKind = "content_filtered"
	ErrorCancelled           ErrorKind = "cancelled"
	ErrorModelUnavailable    ErrorKind = "model_unavailable"
)

// ToolCall is a structured tool invocation embedded in an assistant Message.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      ToolName       `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// CodeArg extracts the `code` argument of a code_execution call.
func (c ToolCall) CodeArg() string {
	v, _ := c.Arguments["code"].(string)
	return v
}

// QueryArg extracts the `query` argument of an ask_sub_rlm call.
func (c ToolCall) QueryArg() string {
	v, _ := c.Arguments["query"].(string)
	return v
}

// Message is one turn in a reasoning-level conversation.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Outputs is the result of one sandbox code execution.
type Outputs struct {
	Stdout     string     `json:"stdout"`
	Stderr     string     `json:"stderr"`
	DurationMs int64      `json:"duration_ms"`
	ErrorKind  *ErrorKind `json:"error_kind,omitempty"`
}

// Limits bounds one sandbox execution.
type Limits struct {
	WallTimeoutMs     int64
	MemoryCapBytes    int64
	OutputTruncateBytes int64
}

// Session is the Session Manager's view of one live sandbox.
//
// SandboxState is exclusively owned by the Session Manager / Sandbox
// Runtime pairing and is never serialized out of process; it is typed as
// `any` here so that pkg/rlmtypes stays free of a dependency on the
// sandbox implementation package.
type Session struct {
	ID              string
	CreatedAt       time.Time
	LastUsedAt      time.Time
	SandboxState    any
	ExecutionCount  int64
	OwnerTag        string
}

// LevelContext describes one active reasoning invocation.
type LevelContext struct {
	Depth             int
	MaxDepth          int
	ModelID           string
	SubModelIDs       []string
	ParentRecursionID string
	RecursionID       string
	SessionID         string
	Iteration         int
	HardIterationCap  int
}

// IsBaseCase reports whether this level's sub-factory must produce a leaf
// reasoner with no tools ("Base case": depth+1 == max_depth).
func (l LevelContext) IsBaseCase() bool {
	return l.Depth+1 == l.MaxDepth
}

// UsageRecord accounts for one model call's token and wallclock cost.
type UsageRecord struct {
	PromptTokens       int64  `json:"prompt_tokens"`
	CachedPromptTokens int64  `json:"cached_prompt_tokens"`
	CompletionTokens   int64  `json:"completion_tokens"`
	TotalTokens        int64  `json:"total_tokens"`
	WallclockMs        int64  `json:"wallclock_ms"`
	ModelID            string `json:"model_id"`
}

// Add accumulates another UsageRecord's token counts and wallclock time into r.
func (r *UsageRecord) Add(o UsageRecord) {
	r.PromptTokens += o.PromptTokens
	r.CachedPromptTokens += o.CachedPromptTokens
	r.CompletionTokens += o.CompletionTokens
	r.TotalTokens += o.TotalTokens
	r.WallclockMs += o.WallclockMs
}
