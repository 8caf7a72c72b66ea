// Package recursion implements the Recursion Controller: depth-indexed
// model selection, base-case substitution of a no-tools leaf reasoner,
// and recursion lineage generation.
//
// Recursion lineage follows a Spawn-style shape (uuid.NewString() per
// child, parent id carried alongside) paired with depth-aware routing.
// Unlike an async-spawn-and-poll model, the depth-monotonicity invariant
// here — children terminate before the parent's model call returns —
// requires ask_sub_rlm to block synchronously on its child. So Ask here
// is a plain blocking call into Controller.Run, not a goroutine-and-poll
// dance.
package recursion

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/haasonsaas/rlmd/internal/modelclient"
	"github.com/haasonsaas/rlmd/internal/observability"
	"github.com/haasonsaas/rlmd/internal/reasoning"
	"github.com/haasonsaas/rlmd/internal/repl"
	"github.com/haasonsaas/rlmd/internal/transport"
	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

// DefaultSystemPromptWithTools seeds a level that may both execute code
// and delegate to a sub-reasoner.
const DefaultSystemPromptWithTools = "You are a reasoning agent with access to a persistent code execution " +
	"sandbox (code_execution) and the ability to delegate sub-questions to an " +
	"independent sub-reasoner (ask_sub_rlm). Use these tools as needed, then " +
	"give your final answer as plain text with no further tool calls."

// DefaultSystemPromptNoTools seeds a base-case (leaf) level: code
// execution only, no further recursion ("Base case").
const DefaultSystemPromptNoTools = "You are a reasoning agent with access to a persistent code execution " +
	"sandbox (code_execution). You cannot delegate to another reasoner. Use " +
	"the sandbox as needed, then give your final answer as plain text with no " +
	"further tool calls."

// ClientResolver maps a model id to the Model Client that serves it.
// Distinct models may be served by distinct provider bindings (Anthropic
// vs. OpenAI), so the Controller never owns a single *modelclient.Client
// directly.
type ClientResolver func(modelID string) (*modelclient.Client, error)

// Config parameterizes a Controller. RootModel and SubModels implement
// the depth-indexed model selection formula (see SelectModel).
type Config struct {
	RootModel             string
	SubModels             []string
	MaxDepth              int
	HardIterationCap      int
	SystemPromptWithTools string
	SystemPromptNoTools   string
	Limits                rlmtypes.Limits
}

func sanitizeConfig(cfg Config) Config {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 1
	}
	if cfg.SystemPromptWithTools == "" {
		cfg.SystemPromptWithTools = DefaultSystemPromptWithTools
	}
	if cfg.SystemPromptNoTools == "" {
		cfg.SystemPromptNoTools = DefaultSystemPromptNoTools
	}
	return cfg
}

// SelectModel implements the depth-indexed model selection formula:
// depth 0 uses rootModel; depth k>=1 uses
// subModels[min(k-1, len(subModels)-1)], clamping so the last configured
// sub-model is reused for deeper levels. An empty subModels at depth>=1
// falls back to rootModel rather than panicking — a deployment
// misconfiguration, not a reason to crash a running recursion tree.
func SelectModel(rootModel string, subModels []string, depth int) string {
	if depth <= 0 {
		return rootModel
	}
	if len(subModels) == 0 {
		return rootModel
	}
	idx := depth - 1
	if idx >= len(subModels) {
		idx = len(subModels) - 1
	}
	return subModels[idx]
}

// LevelUsage is one invocation's usage record, tagged with the lineage
// that produced it, suitable for the Task Coordinator's per_level_usage
// sequence.
type LevelUsage struct {
	Depth       int
	RecursionID string
	ModelID     string
	Usage       rlmtypes.UsageRecord
}

// UsageCollector accumulates LevelUsage entries across an entire
// recursion tree. A task's root call threads one through the context via
// WithUsageCollector; every Controller.Run invocation in that tree,
// however deep, appends to it.
type UsageCollector struct {
	mu      sync.Mutex
	entries []LevelUsage
}

// NewUsageCollector returns an empty collector.
func NewUsageCollector() *UsageCollector {
	return &UsageCollector{}
}

// Entries returns a snapshot of the recorded usage, in completion order.
func (u *UsageCollector) Entries() []LevelUsage {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]LevelUsage, len(u.entries))
	copy(out, u.entries)
	return out
}

func (u *UsageCollector) add(e LevelUsage) {
	u.mu.Lock()
	u.entries = append(u.entries, e)
	u.mu.Unlock()
}

type usageCollectorKey struct{}

// WithUsageCollector attaches a UsageCollector to ctx so every
// Controller.Run invocation reached through it — at any depth — records
// its usage into the same collector.
func WithUsageCollector(ctx context.Context, u *UsageCollector) context.Context {
	return context.WithValue(ctx, usageCollectorKey{}, u)
}

func usageCollectorFromContext(ctx context.Context) *UsageCollector {
	u, _ := ctx.Value(usageCollectorKey{}).(*UsageCollector)
	return u
}

// overrides carries a task's per-execution overrides (: "options
// may override max_depth and per-execution limits"; additionally
// lets an /infer request pin the root model) down through every level of
// its recursion tree via context, since a child invocation's IsBaseCase
// computation must see the same max_depth the root used.
type overrides struct {
	maxDepth  int
	rootModel string
	limits    rlmtypes.Limits
	hasLimits bool
}

type overridesKey struct{}

// WithOverrides attaches a task's max_depth/limits overrides to ctx.
// maxDepth <= 0 leaves the Controller's configured default in place;
// limits == (rlmtypes.Limits{}) does the same for execution limits.
func WithOverrides(ctx context.Context, maxDepth int, limits rlmtypes.Limits) context.Context {
	return WithModelOverride(context.WithValue(ctx, overridesKey{}, overrides{
		maxDepth:  maxDepth,
		limits:    limits,
		hasLimits: limits != (rlmtypes.Limits{}),
	}), "")
}

// WithModelOverride pins the root model for this invocation's tree (spec
// §6.2 /infer's optional `model` field), leaving sub-level model selection
// untouched — only depth 0 of SelectModel's formula is ever overridden.
func WithModelOverride(ctx context.Context, rootModel string) context.Context {
	ov, _ := ctx.Value(overridesKey{}).(overrides)
	ov.rootModel = rootModel
	return context.WithValue(ctx, overridesKey{}, ov)
}

// Controller resolves LevelContext and builds REPL Environments for each
// reasoning invocation, substituting a no-tools leaf reasoner at the base
// case (§4.7).
type Controller struct {
	transport transport.Transport
	resolve   ClientResolver
	cfg       Config

	recorder *observability.EventRecorder
	metrics  *observability.Metrics
}

// Option configures a Controller at construction time.
type Option func(*Controller)

func WithEventRecorder(r *observability.EventRecorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// New builds a Controller over the given transport and model resolver.
func New(tr transport.Transport, resolve ClientResolver, cfg Config, opts ...Option) *Controller {
	c := &Controller{transport: tr, resolve: resolve, cfg: sanitizeConfig(cfg)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is the outcome of one recursion-tree invocation, carrying the
// lineage that made it and the Reasoning Loop's answer.
type Result struct {
	reasoning.Result
	RecursionID       string
	ParentRecursionID string
	Depth             int
	ModelID           string
	SessionID         string
}

// Run resolves a LevelContext for one invocation at depth, builds its
// REPL Environment (substituting the base-case leaf reasoner when
// depth+1 == max_depth), and drives a Reasoning Loop to completion.
//
// Call with depth=0 and parentRecursionID="" for a request's root
// invocation; ask_sub_rlm dispatch recurses into this same method at
// depth+1 via the SubReasoner built into the Environment.
func (c *Controller) Run(ctx context.Context, parentRecursionID string, depth int, ownerTag, query string) (Result, error) {
	maxDepth := c.cfg.MaxDepth
	limits := c.cfg.Limits
	rootModel := c.cfg.RootModel
	if ov, ok := ctx.Value(overridesKey{}).(overrides); ok {
		if ov.maxDepth > 0 {
			maxDepth = ov.maxDepth
		}
		if ov.hasLimits {
			limits = ov.limits
		}
		if ov.rootModel != "" {
			rootModel = ov.rootModel
		}
	}

	if depth >= maxDepth {
		return Result{}, fmt.Errorf("recursion: depth %d reached max_depth %d without hitting the base case", depth, maxDepth)
	}

	lvl := rlmtypes.LevelContext{
		Depth:             depth,
		MaxDepth:          maxDepth,
		ModelID:           SelectModel(rootModel, c.cfg.SubModels, depth),
		SubModelIDs:       c.cfg.SubModels,
		ParentRecursionID: parentRecursionID,
		RecursionID:       uuid.NewString(),
		HardIterationCap:  c.cfg.HardIterationCap,
	}

	var sub repl.SubReasoner
	if !lvl.IsBaseCase() {
		sub = &childReasoner{controller: c, parentRecursionID: lvl.RecursionID, depth: depth + 1, ownerTag: ownerTag}
	}

	env, err := repl.New(ctx, c.transport, ownerTag, limits, sub)
	if err != nil {
		return Result{}, fmt.Errorf("recursion: building REPL Environment at depth %d: %w", depth, err)
	}
	defer env.Close(ctx)
	lvl.SessionID = env.SessionID()

	if c.metrics != nil {
		c.metrics.RecordRecursionDepthReached(depth)
	}

	client, err := c.resolve(lvl.ModelID)
	if err != nil {
		return Result{}, fmt.Errorf("recursion: resolving model client for %q: %w", lvl.ModelID, err)
	}

	systemPrompt := c.cfg.SystemPromptNoTools
	if env.HasAskSub() {
		systemPrompt = c.cfg.SystemPromptWithTools
	}

	loop := reasoning.New(client, env, reasoning.Config{
		ModelID:          lvl.ModelID,
		SystemPrompt:     systemPrompt,
		HardIterationCap: lvl.HardIterationCap,
	}, reasoningOptions(c)...)

	res, err := loop.Run(ctx, lvl.RecursionID, query)
	if err != nil {
		return Result{}, err
	}

	if uc := usageCollectorFromContext(ctx); uc != nil {
		uc.add(LevelUsage{Depth: depth, RecursionID: lvl.RecursionID, ModelID: lvl.ModelID, Usage: res.Usage})
	}

	return Result{
		Result:            res,
		RecursionID:       lvl.RecursionID,
		ParentRecursionID: lvl.ParentRecursionID,
		Depth:             depth,
		ModelID:           lvl.ModelID,
		SessionID:         lvl.SessionID,
	}, nil
}

func reasoningOptions(c *Controller) []reasoning.Option {
	var opts []reasoning.Option
	if c.recorder != nil {
		opts = append(opts, reasoning.WithEventRecorder(c.recorder))
	}
	if c.metrics != nil {
		opts = append(opts, reasoning.WithMetrics(c.metrics))
	}
	return opts
}

// childReasoner is the repl.SubReasoner a non-base-case Environment calls
// for ask_sub_rlm. It blocks on a full child invocation of the
// Controller, satisfying its depth-monotonicity invariant.
type childReasoner struct {
	controller        *Controller
	parentRecursionID string
	depth             int
	ownerTag          string
}

func (s *childReasoner) Ask(ctx context.Context, query string) (string, error) {
	res, err := s.controller.Run(ctx, s.parentRecursionID, s.depth, s.ownerTag, query)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}
