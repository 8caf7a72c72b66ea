// Package repl implements the REPL Environment: the per-reasoning-level
// handle a Reasoning Loop uses to run code against a sandbox session and,
// unless it is the base case, invoke a sub-reasoner.
//
// Tool dispatch here narrows a general registry-with-per-call-timeouts
// pattern down to two fixed verbs, code_execution and ask_sub_rlm, and
// formats results as tagged text instead of a generic ToolResult.
package repl

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/haasonsaas/rlmd/internal/transport"
	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

// SubReasoner is the recursive hook a REPL Environment calls for
// ask_sub_rlm. The Recursion Controller supplies the concrete
// implementation; this package only depends on the narrow interface.
type SubReasoner interface {
	Ask(ctx context.Context, query string) (string, error)
}

// Environment is one REPL bound to exactly one sandbox session. It is not
// safe for concurrent use: the Reasoning Loop dispatches tool calls
// sequentially, so no internal locking is needed beyond guarding Close
// against double-execution.
type Environment struct {
	transport transport.Transport
	sessionID string
	sub       SubReasoner
	limits    rlmtypes.Limits

	mu     sync.Mutex
	closed bool
}

// New creates a sandbox session via transport and returns a bound
// Environment. sub may be nil — this is the base case (no tools at
// max_depth), and HasAskSub will report false.
func New(ctx context.Context, tr transport.Transport, ownerTag string, limits rlmtypes.Limits, sub SubReasoner) (*Environment, error) {
	id, err := tr.CreateSession(ctx, ownerTag)
	if err != nil {
		return nil, err
	}
	return &Environment{transport: tr, sessionID: id, sub: sub, limits: limits}, nil
}

// HasAskSub reports whether this Environment may dispatch ask_sub_rlm.
func (e *Environment) HasAskSub() bool { return e.sub != nil }

// SessionID returns the bound sandbox session id.
func (e *Environment) SessionID() string { return e.sessionID }

// RunCode executes code in the bound session and returns the tool message
// text, formatted by FormatOutputs. A transport-layer failure
// (no_such_session, transport_unavailable) is returned as a Go error
// rather than formatted text, since it indicates the Environment itself
// is broken, not that the sandboxed program failed.
func (e *Environment) RunCode(ctx context.Context, code string) (string, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return "", rlmtypes.ErrNoSuchSession
	}

	out, err := e.transport.Execute(ctx, e.sessionID, code, e.limits)
	if err != nil {
		return "", err
	}
	return FormatOutputs(out), nil
}

// AskSub invokes the sub-reasoner and returns its verbatim final answer
// text — the ask_sub_rlm tool-message content is the sub-reasoner's
// verbatim final answer text, with no wrapping tags. Callers must check
// HasAskSub first; AskSub on a base-case Environment returns an error,
// and rlmtypes.ErrUnknownTool-equivalent handling is the Reasoning Loop's
// responsibility, not this package's — it simply has no SubReasoner to call.
func (e *Environment) AskSub(ctx context.Context, query string) (string, error) {
	if e.sub == nil {
		return "", fmt.Errorf("repl: ask_sub_rlm not available at this depth")
	}
	answer, err := e.sub.Ask(ctx, query)
	if err != nil {
		return "", err
	}
	return answer, nil
}

// Close destroys the bound sandbox session. Idempotent: repeated calls
// after the first succeed without re-contacting the transport.
func (e *Environment) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	return e.transport.DestroySession(ctx, e.sessionID)
}

// FormatOutputs renders sandbox Outputs as tagged tool-message text:
// <stdout>...</stdout><stderr>...</stderr><error>...</error>, with empty
// sections omitted entirely.
func FormatOutputs(out rlmtypes.Outputs) string {
	var b strings.Builder
	if out.Stdout != "" {
		b.WriteString("<stdout>")
		b.WriteString(out.Stdout)
		b.WriteString("</stdout>")
	}
	if out.Stderr != "" {
		b.WriteString("<stderr>")
		b.WriteString(out.Stderr)
		b.WriteString("</stderr>")
	}
	if out.ErrorKind != nil {
		b.WriteString("<error>")
		b.WriteString(string(*out.ErrorKind))
		b.WriteString("</error>")
	}
	return b.String()
}
