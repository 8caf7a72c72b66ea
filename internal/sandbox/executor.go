package sandbox

import (
	"context"
	"errors"
	"strings"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

// DefaultMaxCodeBytes is the default cap on submitted code length (256 KiB).
const DefaultMaxCodeBytes = 256 << 10

const truncationMarker = "\n...[output truncated]"

// timeoutEpsilon bounds how long Execute may overrun wall_timeout_ms before
// the runner is forced to observe cancellation: execution time must not
// exceed wall_timeout_ms by more than this margin.
const timeoutEpsilon = 500 * time.Millisecond

// Runtime is the Sandbox Runtime. It holds no state of its own; all
// mutable state lives in the *State values passed to Execute, so one
// Runtime can safely serve every session (serialization against
// concurrent calls on the same session is the Session Manager's job).
type Runtime struct {
	maxCodeBytes int64
}

// New constructs a Runtime with the given code-length cap (0 selects the default).
func New(maxCodeBytes int64) *Runtime {
	if maxCodeBytes <= 0 {
		maxCodeBytes = DefaultMaxCodeBytes
	}
	return &Runtime{maxCodeBytes: maxCodeBytes}
}

// Execute runs code against state, mutating it in place, and returns the
// captured Outputs. It implements the single operation
// execute(state, code, limits) -> Outputs.
func (r *Runtime) Execute(ctx context.Context, state *State, code string, limits rlmtypes.Limits) rlmtypes.Outputs {
	start := time.Now()

	if int64(len(code)) > r.maxCodeBytes {
		return errOutputs(rlmtypes.ErrorSyntax, "code exceeds maximum length", time.Since(start))
	}

	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	prog, err := parser.Parse(strings.NewReader(code), "")
	if err != nil {
		return rlmtypes.Outputs{
			Stderr:     err.Error(),
			DurationMs: time.Since(start).Milliseconds(),
			ErrorKind:  kindPtr(rlmtypes.ErrorSyntax),
		}
	}

	wallTimeout := time.Duration(limits.WallTimeoutMs) * time.Millisecond
	if wallTimeout <= 0 {
		wallTimeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, wallTimeout+timeoutEpsilon)
	defer cancel()

	stdout := newBoundedWriter(limits.OutputTruncateBytes)
	stderr := newBoundedWriter(limits.OutputTruncateBytes)

	snapshot := &varsSnapshot{vars: cloneVars(state.vars)}
	runner, err := interp.New(
		interp.StdIO(strings.NewReader(""), stdout, stderr),
		interp.Env(snapshot),
		interp.Dir("/"),
		interp.OpenHandler(aferoOpenHandler(state.fs)),
		interp.StatHandler(aferoStatHandler(state.fs)),
		interp.ReadDirHandler(aferoReadDirHandler(state.fs)),
	)
	if err != nil {
		return errOutputs(rlmtypes.ErrorRuntime, "interpreter init failed: "+err.Error(), time.Since(start))
	}

	runErr := runner.Run(runCtx, prog)
	elapsed := time.Since(start)

	// Persist every variable the script touched, exported or not, so a
	// later Execute against the same State observes plain assignments
	// (scenario 2: turn A `x = 7`, turn B `print(x*6)`).
	state.vars = cloneVars(runner.Vars)

	out := rlmtypes.Outputs{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: elapsed.Milliseconds(),
	}
	if stdout.truncated || stderr.truncated {
		out.ErrorKind = kindPtr(rlmtypes.ErrorOutputOverflow)
		return out
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		out.ErrorKind = kindPtr(rlmtypes.ErrorTimeout)
	case runErr == nil:
		// success, no error kind
	default:
		var exit interp.ExitStatus
		if errors.As(runErr, &exit) {
			// A non-zero exit status is ordinary script control flow, not
			// an interpreter failure; it is not reported as an error_kind.
			break
		}
		if out.Stderr == "" {
			out.Stderr = runErr.Error()
		}
		out.ErrorKind = kindPtr(rlmtypes.ErrorRuntime)
	}
	return out
}

func errOutputs(kind rlmtypes.ErrorKind, msg string, elapsed time.Duration) rlmtypes.Outputs {
	return rlmtypes.Outputs{
		Stderr:     msg,
		DurationMs: elapsed.Milliseconds(),
		ErrorKind:  kindPtr(kind),
	}
}

func kindPtr(k rlmtypes.ErrorKind) *rlmtypes.ErrorKind { return &k }

func cloneVars(src map[string]expand.Variable) map[string]expand.Variable {
	dst := make(map[string]expand.Variable, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
