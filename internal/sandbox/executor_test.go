package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

func TestExecuteHelloWorld(t *testing.T) {
	rt := New(0)
	state := NewState()
	out := rt.Execute(context.Background(), state, `echo $((21+21))`, rlmtypes.Limits{})
	if out.ErrorKind != nil {
		t.Fatalf("unexpected error kind: %v stderr=%q", *out.ErrorKind, out.Stderr)
	}
	if strings.TrimSpace(out.Stdout) != "42" {
		t.Fatalf("stdout = %q, want 42", out.Stdout)
	}
}

func TestExecuteStatePersistsAcrossCalls(t *testing.T) {
	rt := New(0)
	state := NewState()

	out1 := rt.Execute(context.Background(), state, `x=7`, rlmtypes.Limits{})
	if out1.ErrorKind != nil {
		t.Fatalf("turn A failed: %v", *out1.ErrorKind)
	}

	out2 := rt.Execute(context.Background(), state, `echo $((x*6))`, rlmtypes.Limits{})
	if out2.ErrorKind != nil {
		t.Fatalf("turn B failed: %v stderr=%q", *out2.ErrorKind, out2.Stderr)
	}
	if strings.TrimSpace(out2.Stdout) != "42" {
		t.Fatalf("stdout = %q, want 42", out2.Stdout)
	}
}

func TestExecuteIsolatesSeparateStates(t *testing.T) {
	rt := New(0)
	s1 := NewState()
	s2 := NewState()

	rt.Execute(context.Background(), s1, `secret=111`, rlmtypes.Limits{})
	rt.Execute(context.Background(), s2, `secret=222`, rlmtypes.Limits{})

	out1 := rt.Execute(context.Background(), s1, `echo $secret`, rlmtypes.Limits{})
	out2 := rt.Execute(context.Background(), s2, `echo $secret`, rlmtypes.Limits{})

	if strings.TrimSpace(out1.Stdout) != "111" {
		t.Fatalf("session 1 stdout = %q, want 111", out1.Stdout)
	}
	if strings.TrimSpace(out2.Stdout) != "222" {
		t.Fatalf("session 2 stdout = %q, want 222", out2.Stdout)
	}
}

func TestExecuteTimeout(t *testing.T) {
	rt := New(0)
	state := NewState()
	out := rt.Execute(context.Background(), state, `while true; do :; done`, rlmtypes.Limits{WallTimeoutMs: 200})
	if out.ErrorKind == nil || *out.ErrorKind != rlmtypes.ErrorTimeout {
		t.Fatalf("error kind = %v, want timeout", out.ErrorKind)
	}
	if out.DurationMs < 200 || out.DurationMs > 1000 {
		t.Fatalf("duration_ms = %d, want in [200, 1000]", out.DurationMs)
	}
}

func TestExecuteSyntaxError(t *testing.T) {
	rt := New(0)
	state := NewState()
	out := rt.Execute(context.Background(), state, `if then fi fi (`, rlmtypes.Limits{})
	if out.ErrorKind == nil || *out.ErrorKind != rlmtypes.ErrorSyntax {
		t.Fatalf("error kind = %v, want syntax", out.ErrorKind)
	}
}

func TestExecuteOutputTruncation(t *testing.T) {
	rt := New(0)
	state := NewState()
	out := rt.Execute(context.Background(), state, `yes x | head -c 4096`, rlmtypes.Limits{OutputTruncateBytes: 128})
	if out.ErrorKind == nil || *out.ErrorKind != rlmtypes.ErrorOutputOverflow {
		t.Fatalf("error kind = %v, want output_overflow", out.ErrorKind)
	}
	if !strings.Contains(out.Stdout, "truncated") {
		t.Fatalf("stdout missing truncation marker: %q", out.Stdout)
	}
}

func TestExecuteNoOpThenPrint(t *testing.T) {
	rt := New(0)
	state := NewState()
	rt.Execute(context.Background(), state, `:`, rlmtypes.Limits{})
	out := rt.Execute(context.Background(), state, `echo 1`, rlmtypes.Limits{})
	if out.Stdout != "1\n" {
		t.Fatalf("stdout = %q, want %q", out.Stdout, "1\n")
	}
}

func TestExecuteRespectsCodeLengthCap(t *testing.T) {
	rt := New(8)
	state := NewState()
	out := rt.Execute(context.Background(), state, `echo hello world`, rlmtypes.Limits{})
	if out.ErrorKind == nil || *out.ErrorKind != rlmtypes.ErrorSyntax {
		t.Fatalf("error kind = %v, want syntax (length cap)", out.ErrorKind)
	}
}

func TestExecuteWithinEpsilonOfContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	rt := New(0)
	state := NewState()
	out := rt.Execute(ctx, state, `sleep 5`, rlmtypes.Limits{WallTimeoutMs: 30000})
	if out.ErrorKind == nil {
		t.Fatalf("expected an error kind when parent context is cancelled early")
	}
}
