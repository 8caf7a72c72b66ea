package repl

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/rlmd/internal/session"
	"github.com/haasonsaas/rlmd/internal/transport"
	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

func newTestTransport(t *testing.T) transport.Transport {
	t.Helper()
	mgr := session.New(session.DefaultConfig(), nil, nil)
	t.Cleanup(mgr.Close)
	return transport.NewInProcess(mgr)
}

type fakeSub struct {
	answer string
	err    error
	calls  int
}

func (f *fakeSub) Ask(ctx context.Context, query string) (string, error) {
	f.calls++
	return f.answer, f.err
}

func TestEnvironment_RunCode(t *testing.T) {
	env, err := New(context.Background(), newTestTransport(t), "", rlmtypes.Limits{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer env.Close(context.Background())

	msg, err := env.RunCode(context.Background(), `echo hello`)
	if err != nil {
		t.Fatalf("RunCode: %v", err)
	}
	want := "<stdout>hello\n</stdout>"
	if msg != want {
		t.Errorf("message = %q, want %q", msg, want)
	}
}

func TestEnvironment_RunCode_OmitsEmptySections(t *testing.T) {
	env, err := New(context.Background(), newTestTransport(t), "", rlmtypes.Limits{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer env.Close(context.Background())

	msg, err := env.RunCode(context.Background(), `true`)
	if err != nil {
		t.Fatalf("RunCode: %v", err)
	}
	if msg != "" {
		t.Errorf("message = %q, want empty string for no output", msg)
	}
}

func TestEnvironment_HasAskSub(t *testing.T) {
	env, _ := New(context.Background(), newTestTransport(t), "", rlmtypes.Limits{}, nil)
	defer env.Close(context.Background())
	if env.HasAskSub() {
		t.Error("HasAskSub() = true, want false for nil sub")
	}

	sub := &fakeSub{answer: "42"}
	env2, _ := New(context.Background(), newTestTransport(t), "", rlmtypes.Limits{}, sub)
	defer env2.Close(context.Background())
	if !env2.HasAskSub() {
		t.Error("HasAskSub() = false, want true")
	}
}

func TestEnvironment_AskSub(t *testing.T) {
	sub := &fakeSub{answer: "the answer is 42"}
	env, err := New(context.Background(), newTestTransport(t), "", rlmtypes.Limits{}, sub)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer env.Close(context.Background())

	answer, err := env.AskSub(context.Background(), "what is the answer?")
	if err != nil {
		t.Fatalf("AskSub: %v", err)
	}
	if answer != "the answer is 42" {
		t.Errorf("answer = %q, want %q", answer, "the answer is 42")
	}
	if sub.calls != 1 {
		t.Errorf("sub.calls = %d, want 1", sub.calls)
	}
}

func TestEnvironment_AskSub_WithoutSubReturnsError(t *testing.T) {
	env, _ := New(context.Background(), newTestTransport(t), "", rlmtypes.Limits{}, nil)
	defer env.Close(context.Background())

	if _, err := env.AskSub(context.Background(), "anything"); err == nil {
		t.Error("expected error calling AskSub with no sub-reasoner")
	}
}

func TestEnvironment_AskSub_PropagatesError(t *testing.T) {
	sub := &fakeSub{err: errors.New("sub reasoner exploded")}
	env, _ := New(context.Background(), newTestTransport(t), "", rlmtypes.Limits{}, sub)
	defer env.Close(context.Background())

	_, err := env.AskSub(context.Background(), "q")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestEnvironment_CloseIsIdempotent(t *testing.T) {
	env, err := New(context.Background(), newTestTransport(t), "", rlmtypes.Limits{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := env.Close(context.Background()); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := env.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestEnvironment_RunCodeAfterCloseFails(t *testing.T) {
	env, err := New(context.Background(), newTestTransport(t), "", rlmtypes.Limits{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := env.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := env.RunCode(context.Background(), `echo hi`); err != rlmtypes.ErrNoSuchSession {
		t.Fatalf("err = %v, want ErrNoSuchSession", err)
	}
}

func TestFormatOutputs(t *testing.T) {
	errKind := rlmtypes.ErrorTimeout
	tests := []struct {
		name string
		out  rlmtypes.Outputs
		want string
	}{
		{"empty", rlmtypes.Outputs{}, ""},
		{"stdout only", rlmtypes.Outputs{Stdout: "hi\n"}, "<stdout>hi\n</stdout>"},
		{"stderr only", rlmtypes.Outputs{Stderr: "oops\n"}, "<stderr>oops\n</stderr>"},
		{
			"all sections",
			rlmtypes.Outputs{Stdout: "a", Stderr: "b", ErrorKind: &errKind},
			"<stdout>a</stdout><stderr>b</stderr><error>timeout</error>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatOutputs(tt.out); got != tt.want {
				t.Errorf("FormatOutputs() = %q, want %q", got, tt.want)
			}
		})
	}
}
