package modelclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/rlmd/internal/backoff"
	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

type fakeProvider struct {
	name  string
	calls int
	fn    func(call int) (CompletionResult, error)
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	f.calls++
	return f.fn(f.calls)
}

func fastPolicy() backoff.BackoffPolicy {
	return backoff.BackoffPolicy{InitialMs: 1, MaxMs: 5, Factor: 1, Jitter: 0}
}

func TestClient_SucceedsFirstAttempt(t *testing.T) {
	fp := &fakeProvider{name: "fake", fn: func(call int) (CompletionResult, error) {
		return CompletionResult{Message: rlmtypes.Message{Content: "hi"}}, nil
	}}
	c := New(fp, WithBackoffPolicy(fastPolicy()))

	res, err := c.Complete(context.Background(), CompletionRequest{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Message.Content != "hi" {
		t.Errorf("content = %q, want hi", res.Message.Content)
	}
	if fp.calls != 1 {
		t.Errorf("calls = %d, want 1", fp.calls)
	}
}

func TestClient_RetriesRateLimited(t *testing.T) {
	fp := &fakeProvider{name: "fake", fn: func(call int) (CompletionResult, error) {
		if call < 3 {
			return CompletionResult{}, &rlmtypes.ModelError{Kind: rlmtypes.ErrorRateLimited, Provider: "fake", Model: "m"}
		}
		return CompletionResult{Message: rlmtypes.Message{Content: "ok"}}, nil
	}}
	c := New(fp, WithBackoffPolicy(fastPolicy()), WithMaxAttempts(4))

	res, err := c.Complete(context.Background(), CompletionRequest{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Message.Content != "ok" {
		t.Errorf("content = %q, want ok", res.Message.Content)
	}
	if fp.calls != 3 {
		t.Errorf("calls = %d, want 3", fp.calls)
	}
}

func TestClient_DoesNotRetryFatalErrors(t *testing.T) {
	fp := &fakeProvider{name: "fake", fn: func(call int) (CompletionResult, error) {
		return CompletionResult{}, &rlmtypes.ModelError{Kind: rlmtypes.ErrorAuthentication, Provider: "fake", Model: "m"}
	}}
	c := New(fp, WithBackoffPolicy(fastPolicy()), WithMaxAttempts(4))

	_, err := c.Complete(context.Background(), CompletionRequest{Model: "m"})
	var modelErr *rlmtypes.ModelError
	if !errors.As(err, &modelErr) {
		t.Fatalf("expected *rlmtypes.ModelError, got %v", err)
	}
	if modelErr.Kind != rlmtypes.ErrorAuthentication {
		t.Errorf("kind = %s, want authentication", modelErr.Kind)
	}
	if fp.calls != 1 {
		t.Errorf("calls = %d, want 1 (fatal errors must not retry)", fp.calls)
	}
}

func TestClient_ExhaustsAttemptsOnPersistentRetryable(t *testing.T) {
	fp := &fakeProvider{name: "fake", fn: func(call int) (CompletionResult, error) {
		return CompletionResult{}, &rlmtypes.ModelError{Kind: rlmtypes.ErrorTransientNetwork, Provider: "fake", Model: "m"}
	}}
	c := New(fp, WithBackoffPolicy(fastPolicy()), WithMaxAttempts(3))

	_, err := c.Complete(context.Background(), CompletionRequest{Model: "m"})
	var modelErr *rlmtypes.ModelError
	if !errors.As(err, &modelErr) {
		t.Fatalf("expected *rlmtypes.ModelError, got %v", err)
	}
	if fp.calls != 3 {
		t.Errorf("calls = %d, want 3", fp.calls)
	}
}

func TestClient_RespectsContextCancellation(t *testing.T) {
	fp := &fakeProvider{name: "fake", fn: func(call int) (CompletionResult, error) {
		return CompletionResult{}, &rlmtypes.ModelError{Kind: rlmtypes.ErrorTransientNetwork, Provider: "fake", Model: "m"}
	}}
	c := New(fp, WithBackoffPolicy(backoff.BackoffPolicy{InitialMs: 500, MaxMs: 1000, Factor: 2, Jitter: 0}), WithMaxAttempts(5))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Complete(ctx, CompletionRequest{Model: "m"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestClient_WrapsUnclassifiedErrorAsTransientNetwork(t *testing.T) {
	fp := &fakeProvider{name: "fake", fn: func(call int) (CompletionResult, error) {
		return CompletionResult{}, errors.New("boom")
	}}
	c := New(fp, WithBackoffPolicy(fastPolicy()), WithMaxAttempts(1))

	_, err := c.Complete(context.Background(), CompletionRequest{Model: "m"})
	var modelErr *rlmtypes.ModelError
	if !errors.As(err, &modelErr) {
		t.Fatalf("expected *rlmtypes.ModelError, got %v", err)
	}
	if modelErr.Kind != rlmtypes.ErrorTransientNetwork {
		t.Errorf("kind = %s, want transient_network", modelErr.Kind)
	}
}
