package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/haasonsaas/rlmd/internal/session"
	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v interface{}) {
	_ = json.NewDecoder(r.Body).Decode(v)
}

func TestInProcessRoundTrip(t *testing.T) {
	mgr := session.New(session.DefaultConfig(), nil, nil)
	defer mgr.Close()

	tr := NewInProcess(mgr)
	ctx := context.Background()

	id, err := tr.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	out, err := tr.Execute(ctx, id, `echo hi`, rlmtypes.Limits{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Stdout != "hi\n" {
		t.Fatalf("stdout = %q, want %q", out.Stdout, "hi\n")
	}

	if err := tr.DestroySession(ctx, id); err != nil {
		t.Fatalf("DestroySession: %v", err)
	}
	if _, err := tr.Execute(ctx, id, `echo hi`, rlmtypes.Limits{}); err != rlmtypes.ErrNoSuchSession {
		t.Fatalf("err = %v, want ErrNoSuchSession", err)
	}
}

func TestHTTPTransportRoundTrip(t *testing.T) {
	mgr := session.New(session.DefaultConfig(), nil, nil)
	defer mgr.Close()
	inproc := NewInProcess(mgr)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /session", func(w http.ResponseWriter, r *http.Request) {
		id, err := inproc.CreateSession(r.Context(), "")
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, CreateSessionResponse{SessionID: id})
	})
	mux.HandleFunc("POST /session/{id}/execute", func(w http.ResponseWriter, r *http.Request) {
		var req ExecuteRequest
		decodeJSON(r, &req)
		out, err := inproc.Execute(r.Context(), r.PathValue("id"), req.Code, rlmtypes.Limits{WallTimeoutMs: req.TimeoutMs})
		if err == rlmtypes.ErrNoSuchSession {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		resp := ExecuteResponse{Stdout: out.Stdout, Stderr: out.Stderr, DurationMs: out.DurationMs}
		if out.ErrorKind != nil {
			s := string(*out.ErrorKind)
			resp.ErrorKind = &s
		}
		writeJSON(w, http.StatusOK, resp)
	})
	mux.HandleFunc("DELETE /session/{id}", func(w http.ResponseWriter, r *http.Request) {
		_ = inproc.DestroySession(r.Context(), r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	tr := NewHTTP(srv.URL, 2*time.Second)
	ctx := context.Background()

	if err := tr.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}

	id, err := tr.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	out, err := tr.Execute(ctx, id, `echo hi`, rlmtypes.Limits{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Stdout != "hi\n" {
		t.Fatalf("stdout = %q, want %q", out.Stdout, "hi\n")
	}

	if err := tr.DestroySession(ctx, id); err != nil {
		t.Fatalf("DestroySession: %v", err)
	}

	if _, err := tr.Execute(ctx, id, `echo hi`, rlmtypes.Limits{}); err != rlmtypes.ErrNoSuchSession {
		t.Fatalf("err = %v, want ErrNoSuchSession", err)
	}
}

func TestHTTPTransportUnreachable(t *testing.T) {
	tr := NewHTTP("http://127.0.0.1:1", 100*time.Millisecond)
	if err := tr.Health(context.Background()); err != rlmtypes.ErrTransportUnavail {
		t.Fatalf("err = %v, want ErrTransportUnavail", err)
	}
}
