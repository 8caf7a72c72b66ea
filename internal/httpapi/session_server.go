package httpapi

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/haasonsaas/rlmd/internal/observability"
	"github.com/haasonsaas/rlmd/internal/session"
	"github.com/haasonsaas/rlmd/internal/transport"
	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

// SessionServer is the server side of the Execution Transport's HTTP
// bindings, implementing directly against a *session.Manager.
// transport.HTTP is this server's client; both share transport's wire
// types so the two sides never drift.
type SessionServer struct {
	manager       *session.Manager
	defaultLimits rlmtypes.Limits
	log           *observability.Logger
	metrics       *observability.Metrics

	// ready gates /ready ("200 once accepting new sessions, 503
	// while warming up"); /health is independent of it and reports the
	// sandbox runtime's own readiness via Manager.
	ready atomic.Bool
}

// SessionServerOption configures a SessionServer at construction time.
type SessionServerOption func(*SessionServer)

func WithSessionLogger(l *observability.Logger) SessionServerOption {
	return func(s *SessionServer) { s.log = l }
}

func WithSessionMetrics(m *observability.Metrics) SessionServerOption {
	return func(s *SessionServer) { s.metrics = m }
}

// NewSessionServer builds a SessionServer over manager. defaultLimits fills
// in WallTimeoutMs when an /execute request omits timeout_ms.
func NewSessionServer(manager *session.Manager, defaultLimits rlmtypes.Limits, opts ...SessionServerOption) *SessionServer {
	s := &SessionServer{manager: manager, defaultLimits: defaultLimits}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetReady flips /ready's response, called by cmd/rlmd once the Sandbox
// Runtime has finished warming up.
func (s *SessionServer) SetReady(ready bool) { s.ready.Store(ready) }

// Routes registers this server's handlers on mux.
func (s *SessionServer) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /session", instrument(s.log, s.metrics, "/session", s.handleCreate))
	mux.HandleFunc("POST /session/{id}/execute", instrument(s.log, s.metrics, "/session/{id}/execute", s.handleExecute))
	mux.HandleFunc("DELETE /session/{id}", instrument(s.log, s.metrics, "/session/{id}", s.handleDestroy))
	mux.HandleFunc("GET /sessions", instrument(s.log, s.metrics, "/sessions", s.handleList))
	mux.HandleFunc("GET /health", instrument(s.log, s.metrics, "/health", s.handleHealth))
	mux.HandleFunc("GET /ready", instrument(s.log, s.metrics, "/ready", s.handleReady))
}

func (s *SessionServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req transport.CreateSessionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	id, err := s.manager.CreateSession(req.OwnerTag)
	if err != nil {
		if errors.Is(err, rlmtypes.ErrCapacityExhausted) {
			writeError(w, http.StatusServiceUnavailable, "capacity_exhausted")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, transport.CreateSessionResponse{SessionID: id})
}

func (s *SessionServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req transport.ExecuteRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	limits := s.defaultLimits
	if req.TimeoutMs > 0 {
		limits.WallTimeoutMs = req.TimeoutMs
	}

	out, err := s.manager.Execute(r.Context(), id, req.Code, limits)
	if err != nil {
		if errors.Is(err, rlmtypes.ErrNoSuchSession) {
			writeError(w, http.StatusNotFound, "no_such_session")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	resp := transport.ExecuteResponse{
		Stdout:     out.Stdout,
		Stderr:     out.Stderr,
		DurationMs: out.DurationMs,
	}
	if out.ErrorKind != nil {
		kind := string(*out.ErrorKind)
		resp.ErrorKind = &kind
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *SessionServer) handleDestroy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	// Destroying an unknown or already-destroyed id is not an error (spec
	// §6.1 "204 on success or unknown session (idempotent)").
	_ = s.manager.DestroySession(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *SessionServer) handleList(w http.ResponseWriter, r *http.Request) {
	sessions := s.manager.ListSessions()
	entries := make([]transport.SessionListEntry, 0, len(sessions))
	for _, sess := range sessions {
		entries = append(entries, transport.SessionListEntry{
			ID:             sess.ID,
			CreatedAt:      sess.CreatedAt.UTC().Format(rfc3339Milli),
			LastUsedAt:     sess.LastUsedAt.UTC().Format(rfc3339Milli),
			ExecutionCount: sess.ExecutionCount,
			OwnerTag:       sess.OwnerTag,
		})
	}
	writeJSON(w, http.StatusOK, transport.SessionListResponse{Sessions: entries})
}

func (s *SessionServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, transport.HealthResponse{Status: "ok"})
}

func (s *SessionServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "warming_up")
		return
	}
	writeJSON(w, http.StatusOK, transport.HealthResponse{Status: "ok"})
}

const rfc3339Milli = "2006-01-02T15:04:05.000Z07:00"
