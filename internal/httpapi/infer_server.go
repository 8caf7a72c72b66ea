package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/haasonsaas/rlmd/internal/coordinator"
	"github.com/haasonsaas/rlmd/internal/observability"
	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

// DefaultInferTimeout bounds an /infer request end to end when the caller
// doesn't configure one explicitly ("504 on end-to-end timeout"
// names the behavior but not a default duration).
const DefaultInferTimeout = 5 * time.Minute

// InferRequest is the wire shape of its POST /infer request.
type InferRequest struct {
	Query    string `json:"query"`
	Context  string `json:"context,omitempty"`
	Model    string `json:"model,omitempty"`
	MaxDepth int    `json:"max_depth,omitempty"`
}

// InferResponse is the wire shape of its POST /infer 200 response.
type InferResponse struct {
	Answer      string               `json:"answer"`
	Usage       rlmtypes.UsageRecord `json:"usage"`
	RecursionID string               `json:"recursion_id"`
}

// InferServer is the server side of POST /infer, submitting each request
// as one coordinator.Task and translating its Result back onto the wire.
type InferServer struct {
	coordinator *coordinator.Coordinator
	timeout     time.Duration
	log         *observability.Logger
	metrics     *observability.Metrics
}

// InferServerOption configures an InferServer at construction time.
type InferServerOption func(*InferServer)

func WithInferLogger(l *observability.Logger) InferServerOption {
	return func(s *InferServer) { s.log = l }
}

func WithInferMetrics(m *observability.Metrics) InferServerOption {
	return func(s *InferServer) { s.metrics = m }
}

// NewInferServer builds an InferServer over c. timeout <= 0 uses
// DefaultInferTimeout.
func NewInferServer(c *coordinator.Coordinator, timeout time.Duration, opts ...InferServerOption) *InferServer {
	if timeout <= 0 {
		timeout = DefaultInferTimeout
	}
	s := &InferServer{coordinator: c, timeout: timeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes registers this server's handler on mux.
func (s *InferServer) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /infer", instrument(s.log, s.metrics, "/infer", s.handleInfer))
}

func (s *InferServer) handleInfer(w http.ResponseWriter, r *http.Request) {
	var req InferRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	task := coordinator.Task{
		Query:            req.Query,
		ContextText:      req.Context,
		ModelOverride:    req.Model,
		MaxDepthOverride: req.MaxDepth,
	}

	future, err := s.coordinator.Submit(ctx, task)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, "timeout")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	res, err := future.Wait(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			future.Cancel()
			writeError(w, http.StatusGatewayTimeout, "timeout")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, InferResponse{
		Answer:      res.Answer,
		Usage:       res.UsageTotal,
		RecursionID: res.RecursionID,
	})
}
