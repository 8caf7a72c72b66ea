// Package httpapi exposes the Session/Execution surface and the
// Inference surface on plain net/http, plus /health, /ready, and a
// Prometheus /metrics endpoint.
//
// A bare http.NewServeMux, promhttp.Handler() mounted at /metrics, and
// graceful Shutdown with a bounded context back two focused servers —
// SessionServer and InferServer — that Server composes, since the two
// surfaces are independent enough that cmd/rlmd may wish to expose them
// on separate listeners in the future.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/haasonsaas/rlmd/internal/observability"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSONBody decodes r's JSON body into v, treating an empty body as a
// no-op so callers like POST /session can omit the body entirely or send
// `{}` interchangeably ("Request {} or {owner_tag?: text}").
func decodeJSONBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// instrument wraps a handler with request logging and metrics: a Logger
// and Metrics pair track each request the way the server lifecycle logs
// "http server error"/"starting http server" around its own events.
func instrument(log *observability.Logger, metrics *observability.Metrics, route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		elapsed := time.Since(start).Seconds()
		if log != nil {
			log.Debug(r.Context(), "http request", "method", r.Method, "route", route, "status", rec.status, "duration_ms", time.Since(start).Milliseconds())
		}
		if metrics != nil {
			metrics.RecordHTTPRequest(r.Method, route, statusClass(rec.status), elapsed)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
