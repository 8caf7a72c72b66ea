package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Sandbox execution outcomes and latency
//   - Session lifecycle (active count, lifetime)
//   - Model Client request performance, token usage, and error rates
//   - Recursion depth reached per task
//   - Task Coordinator queue depth and outcomes
//   - Tool dispatch counts by tool name and status
//   - HTTP surface latency
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordSandboxExecution("none", 0.012)
//	defer metrics.RecordModelRequest("anthropic", "claude-haiku", "success", time.Since(start).Seconds())
type Metrics struct {
	// SandboxExecutions counts sandbox executions by resulting error_kind
	// ("none" for a clean run).
	SandboxExecutions *prometheus.CounterVec

	// SandboxExecutionDuration measures sandbox execution latency in seconds.
	SandboxExecutionDuration *prometheus.HistogramVec

	// ActiveSessions is a gauge of currently live sandbox sessions.
	ActiveSessions prometheus.Gauge

	// SessionDuration measures session lifetime in seconds, recorded on destroy.
	SessionDuration prometheus.Histogram

	// ModelRequests counts Model Client calls by provider, model, and status.
	// Labels: provider, model, status (success|rate_limited|transient_network|
	// invalid_request|authentication|content_filtered)
	ModelRequests *prometheus.CounterVec

	// ModelRequestDuration measures Model Client call latency in seconds.
	ModelRequestDuration *prometheus.HistogramVec

	// ModelTokens tracks token consumption by provider, model, and kind
	// (prompt|cached_prompt|completion).
	ModelTokens *prometheus.CounterVec

	// RecursionDepthReached records the maximum depth reached per task.
	RecursionDepthReached prometheus.Histogram

	// CoordinatorQueueDepth is a gauge of tasks waiting for a worker.
	CoordinatorQueueDepth prometheus.Gauge

	// CoordinatorTasks counts completed tasks by outcome (success|error|cancelled).
	CoordinatorTasks *prometheus.CounterVec

	// ToolDispatch counts tool invocations by tool name and status (success|error).
	ToolDispatch *prometheus.CounterVec

	// HTTPRequestDuration measures HTTP API request latency.
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts HTTP requests.
	HTTPRequestCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
func NewMetrics() *Metrics {
	return &Metrics{
		SandboxExecutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rlm_sandbox_executions_total",
				Help: "Total number of sandbox executions by resulting error_kind",
			},
			[]string{"error_kind"},
		),

		SandboxExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rlm_sandbox_execution_duration_seconds",
				Help:    "Duration of sandbox executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"error_kind"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rlm_sessions_active",
				Help: "Current number of live sandbox sessions",
			},
		),

		SessionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rlm_session_duration_seconds",
				Help:    "Session lifetime in seconds, recorded on destroy",
				Buckets: []float64{1, 5, 30, 60, 300, 600, 1800, 3600},
			},
		),

		ModelRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rlm_model_requests_total",
				Help: "Total number of Model Client requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		ModelRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rlm_model_request_duration_seconds",
				Help:    "Duration of Model Client requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"provider", "model"},
		),

		ModelTokens: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rlm_model_tokens_total",
				Help: "Total tokens consumed by provider, model, and kind",
			},
			[]string{"provider", "model", "kind"},
		),

		RecursionDepthReached: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rlm_recursion_depth_reached",
				Help:    "Maximum recursion depth reached per task",
				Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 7, 8},
			},
		),

		CoordinatorQueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rlm_coordinator_queue_depth",
				Help: "Current number of tasks queued ahead of a free worker",
			},
		),

		CoordinatorTasks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rlm_coordinator_tasks_total",
				Help: "Total number of completed tasks by outcome",
			},
			[]string{"outcome"},
		),

		ToolDispatch: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rlm_tool_dispatch_total",
				Help: "Total tool dispatches by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rlm_http_request_duration_seconds",
				Help:    "Duration of HTTP API requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rlm_http_requests_total",
				Help: "Total number of HTTP API requests",
			},
			[]string{"method", "path", "status_code"},
		),
	}
}

// RecordSandboxExecution records one sandbox execution's outcome and latency.
func (m *Metrics) RecordSandboxExecution(errorKind string, durationSeconds float64) {
	m.SandboxExecutions.WithLabelValues(errorKind).Inc()
	m.SandboxExecutionDuration.WithLabelValues(errorKind).Observe(durationSeconds)
}

// SetActiveSessions sets the current live-session gauge.
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordSessionDestroyed records a session's total lifetime on destruction.
func (m *Metrics) RecordSessionDestroyed(lifetimeSeconds float64) {
	m.SessionDuration.Observe(lifetimeSeconds)
}

// RecordModelRequest records one Model Client call.
func (m *Metrics) RecordModelRequest(provider, model, status string, durationSeconds float64) {
	m.ModelRequests.WithLabelValues(provider, model, status).Inc()
	m.ModelRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
}

// RecordModelTokens records token usage from one Model Client call.
func (m *Metrics) RecordModelTokens(provider, model string, prompt, cachedPrompt, completion int64) {
	m.ModelTokens.WithLabelValues(provider, model, "prompt").Add(float64(prompt))
	m.ModelTokens.WithLabelValues(provider, model, "cached_prompt").Add(float64(cachedPrompt))
	m.ModelTokens.WithLabelValues(provider, model, "completion").Add(float64(completion))
}

// RecordRecursionDepthReached records the deepest level a task's recursion tree reached.
func (m *Metrics) RecordRecursionDepthReached(depth int) {
	m.RecursionDepthReached.Observe(float64(depth))
}

// SetCoordinatorQueueDepth sets the coordinator's pending-task gauge.
func (m *Metrics) SetCoordinatorQueueDepth(depth int) {
	m.CoordinatorQueueDepth.Set(float64(depth))
}

// RecordCoordinatorTask records a completed task's outcome.
func (m *Metrics) RecordCoordinatorTask(outcome string) {
	m.CoordinatorTasks.WithLabelValues(outcome).Inc()
}

// RecordToolDispatch records one tool call dispatch outcome.
func (m *Metrics) RecordToolDispatch(toolName, status string) {
	m.ToolDispatch.WithLabelValues(toolName, status).Inc()
}

// RecordHTTPRequest records one HTTP API request.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}
