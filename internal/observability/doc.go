// Package observability provides monitoring and debugging capabilities for
// the recursive reasoning engine through metrics, structured logging, and
// distributed tracing.
//
// # Overview
//
// The observability package implements the three pillars of observability:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Distributed request tracing with OpenTelemetry
//
// # Architecture
//
// The package is designed to be:
//   - Low-overhead: Minimal performance impact on production systems
//   - Type-safe: Strongly-typed APIs reduce configuration errors
//   - Production-ready: Built-in security (redaction) and reliability features
//   - Standards-based: Uses Prometheus, OpenTelemetry, and slog
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - Sandbox execution outcomes and latency
//   - Model Client request latency and token usage
//   - Recursion depth reached per task
//   - Task Coordinator queue depth and outcomes
//   - Tool dispatch counts
//   - Session lifecycle (active count, lifetime)
//   - HTTP request/response metrics
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//
//	// Track a sandbox execution
//	metrics.RecordSandboxExecution("none", time.Since(start).Seconds())
//
//	// Track a Model Client call
//	metrics.RecordModelRequest("anthropic", "claude-haiku", "success",
//	    time.Since(start).Seconds())
//	metrics.RecordModelTokens("anthropic", "claude-haiku", promptTokens, cachedTokens, completionTokens)
//
//	// Track a tool dispatch
//	metrics.RecordToolDispatch("code_execution", "success")
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	// Add context IDs for correlation
//	ctx := observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddSessionID(ctx, sessionID)
//
//	// Structured logging with automatic context correlation
//	logger.Info(ctx, "dispatching tool call",
//	    "tool_name", "code_execution",
//	    "recursion_id", recursionID,
//	    "depth", depth,
//	)
//
//	// Error logging with automatic redaction
//	logger.Error(ctx, "model request failed",
//	    "error", err,
//	    "provider", "anthropic",
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to track a reasoning task across
// recursion levels:
//   - One span per Reasoning Loop invocation, tagged with recursion_id,
//     parent_recursion_id, depth, and session_id
//   - Child spans per Model Client call and per sandbox execution
//   - Error correlation across a task's recursion tree
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "rlmd",
//	    ServiceVersion: "1.0.0",
//	    Environment:    "production",
//	    Endpoint:       "localhost:4317", // OTLP collector
//	    SamplingRate:   0.1,
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.StartLevel(ctx, recursionID, depth, sessionID)
//	defer span.End()
//
//	ctx, modelSpan := tracer.TraceModelRequest(ctx, "anthropic", "claude-haiku")
//	defer modelSpan.End()
//
//	ctx, execSpan := tracer.TraceSandboxExecution(ctx, sessionID)
//	defer execSpan.End()
//	if err != nil {
//	    tracer.RecordError(execSpan, err)
//	}
//
// # Context Propagation
//
// All three components integrate with Go's context for automatic correlation:
//
//	ctx = observability.AddRequestID(ctx, "req-123")
//	ctx = observability.AddSessionID(ctx, "sess-456")
//
//	// IDs automatically appear in logs
//	logger.Info(ctx, "executing code") // Includes request_id, session_id, etc.
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Custom patterns via configuration
//
// # Testing
//
// All components provide testable interfaces:
//   - Metrics can be verified using prometheus/testutil
//   - Logging can write to bytes.Buffer for assertions
//   - Tracing works with no-op exporters in tests
//
// # Monitoring Dashboard
//
// The metrics exposed can be used to build dashboards:
//
//	# Sandbox execution latency (95th percentile)
//	histogram_quantile(0.95, rate(rlm_sandbox_execution_duration_seconds_bucket[5m]))
//
//	# Model error rate
//	rate(rlm_model_requests_total{status!="success"}[5m])
//
//	# Active sessions
//	rlm_sessions_active
//
//	# Coordinator backlog
//	rlm_coordinator_queue_depth
package observability
