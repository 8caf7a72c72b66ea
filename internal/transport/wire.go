package transport

// Wire types for the Session/Execution HTTP surface. Shared between the
// HTTP client binding (below) and internal/httpapi's server handlers so
// both sides serialize identically.

type CreateSessionRequest struct {
	OwnerTag string `json:"owner_tag,omitempty"`
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

type ExecuteRequest struct {
	Code      string `json:"code"`
	TimeoutMs int64  `json:"timeout_ms,omitempty"`
}

type ExecuteResponse struct {
	Stdout     string  `json:"stdout"`
	Stderr     string  `json:"stderr"`
	DurationMs int64   `json:"duration_ms"`
	ErrorKind  *string `json:"error_kind,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type SessionListEntry struct {
	ID             string `json:"id"`
	CreatedAt      string `json:"created_at"`
	LastUsedAt     string `json:"last_used_at"`
	ExecutionCount int64  `json:"execution_counter"`
	OwnerTag       string `json:"owner_tag,omitempty"`
}

type SessionListResponse struct {
	Sessions []SessionListEntry `json:"sessions"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
