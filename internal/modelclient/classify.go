package modelclient

import "strings"

// ClassifyStatusCode maps an HTTP status code from a provider response to
// the ModelError kind taxonomy.
func ClassifyStatusCode(status int) string {
	switch {
	case status == 401 || status == 403:
		return "authentication"
	case status == 400 || status == 404 || status == 422:
		return "invalid_request"
	case status == 402:
		return "invalid_request"
	case status == 429:
		return "rate_limited"
	case status >= 500:
		return "transient_network"
	default:
		return "transient_network"
	}
}

// ClassifyMessage inspects a provider error message for content-filter or
// safety-block phrasing that HTTP status codes don't distinguish.
func ClassifyMessage(msg string) (string, bool) {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "content_filter"),
		strings.Contains(lower, "content policy"),
		strings.Contains(lower, "safety"),
		strings.Contains(lower, "blocked"):
		return "content_filtered", true
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline exceeded"):
		return "transient_network", true
	case strings.Contains(lower, "connection reset"), strings.Contains(lower, "connection refused"), strings.Contains(lower, "no such host"):
		return "transient_network", true
	case strings.Contains(lower, "unauthenticated"), strings.Contains(lower, "permission denied"):
		return "authentication", true
	case strings.Contains(lower, "resource exhausted"), strings.Contains(lower, "quota"), strings.Contains(lower, "too many requests"):
		return "rate_limited", true
	default:
		return "", false
	}
}
