package modelclient

import "testing"

func TestClassifyStatusCode(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{401, "authentication"},
		{403, "authentication"},
		{400, "invalid_request"},
		{404, "invalid_request"},
		{429, "rate_limited"},
		{500, "transient_network"},
		{503, "transient_network"},
		{200, "transient_network"},
	}
	for _, tt := range tests {
		if got := ClassifyStatusCode(tt.status); got != tt.want {
			t.Errorf("ClassifyStatusCode(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		msg     string
		want    string
		matched bool
	}{
		{"request blocked by content policy", "content_filtered", true},
		{"context deadline exceeded", "transient_network", true},
		{"connection refused", "transient_network", true},
		{"totally unrelated message", "", false},
	}
	for _, tt := range tests {
		got, ok := ClassifyMessage(tt.msg)
		if ok != tt.matched || got != tt.want {
			t.Errorf("ClassifyMessage(%q) = (%q, %v), want (%q, %v)", tt.msg, got, ok, tt.want, tt.matched)
		}
	}
}
