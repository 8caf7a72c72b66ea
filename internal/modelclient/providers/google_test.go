package providers

import (
	"context"
	"testing"
)

func TestNewGoogleProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      GoogleConfig
		expectError bool
	}{
		{
			name:        "valid config",
			config:      GoogleConfig{APIKey: "test-key", DefaultModel: "gemini-1.5-pro"},
			expectError: false,
		},
		{
			name:        "missing API key",
			config:      GoogleConfig{},
			expectError: true,
		},
		{
			name:        "defaults applied",
			config:      GoogleConfig{APIKey: "test-key"},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewGoogleProvider(context.Background(), tt.config)
			if tt.expectError {
				if err == nil {
					t.Error("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != "google" {
				t.Errorf("Name() = %q, want google", p.Name())
			}
			if p.defaultModel == "" {
				t.Error("expected default model to be set")
			}
		})
	}
}
