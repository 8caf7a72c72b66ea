package providers

import "testing"

func TestNewAnthropicProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      AnthropicConfig
		expectError bool
	}{
		{
			name:        "valid config",
			config:      AnthropicConfig{APIKey: "test-key", DefaultModel: "claude-sonnet-4-20250514"},
			expectError: false,
		},
		{
			name:        "missing API key",
			config:      AnthropicConfig{},
			expectError: true,
		},
		{
			name:        "defaults applied",
			config:      AnthropicConfig{APIKey: "test-key"},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewAnthropicProvider(tt.config)
			if tt.expectError {
				if err == nil {
					t.Error("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != "anthropic" {
				t.Errorf("Name() = %q, want anthropic", p.Name())
			}
			if p.defaultModel == "" {
				t.Error("expected default model to be set")
			}
			if p.maxTokens <= 0 {
				t.Error("expected default max tokens to be set")
			}
		})
	}
}
