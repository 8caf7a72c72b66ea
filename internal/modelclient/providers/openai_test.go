package providers

import "testing"

func TestNewOpenAIProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      OpenAIConfig
		expectError bool
	}{
		{
			name:        "valid config",
			config:      OpenAIConfig{APIKey: "test-key", DefaultModel: "gpt-4o"},
			expectError: false,
		},
		{
			name:        "missing API key",
			config:      OpenAIConfig{},
			expectError: true,
		},
		{
			name:        "defaults applied",
			config:      OpenAIConfig{APIKey: "test-key"},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewOpenAIProvider(tt.config)
			if tt.expectError {
				if err == nil {
					t.Error("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != "openai" {
				t.Errorf("Name() = %q, want openai", p.Name())
			}
			if p.defaultModel == "" {
				t.Error("expected default model to be set")
			}
		})
	}
}
