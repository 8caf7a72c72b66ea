package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rlmd.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"MODEL_API_KEY", "MODEL_BASE_URL", "MODEL_ROOT", "MODEL_SUB_LIST",
		"MAX_DEPTH", "MAX_ITERATIONS", "EXECUTION_TIMEOUT_MS", "EXECUTE_TRANSPORT",
		"EXECUTE_SERVICE_URL", "CONCURRENCY", "WORKER_POOL_SIZE",
		"SESSION_IDLE_TTL_MS", "SESSION_ABSOLUTE_TTL_MS", "MAX_SESSIONS",
	}
	for _, v := range vars {
		t.Setenv(v, "")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODEL_API_KEY", "secret")
	t.Setenv("MODEL_ROOT", "claude-sonnet")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxDepth != 1 {
		t.Errorf("MaxDepth = %d, want 1", cfg.MaxDepth)
	}
	if cfg.MaxIterations != 20 {
		t.Errorf("MaxIterations = %d, want 20", cfg.MaxIterations)
	}
	if cfg.ExecutionTimeoutMs != 30_000 {
		t.Errorf("ExecutionTimeoutMs = %d, want 30000", cfg.ExecutionTimeoutMs)
	}
	if cfg.ExecuteTransport != TransportInProcess {
		t.Errorf("ExecuteTransport = %q, want inprocess", cfg.ExecuteTransport)
	}
	if cfg.Concurrency != 5 {
		t.Errorf("Concurrency = %d, want 5", cfg.Concurrency)
	}
	if cfg.WorkerPoolSize != 3 {
		t.Errorf("WorkerPoolSize = %d, want 3", cfg.WorkerPoolSize)
	}
	if cfg.SessionIdleTTLMs != 600_000 {
		t.Errorf("SessionIdleTTLMs = %d, want 600000", cfg.SessionIdleTTLMs)
	}
	if cfg.SessionAbsoluteTTLMs != 3_600_000 {
		t.Errorf("SessionAbsoluteTTLMs = %d, want 3600000", cfg.SessionAbsoluteTTLMs)
	}
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	clearEnv(t)

	_, err := Load("")
	if err == nil {
		t.Fatal("expected validation error for missing MODEL_API_KEY/MODEL_ROOT")
	}
	if !strings.Contains(err.Error(), "MODEL_API_KEY") {
		t.Errorf("expected MODEL_API_KEY error, got %v", err)
	}
	if !strings.Contains(err.Error(), "MODEL_ROOT") {
		t.Errorf("expected MODEL_ROOT error, got %v", err)
	}
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
model_api_key: from-file
model_root: from-file-model
max_depth: 2
`)
	t.Setenv("MODEL_API_KEY", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ModelAPIKey != "from-env" {
		t.Errorf("ModelAPIKey = %q, want from-env (env must win over file)", cfg.ModelAPIKey)
	}
	if cfg.ModelRoot != "from-file-model" {
		t.Errorf("ModelRoot = %q, want from-file-model (file layer should still apply where env is silent)", cfg.ModelRoot)
	}
	if cfg.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want 2 from file", cfg.MaxDepth)
	}
}

func TestLoadParsesModelSubListFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODEL_API_KEY", "secret")
	t.Setenv("MODEL_ROOT", "root-model")
	t.Setenv("MODEL_SUB_LIST", "sub-a, sub-b ,sub-c")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"sub-a", "sub-b", "sub-c"}
	if len(cfg.ModelSubList) != len(want) {
		t.Fatalf("ModelSubList = %v, want %v", cfg.ModelSubList, want)
	}
	for i := range want {
		if cfg.ModelSubList[i] != want[i] {
			t.Errorf("ModelSubList[%d] = %q, want %q", i, cfg.ModelSubList[i], want[i])
		}
	}
}

func TestLoadRejectsUnknownFileFields(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
model_api_key: secret
model_root: root-model
bogus_field: true
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field in config file")
	}
}

func TestLoadValidatesExecuteTransport(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODEL_API_KEY", "secret")
	t.Setenv("MODEL_ROOT", "root-model")
	t.Setenv("EXECUTE_TRANSPORT", "carrier-pigeon")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected validation error for unknown transport")
	}
	if !strings.Contains(err.Error(), "EXECUTE_TRANSPORT") {
		t.Errorf("expected EXECUTE_TRANSPORT error, got %v", err)
	}
}

func TestLoadRequiresServiceURLForRemoteTransport(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODEL_API_KEY", "secret")
	t.Setenv("MODEL_ROOT", "root-model")
	t.Setenv("EXECUTE_TRANSPORT", "remote")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected validation error for missing EXECUTE_SERVICE_URL")
	}
	if !strings.Contains(err.Error(), "EXECUTE_SERVICE_URL") {
		t.Errorf("expected EXECUTE_SERVICE_URL error, got %v", err)
	}

	t.Setenv("EXECUTE_SERVICE_URL", "http://127.0.0.1:9000")
	if _, err := Load(""); err != nil {
		t.Fatalf("Load() with service URL set, error = %v", err)
	}
}

func TestNewAppliesOptionsOverDefaults(t *testing.T) {
	cfg := New(
		WithModelAPIKey("k"),
		WithModelRoot("root-model"),
		WithMaxDepth(4),
		WithConcurrency(10),
	)
	if cfg.ModelAPIKey != "k" {
		t.Errorf("ModelAPIKey = %q, want k", cfg.ModelAPIKey)
	}
	if cfg.MaxDepth != 4 {
		t.Errorf("MaxDepth = %d, want 4", cfg.MaxDepth)
	}
	if cfg.Concurrency != 10 {
		t.Errorf("Concurrency = %d, want 10", cfg.Concurrency)
	}
	// New never validates — it's for programmatic construction, e.g. in
	// tests that don't want to supply every required field.
	if cfg.WorkerPoolSize != 3 {
		t.Errorf("WorkerPoolSize = %d, want default 3", cfg.WorkerPoolSize)
	}
}
