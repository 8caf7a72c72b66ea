// Package config loads the process configuration: an
// environment-variable-first layer with an optional YAML file beneath it
// for anything the environment doesn't set.
//
// The load order is read file -> expand env vars -> decode YAML ->
// applyEnvOverrides -> applyDefaults -> validateConfig, suited to a
// headless service binary. The surface here is small — fourteen named
// variables — so it stays a single file rather than a per-concern split.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ExecuteTransport names one of the three Execution Transport bindings.
type ExecuteTransport string

const (
	TransportInProcess ExecuteTransport = "inprocess"
	TransportLoopback  ExecuteTransport = "loopback"
	TransportRemote    ExecuteTransport = "remote"
)

// Config is the process configuration, one field variable
// plus the file-only layering metadata needed to load it.
type Config struct {
	ModelAPIKey  string   `yaml:"model_api_key"`
	ModelBaseURL string   `yaml:"model_base_url"`
	ModelRoot    string   `yaml:"model_root"`
	ModelSubList []string `yaml:"model_sub_list"`

	MaxDepth      int `yaml:"max_depth"`
	MaxIterations int `yaml:"max_iterations"`

	ExecutionTimeoutMs int64            `yaml:"execution_timeout_ms"`
	ExecuteTransport   ExecuteTransport `yaml:"execute_transport"`
	ExecuteServiceURL  string           `yaml:"execute_service_url"`

	Concurrency    int64 `yaml:"concurrency"`
	WorkerPoolSize int   `yaml:"worker_pool_size"`

	SessionIdleTTLMs     int64 `yaml:"session_idle_ttl_ms"`
	SessionAbsoluteTTLMs int64 `yaml:"session_absolute_ttl_ms"`
	MaxSessions          int   `yaml:"max_sessions"`
}

// Option mutates a Config at construction time, for programmatic callers
// (tests, cmd/rlmctl) that don't go through Load.
type Option func(*Config)

func WithModelAPIKey(v string) Option      { return func(c *Config) { c.ModelAPIKey = v } }
func WithModelBaseURL(v string) Option     { return func(c *Config) { c.ModelBaseURL = v } }
func WithModelRoot(v string) Option        { return func(c *Config) { c.ModelRoot = v } }
func WithModelSubList(v []string) Option   { return func(c *Config) { c.ModelSubList = v } }
func WithMaxDepth(v int) Option            { return func(c *Config) { c.MaxDepth = v } }
func WithMaxIterations(v int) Option       { return func(c *Config) { c.MaxIterations = v } }
func WithExecuteTransport(v ExecuteTransport) Option {
	return func(c *Config) { c.ExecuteTransport = v }
}
func WithExecuteServiceURL(v string) Option { return func(c *Config) { c.ExecuteServiceURL = v } }
func WithConcurrency(v int64) Option        { return func(c *Config) { c.Concurrency = v } }
func WithWorkerPoolSize(v int) Option       { return func(c *Config) { c.WorkerPoolSize = v } }

// New returns a Config with defaults applied, then opts applied on top.
// Unlike Load, New never touches the environment or a file — it is the
// entry point for programmatic construction.
func New(opts ...Option) *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Load reads an optional YAML file at path (skipped entirely if path is
// empty or the file does not exist), then overlays environment variables
// on top — env always wins over the file — then applies defaults for
// anything still unset, then validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else {
			expanded := os.ExpandEnv(string(data))
			decoder := yaml.NewDecoder(strings.NewReader(expanded))
			decoder.KnownFields(true)
			if err := decoder.Decode(cfg); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("MODEL_API_KEY")); v != "" {
		cfg.ModelAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("MODEL_BASE_URL")); v != "" {
		cfg.ModelBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MODEL_ROOT")); v != "" {
		cfg.ModelRoot = v
	}
	if v := strings.TrimSpace(os.Getenv("MODEL_SUB_LIST")); v != "" {
		cfg.ModelSubList = splitAndTrim(v)
	}
	if v := strings.TrimSpace(os.Getenv("MAX_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAX_ITERATIONS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxIterations = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("EXECUTION_TIMEOUT_MS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ExecutionTimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("EXECUTE_TRANSPORT")); v != "" {
		cfg.ExecuteTransport = ExecuteTransport(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv("EXECUTE_SERVICE_URL")); v != "" {
		cfg.ExecuteServiceURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CONCURRENCY")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Concurrency = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WORKER_POOL_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkerPoolSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_IDLE_TTL_MS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.SessionIdleTTLMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_ABSOLUTE_TTL_MS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.SessionAbsoluteTTLMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAX_SESSIONS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxSessions = n
		}
	}
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyDefaults fills in every field spec.md gives a stated default for
// (§4.2, §4.6, §4.8, §5) and nothing else — ModelAPIKey/ModelRoot/
// ModelBaseURL have no sensible default and are left for validate to catch.
func applyDefaults(cfg *Config) {
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = 1
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 20
	}
	if cfg.ExecutionTimeoutMs == 0 {
		cfg.ExecutionTimeoutMs = 30_000
	}
	if cfg.ExecuteTransport == "" {
		cfg.ExecuteTransport = TransportInProcess
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 5
	}
	if cfg.WorkerPoolSize == 0 {
		cfg.WorkerPoolSize = 3
	}
	if cfg.SessionIdleTTLMs == 0 {
		cfg.SessionIdleTTLMs = int64(10 * time.Minute / time.Millisecond)
	}
	if cfg.SessionAbsoluteTTLMs == 0 {
		cfg.SessionAbsoluteTTLMs = int64(time.Hour / time.Millisecond)
	}
}

// ValidationError reports every problem found with a Config at once.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validate(cfg *Config) error {
	var issues []string

	if strings.TrimSpace(cfg.ModelAPIKey) == "" {
		issues = append(issues, "MODEL_API_KEY is required")
	}
	if strings.TrimSpace(cfg.ModelRoot) == "" {
		issues = append(issues, "MODEL_ROOT is required")
	}
	if cfg.MaxDepth < 1 {
		issues = append(issues, "MAX_DEPTH must be >= 1")
	}
	if cfg.MaxIterations < 1 {
		issues = append(issues, "MAX_ITERATIONS must be >= 1")
	}
	if cfg.ExecutionTimeoutMs <= 0 {
		issues = append(issues, "EXECUTION_TIMEOUT_MS must be > 0")
	}
	switch cfg.ExecuteTransport {
	case TransportInProcess:
	case TransportLoopback, TransportRemote:
		if strings.TrimSpace(cfg.ExecuteServiceURL) == "" {
			issues = append(issues, fmt.Sprintf("EXECUTE_SERVICE_URL is required when EXECUTE_TRANSPORT=%s", cfg.ExecuteTransport))
		}
	default:
		issues = append(issues, fmt.Sprintf("EXECUTE_TRANSPORT must be one of inprocess, loopback, remote (got %q)", cfg.ExecuteTransport))
	}
	if cfg.Concurrency < 1 {
		issues = append(issues, "CONCURRENCY must be >= 1")
	}
	if cfg.WorkerPoolSize < 1 {
		issues = append(issues, "WORKER_POOL_SIZE must be >= 1")
	}
	if cfg.SessionIdleTTLMs <= 0 {
		issues = append(issues, "SESSION_IDLE_TTL_MS must be > 0")
	}
	if cfg.SessionAbsoluteTTLMs <= 0 {
		issues = append(issues, "SESSION_ABSOLUTE_TTL_MS must be > 0")
	}
	if cfg.MaxSessions < 0 {
		issues = append(issues, "MAX_SESSIONS must be >= 0 (0 means unbounded)")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
