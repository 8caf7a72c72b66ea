package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/haasonsaas/rlmd/internal/config"
	"github.com/haasonsaas/rlmd/internal/coordinator"
	"github.com/haasonsaas/rlmd/internal/httpapi"
	"github.com/haasonsaas/rlmd/internal/modelclient"
	"github.com/haasonsaas/rlmd/internal/modelclient/providers"
	"github.com/haasonsaas/rlmd/internal/observability"
	"github.com/haasonsaas/rlmd/internal/recursion"
	"github.com/haasonsaas/rlmd/internal/session"
	"github.com/haasonsaas/rlmd/internal/transport"
	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

// runServe implements the serve command: loads configuration, builds the
// Sandbox Runtime / Session Manager / Task Coordinator, and serves the
// HTTP surfaces until an interrupt signal or a fatal server error.
//
// Config load, component construction, signal.NotifyContext for
// shutdown, and a bounded-timeout graceful Stop make up its lifecycle.
//
// A task failing with an authentication ModelError terminates the process
// outright (os.Exit) rather than just failing that task: bad credentials
// affect every future task too, and a supervisor restart is the only way
// back to a healthy state.
func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
	metrics := observability.NewMetrics()

	log.Info(context.Background(), "starting rlmd",
		"version", version, "commit", commit,
		"execute_transport", string(cfg.ExecuteTransport),
		"max_depth", cfg.MaxDepth, "concurrency", cfg.Concurrency, "worker_pool_size", cfg.WorkerPoolSize)

	sessionMgr, sessionSrv, tr, err := buildExecutionPlane(cfg, log, metrics)
	if err != nil {
		return fmt.Errorf("failed to build execution plane: %w", err)
	}
	if sessionMgr != nil {
		defer sessionMgr.Close()
	}
	if sessionSrv != nil {
		sessionSrv.SetReady(true)
	}

	resolve := buildClientResolver(ctx, cfg)
	controller := recursion.New(tr, resolve, recursion.Config{
		RootModel:        cfg.ModelRoot,
		SubModels:        cfg.ModelSubList,
		MaxDepth:         cfg.MaxDepth,
		HardIterationCap: cfg.MaxIterations,
		Limits: rlmtypes.Limits{
			WallTimeoutMs: cfg.ExecutionTimeoutMs,
		},
	}, recursion.WithMetrics(metrics))

	coord := coordinator.New(controller,
		coordinator.WithWorkerPoolSize(cfg.WorkerPoolSize),
		coordinator.WithConcurrency(cfg.Concurrency),
		coordinator.WithMetrics(metrics),
		coordinator.WithOnFatalModelError(func(me *rlmtypes.ModelError) {
			log.Error(context.Background(), "authentication failure, terminating process",
				"provider", me.Provider, "model", me.Model, "error", me.Error())
			os.Exit(1)
		}))
	defer coord.Close()

	inferSrv := httpapi.NewInferServer(coord, httpapi.DefaultInferTimeout,
		httpapi.WithInferLogger(log), httpapi.WithInferMetrics(metrics))

	server, err := httpapi.NewServer(":8080", sessionSrv, inferSrv, httpapi.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to bind HTTP listener: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve() }()

	select {
	case <-ctx.Done():
	case serveErr := <-errCh:
		if serveErr != nil {
			return serveErr
		}
	}

	log.Info(context.Background(), "shutdown signal received, draining")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}

	log.Info(context.Background(), "rlmd stopped gracefully")
	return nil
}

// buildExecutionPlane wires the Sandbox Runtime / Session Manager / Session
// HTTP surface and the Execution Transport the Recursion Controller uses,
// per cfg.ExecuteTransport (its three interchangeable bindings).
//
// inprocess and loopback both run their own Session Manager in this
// process (loopback additionally forces traffic through the HTTP binding,
// useful for exercising the wire format without a second process); remote
// assumes the Session Manager lives in a separately deployed process
// reachable at EXECUTE_SERVICE_URL, so this process mounts no Session
// HTTP surface of its own.
func buildExecutionPlane(cfg *config.Config, log *observability.Logger, metrics *observability.Metrics) (*session.Manager, *httpapi.SessionServer, transport.Transport, error) {
	limits := rlmtypes.Limits{WallTimeoutMs: cfg.ExecutionTimeoutMs}

	switch cfg.ExecuteTransport {
	case config.TransportRemote:
		if cfg.ExecuteServiceURL == "" {
			return nil, nil, nil, fmt.Errorf("EXECUTE_SERVICE_URL is required for the remote transport")
		}
		return nil, nil, transport.NewHTTP(cfg.ExecuteServiceURL, time.Duration(cfg.ExecutionTimeoutMs)*time.Millisecond), nil

	case config.TransportLoopback:
		if cfg.ExecuteServiceURL == "" {
			return nil, nil, nil, fmt.Errorf("EXECUTE_SERVICE_URL is required for the loopback transport")
		}
		mgr := session.New(sessionManagerConfig(cfg), log, metrics)
		srv := httpapi.NewSessionServer(mgr, limits, httpapi.WithSessionLogger(log), httpapi.WithSessionMetrics(metrics))
		return mgr, srv, transport.NewHTTP(cfg.ExecuteServiceURL, time.Duration(cfg.ExecutionTimeoutMs)*time.Millisecond), nil

	default: // config.TransportInProcess
		mgr := session.New(sessionManagerConfig(cfg), log, metrics)
		srv := httpapi.NewSessionServer(mgr, limits, httpapi.WithSessionLogger(log), httpapi.WithSessionMetrics(metrics))
		return mgr, srv, transport.NewInProcess(mgr), nil
	}
}

func sessionManagerConfig(cfg *config.Config) session.Config {
	return session.Config{
		MaxSessions: cfg.MaxSessions,
		IdleTTL:     time.Duration(cfg.SessionIdleTTLMs) * time.Millisecond,
		AbsoluteTTL: time.Duration(cfg.SessionAbsoluteTTLMs) * time.Millisecond,
	}
}

// buildClientResolver returns a recursion.ClientResolver sharing one
// MODEL_API_KEY/MODEL_BASE_URL pair across every model id named by
// MODEL_ROOT/MODEL_SUB_LIST, dispatching to Anthropic for "claude"-prefixed
// model ids, Google for "gemini"-prefixed model ids, and OpenAI otherwise.
// A single credential pair covers the whole process, so provider choice is
// inferred from the model id rather than configured separately per provider.
func buildClientResolver(ctx context.Context, cfg *config.Config) recursion.ClientResolver {
	clients := make(map[string]*modelclient.Client)
	return func(modelID string) (*modelclient.Client, error) {
		if c, ok := clients[modelID]; ok {
			return c, nil
		}

		var provider modelclient.Provider
		var err error
		switch {
		case strings.HasPrefix(modelID, "claude"):
			provider, err = providers.NewAnthropicProvider(providers.AnthropicConfig{
				APIKey:       cfg.ModelAPIKey,
				BaseURL:      cfg.ModelBaseURL,
				DefaultModel: modelID,
			})
		case strings.HasPrefix(modelID, "gemini"):
			provider, err = providers.NewGoogleProvider(ctx, providers.GoogleConfig{
				APIKey:       cfg.ModelAPIKey,
				DefaultModel: modelID,
			})
		default:
			provider, err = providers.NewOpenAIProvider(providers.OpenAIConfig{
				APIKey:       cfg.ModelAPIKey,
				BaseURL:      cfg.ModelBaseURL,
				DefaultModel: modelID,
			})
		}
		if err != nil {
			return nil, fmt.Errorf("building provider for model %q: %w", modelID, err)
		}

		c := modelclient.New(provider)
		clients[modelID] = c
		return c, nil
	}
}
