package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/rlmd/internal/observability"
)

// Server composes a SessionServer and an InferServer onto one mux: a
// plain http.NewServeMux, promhttp mounted at /metrics, a bounded
// ReadHeaderTimeout, and a background net.Listener so the caller can
// observe the bound address immediately.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	log        *observability.Logger
}

// Option configures Server construction.
type Option func(*serverConfig)

type serverConfig struct {
	log               *observability.Logger
	readHeaderTimeout time.Duration
}

func WithLogger(l *observability.Logger) Option {
	return func(c *serverConfig) { c.log = l }
}

func WithReadHeaderTimeout(d time.Duration) Option {
	return func(c *serverConfig) { c.readHeaderTimeout = d }
}

// NewServer builds the mux for sessionSrv and inferSrv (either may be nil
// to omit that surface, e.g. a deployment that only runs the Inference
// surface behind a separate Execution Transport process) plus /metrics.
func NewServer(addr string, sessionSrv *SessionServer, inferSrv *InferServer, opts ...Option) (*Server, error) {
	cfg := &serverConfig{readHeaderTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if sessionSrv != nil {
		sessionSrv.Routes(mux)
	}
	if inferSrv != nil {
		inferSrv.Routes(mux)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("httpapi: listen on %s: %w", addr, err)
	}

	return &Server{
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: cfg.readHeaderTimeout,
		},
		listener: listener,
		log:      cfg.log,
	}, nil
}

// Addr returns the bound listener address, useful when addr was ":0".
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Serve blocks until the server stops, returning nil on a graceful
// Shutdown and any other listen error otherwise.
func (s *Server) Serve() error {
	if s.log != nil {
		s.log.Info(context.Background(), "starting http server", "addr", s.listener.Addr().String())
	}
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.log != nil {
			s.log.Warn(ctx, "http server shutdown error", "error", err)
		}
		return err
	}
	return nil
}
