// Package session implements the Session Manager: the table of
// session_id -> Session, its per-session serialization lock, and the
// idle/absolute-TTL reaper.
//
// A single RWMutex guards a map of session handles, each handle owning
// its own execution lock, pairing one sandbox.State per session id in
// the style of telnet2-opencode/go-memsh's api.SessionManager. Unlike a
// store built for branching/hierarchy in a chat product, this Manager
// keeps only the bare operations a sandbox session needs: create,
// execute, destroy, list, and the reaper.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/rlmd/internal/observability"
	"github.com/haasonsaas/rlmd/internal/sandbox"
	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

// Config bounds the Manager's lifecycle policy.
type Config struct {
	MaxSessions    int
	IdleTTL        time.Duration
	AbsoluteTTL    time.Duration
	ReapInterval   time.Duration
	MaxCodeBytes   int64
}

// DefaultConfig returns the baseline lifecycle policy used when a
// deployment leaves the corresponding environment variables unset.
func DefaultConfig() Config {
	return Config{
		MaxSessions:  0, // 0 = unbounded
		IdleTTL:      10 * time.Minute,
		AbsoluteTTL:  time.Hour,
		ReapInterval: 30 * time.Second,
	}
}

type entry struct {
	mu      sync.Mutex // per-session serialization lock ("FIFO on the lock")
	state   *sandbox.State
	session rlmtypes.Session
}

// Manager owns the live session table and the reaper goroutine.
type Manager struct {
	cfg     Config
	runtime *sandbox.Runtime
	log     *observability.Logger
	metrics *observability.Metrics

	mu       sync.RWMutex // guards only the map itself
	sessions map[string]*entry

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New constructs a Manager and starts its background reaper.
func New(cfg Config, log *observability.Logger, metrics *observability.Metrics) *Manager {
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = 30 * time.Second
	}
	m := &Manager{
		cfg:      cfg,
		runtime:  sandbox.New(cfg.MaxCodeBytes),
		log:      log,
		metrics:  metrics,
		sessions: make(map[string]*entry),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go m.reapLoop()
	return m
}

// CreateSession allocates a fresh sandbox state and returns its id.
func (m *Manager) CreateSession(ownerTag string) (string, error) {
	m.mu.Lock()
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return "", rlmtypes.ErrCapacityExhausted
	}
	id := uuid.NewString()
	now := time.Now()
	e := &entry{
		state: sandbox.NewState(),
		session: rlmtypes.Session{
			ID:         id,
			CreatedAt:  now,
			LastUsedAt: now,
			OwnerTag:   ownerTag,
		},
	}
	m.sessions[id] = e
	count := len(m.sessions)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetActiveSessions(count)
	}
	return id, nil
}

// lookup returns the entry for id without holding the table lock while the
// caller acquires the per-session lock: hold the map lock only long enough
// to look up the per-session handle, then drop it.
func (m *Manager) lookup(id string) (*entry, bool) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	return e, ok
}

// Execute runs code against the named session's sandbox state. Executions
// against the same session are strictly serialized by e.mu; executions
// across distinct sessions proceed fully concurrently.
func (m *Manager) Execute(ctx context.Context, id, code string, limits rlmtypes.Limits) (rlmtypes.Outputs, error) {
	e, ok := m.lookup(id)
	if !ok {
		return rlmtypes.Outputs{}, rlmtypes.ErrNoSuchSession
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := m.runtime.Execute(ctx, e.state, code, limits)

	e.session.LastUsedAt = time.Now()
	e.session.ExecutionCount++

	if m.log != nil {
		m.log.Debug(ctx, "sandbox execution completed",
			"session_id", id, "duration_ms", out.DurationMs, "error_kind", errKindString(out.ErrorKind))
	}
	if m.metrics != nil {
		m.metrics.RecordSandboxExecution(errKindString(out.ErrorKind), float64(out.DurationMs)/1000.0)
	}
	return out, nil
}

// DestroySession tears down a session's sandbox state. It is idempotent:
// destroying an unknown or already-destroyed id is not an error.
func (m *Manager) DestroySession(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return nil
	}

	// Wait for any in-flight execution before releasing the state: from
	// the executing state, destruction blocks until the current
	// execution returns.
	e.mu.Lock()
	e.mu.Unlock() //nolint:staticcheck // intentional: block until any in-flight execution releases

	if m.metrics != nil {
		m.metrics.SetActiveSessions(remaining)
	}
	return nil
}

// ListSessions returns an observability-only snapshot of live sessions.
func (m *Manager) ListSessions() []rlmtypes.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]rlmtypes.Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		out = append(out, e.session)
	}
	return out
}

// Close stops the reaper and blocks until it has exited.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.doneCh
}

func (m *Manager) reapLoop() {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.reapOnce()
		}
	}
}

func (m *Manager) reapOnce() {
	now := time.Now()
	var expired []string

	m.mu.RLock()
	for id, e := range m.sessions {
		e.mu.Lock()
		idleExpired := m.cfg.IdleTTL > 0 && now.Sub(e.session.LastUsedAt) > m.cfg.IdleTTL
		absExpired := m.cfg.AbsoluteTTL > 0 && now.Sub(e.session.CreatedAt) > m.cfg.AbsoluteTTL
		e.mu.Unlock()
		if idleExpired || absExpired {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		if m.log != nil {
			m.log.Info(context.Background(), "reaping expired session", "session_id", id)
		}
		_ = m.DestroySession(id)
	}
}

func errKindString(k *rlmtypes.ErrorKind) string {
	if k == nil {
		return "none"
	}
	return string(*k)
}
