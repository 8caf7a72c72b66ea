package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

// HTTP binds to a Session Manager exposed over loopback or a remote
// cluster-internal address (bindings 2 and 3 — identical wire
// semantics, differing only in BaseURL and expected network latency).
//
// A pooled *http.Client with a fixed base URL backs both bindings,
// adapted to the Session/Execution surface instead of a chat-completion API.
type HTTP struct {
	baseURL string
	client  *http.Client
}

// NewHTTP constructs an HTTP transport. execTimeout is the caller's expected
// sandbox wall-timeout; the client's per-call deadline is execTimeout plus
// NetworkBudget, "Client duties".
func NewHTTP(baseURL string, execTimeout time.Duration) *HTTP {
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: execTimeout + NetworkBudget,
			Transport: &http.Transport{
				MaxIdleConns:        64,
				MaxIdleConnsPerHost: 64,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (t *HTTP) CreateSession(ctx context.Context, ownerTag string) (string, error) {
	var resp CreateSessionResponse
	status, err := t.doJSON(ctx, http.MethodPost, "/session", CreateSessionRequest{OwnerTag: ownerTag}, &resp)
	if err != nil {
		return "", rlmtypes.ErrTransportUnavail
	}
	if status == http.StatusServiceUnavailable {
		return "", rlmtypes.ErrCapacityExhausted
	}
	if status != http.StatusOK {
		return "", rlmtypes.ErrTransportUnavail
	}
	return resp.SessionID, nil
}

// Execute never retries: forbids retrying an execute call because
// a transport failure after the server accepted the request may have
// already mutated session state.
func (t *HTTP) Execute(ctx context.Context, sessionID, code string, limits rlmtypes.Limits) (rlmtypes.Outputs, error) {
	var resp ExecuteResponse
	path := fmt.Sprintf("/session/%s/execute", sessionID)
	status, err := t.doJSON(ctx, http.MethodPost, path, ExecuteRequest{Code: code, TimeoutMs: limits.WallTimeoutMs}, &resp)
	if err != nil {
		return rlmtypes.Outputs{}, rlmtypes.ErrTransportUnavail
	}
	if status == http.StatusNotFound {
		return rlmtypes.Outputs{}, rlmtypes.ErrNoSuchSession
	}
	if status != http.StatusOK {
		return rlmtypes.Outputs{}, rlmtypes.ErrTransportUnavail
	}

	var kind *rlmtypes.ErrorKind
	if resp.ErrorKind != nil {
		k := rlmtypes.ErrorKind(*resp.ErrorKind)
		kind = &k
	}
	return rlmtypes.Outputs{
		Stdout:     resp.Stdout,
		Stderr:     resp.Stderr,
		DurationMs: resp.DurationMs,
		ErrorKind:  kind,
	}, nil
}

func (t *HTTP) DestroySession(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, t.baseURL+"/session/"+sessionID, nil)
	if err != nil {
		return rlmtypes.ErrTransportUnavail
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return rlmtypes.ErrTransportUnavail
	}
	defer resp.Body.Close()
	// 204 on success or unknown session id; destruction is idempotent.
	return nil
}

func (t *HTTP) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/health", nil)
	if err != nil {
		return rlmtypes.ErrTransportUnavail
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return rlmtypes.ErrTransportUnavail
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return rlmtypes.ErrTransportUnavail
	}
	return nil
}

func (t *HTTP) doJSON(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, bodyReader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

var _ Transport = (*HTTP)(nil)
