package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haasonsaas/rlmd/internal/httpapi"
	"github.com/haasonsaas/rlmd/internal/transport"
)

// client is a thin HTTP binding over rlmd's Session/Execution surface
// and Inference surface.
//
// A bare *http.Client with a fixed base URL and small per-method JSON
// helpers, reusing internal/transport and internal/httpapi's own wire
// types directly (same module) instead of redeclaring them.
type client struct {
	baseURL    string
	httpClient *http.Client
}

func newClient(baseURL string) *client {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) doJSON(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request to %s: %w", c.baseURL+path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (c *client) createSession(ctx context.Context, ownerTag string) (transport.CreateSessionResponse, error) {
	var resp transport.CreateSessionResponse
	status, err := c.doJSON(ctx, http.MethodPost, "/session", transport.CreateSessionRequest{OwnerTag: ownerTag}, &resp)
	if err != nil {
		return resp, err
	}
	if status != http.StatusOK {
		return resp, apiError(status, c)
	}
	return resp, nil
}

func (c *client) execute(ctx context.Context, sessionID, code string, timeoutMs int64) (transport.ExecuteResponse, error) {
	var resp transport.ExecuteResponse
	status, err := c.doJSON(ctx, http.MethodPost, "/session/"+sessionID+"/execute",
		transport.ExecuteRequest{Code: code, TimeoutMs: timeoutMs}, &resp)
	if err != nil {
		return resp, err
	}
	if status != http.StatusOK {
		return resp, apiError(status, c)
	}
	return resp, nil
}

func (c *client) destroySession(ctx context.Context, sessionID string) error {
	status, err := c.doJSON(ctx, http.MethodDelete, "/session/"+sessionID, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return apiError(status, c)
	}
	return nil
}

func (c *client) listSessions(ctx context.Context) (transport.SessionListResponse, error) {
	var resp transport.SessionListResponse
	status, err := c.doJSON(ctx, http.MethodGet, "/sessions", nil, &resp)
	if err != nil {
		return resp, err
	}
	if status != http.StatusOK {
		return resp, apiError(status, c)
	}
	return resp, nil
}

func (c *client) infer(ctx context.Context, req httpapi.InferRequest) (httpapi.InferResponse, error) {
	var resp httpapi.InferResponse
	status, err := c.doJSON(ctx, http.MethodPost, "/infer", req, &resp)
	if err != nil {
		return resp, err
	}
	if status != http.StatusOK {
		return resp, apiError(status, c)
	}
	return resp, nil
}

// apiError reports a non-2xx status without a decoded body, since the
// caller above only decodes into the success type.
func apiError(status int, c *client) error {
	return fmt.Errorf("%s: unexpected status %d", c.baseURL, status)
}
