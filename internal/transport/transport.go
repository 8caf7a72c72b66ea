// Package transport implements the Execution Transport: a single
// polymorphic interface in front of the Session Manager, with three
// interchangeable bindings (in-process, loopback HTTP, remote HTTP)
// sharing the same wire semantics.
//
// Modeled on a provider-client shape where an HTTP endpoint is wrapped
// behind a small typed client, generalized to three bindings instead of
// one since a Session Manager, unlike an outbound model provider, can
// also run in the same process as its caller.
package transport

import (
	"context"
	"time"

	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

// Transport is the boundary between a REPL Environment and the Session
// Manager. All three bindings implement identical operation semantics.
type Transport interface {
	CreateSession(ctx context.Context, ownerTag string) (sessionID string, err error)
	Execute(ctx context.Context, sessionID, code string, limits rlmtypes.Limits) (rlmtypes.Outputs, error)
	DestroySession(ctx context.Context, sessionID string) error
	Health(ctx context.Context) error
}

// NetworkBudget is added on top of the caller's execute timeout to build
// the client-side per-operation deadline for the HTTP bindings (
// "Client duties").
const NetworkBudget = 5 * time.Second
