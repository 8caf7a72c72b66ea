package transport

import (
	"context"

	"github.com/haasonsaas/rlmd/internal/session"
	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

// InProcess binds directly to a session.Manager living in the same process.
// Zero serialization; failures surface as the Manager's native error values
// rather than being wrapped into transport_unavailable (binding 1).
type InProcess struct {
	manager *session.Manager
}

// NewInProcess wraps an existing session.Manager as a Transport.
func NewInProcess(manager *session.Manager) *InProcess {
	return &InProcess{manager: manager}
}

func (t *InProcess) CreateSession(ctx context.Context, ownerTag string) (string, error) {
	return t.manager.CreateSession(ownerTag)
}

func (t *InProcess) Execute(ctx context.Context, sessionID, code string, limits rlmtypes.Limits) (rlmtypes.Outputs, error) {
	return t.manager.Execute(ctx, sessionID, code, limits)
}

func (t *InProcess) DestroySession(ctx context.Context, sessionID string) error {
	return t.manager.DestroySession(sessionID)
}

func (t *InProcess) Health(ctx context.Context) error {
	return nil
}

var _ Transport = (*InProcess)(nil)
