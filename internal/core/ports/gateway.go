package ports

import (
	"context"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
)

// OperationHandle references a provider-side asynchronous job started by
// an Action. Handles must not outlive the invocation that created them.
type OperationHandle interface {
	Identity() domain.ResourceIdentity
	Action() domain.Action
	// Poll makes one status request. When the returned status is
	// terminal-successful the returned tree is the operation result, if
	// the provider exposes one.
	Poll(ctx context.Context) (domain.OperationStatus, domain.SpecTree, error)
}

// ProviderGateway is the typed client surface bound to one provider
// service and API version. Implementations are read-only after
// construction and safe to share across concurrently polled handles.
//
// Mutating calls return a nil handle when the provider applied the
// change synchronously.
type ProviderGateway interface {
	Type() string

	// Get fetches the current actual state. An absent resource is the
	// normal (nil, false, nil) outcome, not an error.
	Get(ctx context.Context, id domain.ResourceIdentity) (domain.SpecTree, bool, error)

	Create(ctx context.Context, id domain.ResourceIdentity, spec domain.SpecTree) (OperationHandle, error)
	Update(ctx context.Context, id domain.ResourceIdentity, spec domain.SpecTree, diff *domain.DiffResult) ([]OperationHandle, error)
	Delete(ctx context.Context, id domain.ResourceIdentity) (OperationHandle, error)

	Attach(ctx context.Context, id, target domain.ResourceIdentity, attrs domain.SpecTree) (OperationHandle, error)
	Detach(ctx context.Context, id, target domain.ResourceIdentity) (OperationHandle, error)

	SetPowerState(ctx context.Context, id domain.ResourceIdentity, desired domain.PowerState) (OperationHandle, error)
}
