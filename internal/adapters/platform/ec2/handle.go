package ec2

import (
	"context"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
)

// operationHandle adapts one provider-side long-running job to the
// poller's contract. The poll function makes exactly one status request.
type operationHandle struct {
	identity domain.ResourceIdentity
	action   domain.Action
	poll     func(ctx context.Context) (domain.OperationStatus, domain.SpecTree, error)
}

var _ ports.OperationHandle = (*operationHandle)(nil)

func (h *operationHandle) Identity() domain.ResourceIdentity {
	return h.identity
}

func (h *operationHandle) Action() domain.Action {
	return h.action
}

func (h *operationHandle) Poll(ctx context.Context) (domain.OperationStatus, domain.SpecTree, error) {
	return h.poll(ctx)
}
