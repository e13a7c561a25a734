package ports

import (
	"context"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
)

// ReconcileRequest is one desired-state pass for a single resource.
type ReconcileRequest struct {
	Identity     domain.ResourceIdentity
	Desired      domain.SpecTree
	DesiredState domain.PresenceState
	Power        domain.PowerState
	CheckMode    bool
}

// Reconciler performs a single fetch-diff-plan-execute pass per call.
type Reconciler interface {
	Reconcile(ctx context.Context, req ReconcileRequest) (*domain.ReconciliationResult, error)
}
