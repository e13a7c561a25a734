package ports

import (
	"context"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
)

// SpecDocument is one caller-declared resource: its identity, desired
// spec tree, and lifecycle intents.
type SpecDocument struct {
	Identity     domain.ResourceIdentity
	Desired      domain.SpecTree
	DesiredState domain.PresenceState
	Power        domain.PowerState
}

// SpecSource supplies validated desired specifications. The engine
// treats the source as opaque; policy always comes from the kind
// descriptor, never from the document.
type SpecSource interface {
	Type() string
	ListDocuments(ctx context.Context) ([]SpecDocument, error)
}
