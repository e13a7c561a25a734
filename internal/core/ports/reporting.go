package ports

import (
	"context"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
)

type Reporter interface {
	Report(ctx context.Context, results []*domain.ReconciliationResult) error
}
