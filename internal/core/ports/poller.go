package ports

import (
	"context"
	"time"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
)

// PollOptions bound one handle's wait. Zero values select defaults.
type PollOptions struct {
	Interval time.Duration // base poll cadence
	Timeout  time.Duration // per-handle budget
}

// OperationPoller awaits asynchronous provider operations. Issuance is
// fully fanned out before any blocking wait; one outcome is returned
// per handle and a failed or timed-out handle never aborts siblings.
type OperationPoller interface {
	AwaitAll(ctx context.Context, handles []OperationHandle, opts PollOptions) []domain.OperationOutcome
}
