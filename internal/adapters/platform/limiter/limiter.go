// Package limiter rate-limits provider API calls. It is an injected
// value shared by one gateway, not process-global state.
package limiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
)

const (
	defaultRPS = 20
	minRPS     = 1
	maxRPS     = 100
)

type Limiter struct {
	rl     *rate.Limiter
	logger ports.Logger
}

func New(rps int, logger ports.Logger) *Limiter {
	limit := defaultRPS
	if rps >= minRPS && rps <= maxRPS {
		limit = rps
	} else if rps != 0 {
		logger.Warnf(nil, "Invalid provider API RPS %d, using default %d (valid range %d-%d)",
			rps, defaultRPS, minRPS, maxRPS)
	}
	return &Limiter{
		rl:     rate.NewLimiter(rate.Limit(limit), limit),
		logger: logger,
	}
}

// Wait blocks until the limiter admits one call or the context ends.
func (l *Limiter) Wait(ctx context.Context) error {
	err := l.rl.Wait(ctx)
	if err != nil && ctx.Err() == nil {
		l.logger.Warnf(ctx, "Provider API rate limiter wait failed: %v", err)
	}
	return err
}
