// Package poll awaits asynchronous provider operations, fanning out all
// waits so N independent operations settle in roughly the time of the
// slowest one.
package poll

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
	"github.com/olusolaa/cloud-reconciler/internal/errors"
	"github.com/olusolaa/cloud-reconciler/pkg/backoff"
)

const (
	DefaultInterval = 3 * time.Second
	DefaultTimeout  = 10 * time.Minute
)

type Poller struct {
	logger ports.Logger
}

func NewPoller(logger ports.Logger) *Poller {
	return &Poller{logger: logger}
}

var _ ports.OperationPoller = (*Poller)(nil)

// AwaitAll polls every handle on its own cadence and returns one outcome
// per handle, in input order. A timed-out or failed handle is reported
// in place without cancelling siblings; the remote operation may keep
// running past a timeout.
func (p *Poller) AwaitAll(ctx context.Context, handles []ports.OperationHandle, opts ports.PollOptions) []domain.OperationOutcome {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	outcomes := make([]domain.OperationOutcome, len(handles))

	var wg sync.WaitGroup
	for i, h := range handles {
		wg.Add(1)
		go func(i int, h ports.OperationHandle) {
			defer wg.Done()
			outcomes[i] = p.await(ctx, h, opts)
		}(i, h)
	}
	wg.Wait()

	return outcomes
}

func (p *Poller) await(ctx context.Context, h ports.OperationHandle, opts ports.PollOptions) domain.OperationOutcome {
	outcome := domain.OperationOutcome{
		Identity: h.Identity(),
		Action:   h.Action(),
	}

	log := p.logger.WithFields(map[string]any{
		"resource": h.Identity().String(),
		"action":   string(h.Action()),
	})

	policy := backoff.Policy{
		Initial:    opts.Interval,
		Max:        8 * opts.Interval,
		Multiplier: 1.5,
		MaxElapsed: opts.Timeout,
	}

	start := time.Now()
	err := policy.Retry(ctx, func(ctx context.Context) (bool, error) {
		status, state, pollErr := h.Poll(ctx)
		if pollErr != nil {
			return false, errors.Wrap(pollErr, errors.CodeProviderRequestError,
				fmt.Sprintf("polling %s operation on %s", h.Action(), h.Identity()))
		}
		log.Debugf(ctx, "Operation status: %s", status)

		switch status {
		case domain.OperationSucceeded:
			outcome.State = state
			return true, nil
		case domain.OperationFailed:
			return false, errors.Newf(errors.CodeProvisioningFailed,
				"%s on %s reached terminal state '%s'", h.Action(), h.Identity(), status)
		default:
			return false, nil
		}
	})

	var budgetErr *backoff.ErrBudgetExceeded
	switch {
	case err == nil:
		log.Debugf(ctx, "Operation settled after %s", time.Since(start).Round(time.Millisecond))
	case stderrors.As(err, &budgetErr):
		outcome.Err = errors.Newf(errors.CodeOperationTimeout,
			"%s on %s did not reach a terminal state within %s", h.Action(), h.Identity(), opts.Timeout)
		log.Warnf(ctx, "Operation timed out after %d polls; remote operation may still be running", budgetErr.Attempts)
	default:
		outcome.Err = err
		log.Errorf(ctx, err, "Operation failed")
	}

	return outcome
}
