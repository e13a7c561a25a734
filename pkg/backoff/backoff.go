// Package backoff provides a bounded exponential backoff shared by the
// operation poller and delete-settlement waits, replacing per-call-site
// fixed sleep loops.
package backoff

import (
	"context"
	"time"
)

type Policy struct {
	Initial     time.Duration // first delay
	Max         time.Duration // cap on a single delay
	Multiplier  float64       // growth factor per attempt
	MaxAttempts int           // 0 means unbounded attempts
	MaxElapsed  time.Duration // 0 means no total budget
}

func Default() Policy {
	return Policy{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 1.5,
	}
}

// Delay returns the delay before the given zero-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	d := float64(p.Initial)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
		if time.Duration(d) >= p.Max {
			return p.Max
		}
	}
	if time.Duration(d) > p.Max {
		return p.Max
	}
	return time.Duration(d)
}

// ErrBudgetExceeded is returned when attempts or elapsed budget ran out
// before fn reported done.
type ErrBudgetExceeded struct {
	Attempts int
	Elapsed  time.Duration
}

func (e *ErrBudgetExceeded) Error() string {
	return "backoff budget exceeded"
}

// Retry calls fn until it reports done, the policy budget runs out, or
// the context ends. fn errors are terminal; "not done yet" is signaled
// with (false, nil).
func (p Policy) Retry(ctx context.Context, fn func(ctx context.Context) (done bool, err error)) error {
	start := time.Now()
	for attempt := 0; ; attempt++ {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if p.MaxAttempts > 0 && attempt+1 >= p.MaxAttempts {
			return &ErrBudgetExceeded{Attempts: attempt + 1, Elapsed: time.Since(start)}
		}

		delay := p.Delay(attempt)
		if p.MaxElapsed > 0 && time.Since(start)+delay > p.MaxElapsed {
			return &ErrBudgetExceeded{Attempts: attempt + 1, Elapsed: time.Since(start)}
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
