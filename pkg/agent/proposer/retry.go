package proposer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
)

// DefaultRetries is the number of extra attempts after a failed proposal
const DefaultRetries = 3

// Retry wraps a proposer and retries failed proposals with exponential
// backoff. Context cancellation is never retried.
type Retry struct {
	inner        interfaces.Proposer
	retries      uint64
	initial      time.Duration
	maxInterval  time.Duration
	attemptCount int
}

var _ interfaces.Proposer = (*Retry)(nil)

// RetryOption configures Retry
type RetryOption func(*Retry)

// WithInterval sets the initial and maximum backoff interval
func WithInterval(initial, maxInterval time.Duration) RetryOption {
	return func(r *Retry) {
		r.initial = initial
		r.maxInterval = maxInterval
	}
}

// WithRetry wraps inner with at most retries extra attempts per proposal
func WithRetry(inner interfaces.Proposer, retries int, opts ...RetryOption) *Retry {
	r := &Retry{
		inner:       inner,
		retries:     uint64(max(0, retries)),
		initial:     500 * time.Millisecond,
		maxInterval: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attempts returns the number of calls made to the wrapped proposer
func (r *Retry) Attempts() int {
	return r.attemptCount
}

// Propose calls the wrapped proposer until it succeeds or retries run out.
// The last error stays reachable with errors.Is.
func (r *Retry) Propose(ctx context.Context, obs *model.Observation, memory interfaces.MemoryQuerier) (*model.Action, error) {
	var action *model.Action

	op := func() error {
		r.attemptCount++
		a, err := r.inner.Propose(ctx, obs, memory)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		action = a
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.initial
	eb.MaxInterval = r.maxInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, r.retries), ctx)

	notify := func(err error, wait time.Duration) {
		agent := ""
		if obs != nil {
			agent = obs.Agent
		}
		logging.From(ctx).Warn("proposal failed, retrying",
			slog.String("agent", agent),
			slog.Duration("wait", wait),
			slog.Any("error", err),
		)
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, goerr.Wrap(err, "proposal failed after retries", goerr.V("retries", r.retries))
	}
	return action, nil
}
