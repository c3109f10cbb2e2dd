package channel

import (
	"context"
	"time"

	"github.com/soyeahso/smsrelay/internal/domain"
	"github.com/soyeahso/smsrelay/internal/logging"
)

// Default retry settings.
const (
	DefaultMaxAttempts = 2
	DefaultBackoff     = time.Second
)

// RetryPolicy bounds the attempts made for one delivery task. The wait
// before attempt n+1 is n × Backoff; the first attempt never waits.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy returns two attempts with a one second linear backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Backoff: DefaultBackoff}
}

// Result is what a retried delivery produced.
type Result struct {
	Succeeded bool
	Attempts  int
	LastError error
}

// Retrying wraps a Sender with a RetryPolicy.
type Retrying struct {
	sender Sender
	policy RetryPolicy
	log    *logging.Logger
}

// WithRetry wraps s with policy p.
func WithRetry(s Sender, p RetryPolicy, log *logging.Logger) *Retrying {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return &Retrying{sender: s, policy: p, log: log.Sub("retry")}
}

// Deliver runs attempts sequentially until one succeeds, the policy is
// exhausted, or an attempt fails permanently.
func (r *Retrying) Deliver(ctx context.Context, ch domain.Channel, msg domain.InboundMessage) Result {
	var res Result
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, time.Duration(attempt-1)*r.policy.Backoff); err != nil {
				res.LastError = err
				return res
			}
		}

		res.Attempts = attempt
		err := r.sender.Deliver(ctx, ch, msg)
		if err == nil {
			res.Succeeded = true
			res.LastError = nil
			return res
		}
		res.LastError = err

		if IsPermanent(err) {
			r.log.Debug().
				Err(err).
				Str("channel", ch.ID).
				Msg("permanent failure, not retrying")
			return res
		}

		r.log.Warn().
			Err(err).
			Str("channel", ch.ID).
			Int("attempt", attempt).
			Int("maxAttempts", r.policy.MaxAttempts).
			Msg("delivery attempt failed")
	}
	return res
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
