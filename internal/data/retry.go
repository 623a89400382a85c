package data

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mohamedkhairy/squeeze-scanner/pkg/logger"
)

// RetryPolicy bounds retries of one upstream call.
type RetryPolicy struct {
	// Attempts is the total number of tries, first one included.
	Attempts    int
	Initial     time.Duration
	MaxInterval time.Duration
}

// DefaultRetryPolicy tries three times starting at 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Initial: 500 * time.Millisecond, MaxInterval: 5 * time.Second}
}

// IsRetryable reports whether err is worth another attempt. Errors wrapped
// with backoff.Permanent never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrInvalidRequest)
}

// Retry runs op with exponential backoff until it succeeds, returns a
// non-retryable error, exhausts the policy or ctx is done. label tags the
// retry metric.
func Retry(ctx context.Context, policy RetryPolicy, label string, op func() error) error {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	if policy.Initial > 0 {
		b.InitialInterval = policy.Initial
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}
	b.MaxElapsedTime = 0

	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		var perm *backoff.PermanentError
		if !errors.As(err, &perm) && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logger.FetchRetries.WithLabelValues(label).Inc()
		logger.Debug("Retrying upstream call",
			logger.String("label", label),
			logger.Int("attempt", attempt),
			logger.Duration("wait", wait),
			logger.ErrorField(err),
		)
	}

	// RetryNotify unwraps permanent errors
	policyBackoff := backoff.WithContext(backoff.WithMaxRetries(b, uint64(policy.Attempts-1)), ctx)
	return backoff.RetryNotify(wrapped, policyBackoff, notify)
}
