package edgar

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is the single backoff policy applied to every network call.
// Exponential growth with randomized jitter, capped attempts. Only errors
// classified retryable are retried; everything else aborts immediately.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

// DefaultRetryPolicy matches the SEC client defaults: up to 3 retries after
// the initial attempt, starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: time.Second,
		Multiplier:      2.0,
		MaxInterval:     30 * time.Second,
	}
}

// Do runs op under the policy. Returns the number of retries performed
// (zero when the first attempt settles the matter) and the final error,
// with exhaustion wrapped in RetryExhaustedError.
func (p RetryPolicy) Do(op func() error) (int, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.Multiplier = p.Multiplier
	eb.MaxInterval = p.MaxInterval
	eb.MaxElapsedTime = 0 // attempt count is the only cap

	attempts := 0
	var lastErr error

	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithMaxRetries(eb, p.MaxRetries))

	retries := attempts - 1
	if err == nil {
		return retries, nil
	}
	if !retryable(lastErr) {
		return retries, lastErr
	}
	return retries, &RetryExhaustedError{Attempts: attempts, Last: lastErr}
}
