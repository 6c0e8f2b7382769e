package llm

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds how often and how patiently an operation is retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialDelay is the wait before the first retry. It doubles after each retry.
	InitialDelay time.Duration
}

// DefaultRetryPolicy retries three times, waiting 1s, 2s and 4s.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:   3,
	InitialDelay: time.Second,
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Retry returns the wrapped
// error as soon as it sees one.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retry runs op until it succeeds or the policy's retries are exhausted,
// waiting with exponential backoff between attempts. The error of the last
// attempt is returned unchanged. op is assumed to be safe to repeat.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	retriesLeft := policy.MaxRetries
	delay := policy.InitialDelay

	for {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			return result, p.err
		}
		if retriesLeft <= 0 {
			return result, err
		}

		log.Warn().
			Err(err).
			Int("retriesLeft", retriesLeft).
			Dur("delay", delay).
			Msg("api call failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}

		retriesLeft--
		delay *= 2
	}
}
