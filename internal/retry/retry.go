package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy bounds how often a fallible operation is attempted
type Policy struct {
	MaxAttempts int           // Default: 3
	Delay       time.Duration // Default: 5s
	Backoff     float64       // Delay multiplier after each failed attempt; <= 1 keeps it fixed

	// OnFailure is called after every failed attempt
	OnFailure func(attempt int, err error)
}

// DefaultPolicy returns the policy used for per-item extraction
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Delay:       5 * time.Second,
	}
}

// ExhaustedError is returned once every attempt has failed
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds, returns a Permanent error, or the attempts run out.
// Waits between attempts are cut short by ctx.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return &ExhaustedError{Attempts: attempt - 1, Err: err}
		}

		err = op(ctx)
		if err == nil {
			return nil
		}

		if p.OnFailure != nil {
			p.OnFailure(attempt, err)
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return &ExhaustedError{Attempts: attempt, Err: perm.err}
		}

		if attempt == attempts || delay <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return &ExhaustedError{Attempts: attempt, Err: err}
		case <-time.After(delay):
		}

		if p.Backoff > 1 {
			delay = time.Duration(float64(delay) * p.Backoff)
		}
	}

	return &ExhaustedError{Attempts: attempts, Err: err}
}
