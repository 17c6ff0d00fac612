// Package retry runs outbound calls with a per-attempt timeout and a
// bounded number of attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Policy controls how an operation is retried.
type Policy struct {
	// Attempts is the total number of tries, at least one.
	Attempts int
	// Delay is the wait before the second attempt.
	Delay time.Duration
	// Multiplier grows the delay after each retry. Values <= 1 keep it fixed.
	Multiplier float64
	// Timeout bounds each attempt. Zero means no per-attempt limit.
	Timeout time.Duration
}

// Default is used for sheet fetches, uploads, invalidations and webhooks.
var Default = Policy{
	Attempts:   3,
	Delay:      300 * time.Millisecond,
	Multiplier: 2,
	Timeout:    30 * time.Second,
}

// Fixed returns a copy of p that waits the same delay between attempts.
func (p Policy) Fixed(delay time.Duration) Policy {
	p.Delay = delay
	p.Multiplier = 1
	return p
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
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

// Do calls op until it succeeds, returns a permanent error, ctx is done or
// the attempts are used up. name is used in log lines and the final error.
func Do(ctx context.Context, name string, p Policy, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = p.run(ctx, op)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}
		if attempt == attempts {
			break
		}

		log.Printf("%s failed (attempt %d/%d): %v; retrying in %s", name, attempt, attempts, err, delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case <-timer.C:
		}
		if p.Multiplier > 1 {
			delay = time.Duration(float64(delay) * p.Multiplier)
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", name, attempts, err)
}

func (p Policy) run(ctx context.Context, op func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return op(attemptCtx)
}
