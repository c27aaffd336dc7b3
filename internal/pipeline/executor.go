package pipeline

import (
	"context"
	"fmt"
	"time"
)

// Func is the per-item processing function a stage applies through the
// executor. It may call slow external services; the executor bounds it
// with a timeout per attempt.
type Func[In, Out any] func(ctx context.Context, in In) (Out, error)

// Profile controls how a unit of work is executed: per-attempt timeout
// and the retry budget for transient errors.
type Profile struct {
	// Timeout bounds a single attempt. Zero means DefaultCheapTimeout.
	Timeout time.Duration

	// MaxAttempts caps total attempts, first try included.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff growth.
	MaxBackoff time.Duration

	// BackoffMultiplier is the per-retry backoff growth factor.
	BackoffMultiplier float64
}

// Default executor parameters. Cheap covers quick classification-style
// calls; expensive covers full per-document analysis, which may spend
// minutes inside an LLM.
const (
	DefaultMaxAttempts      = 3
	DefaultCheapTimeout     = 30 * time.Second
	DefaultExpensiveTimeout = 5 * time.Minute
	DefaultInitialBackoff   = 1 * time.Second
	DefaultMaxBackoff       = 30 * time.Second
	DefaultBackoffFactor    = 2.0
)

// CheapProfile returns the default profile for quick per-item calls.
func CheapProfile() Profile {
	return Profile{
		Timeout:           DefaultCheapTimeout,
		MaxAttempts:       DefaultMaxAttempts,
		InitialBackoff:    DefaultInitialBackoff,
		MaxBackoff:        DefaultMaxBackoff,
		BackoffMultiplier: DefaultBackoffFactor,
	}
}

// ExpensiveProfile returns the default profile for slow per-item calls.
func ExpensiveProfile() Profile {
	p := CheapProfile()
	p.Timeout = DefaultExpensiveTimeout
	p.InitialBackoff = 2 * time.Second
	return p
}

// withDefaults fills unset fields so a zero Profile behaves sanely.
func (p Profile) withDefaults() Profile {
	if p.Timeout <= 0 {
		p.Timeout = DefaultCheapTimeout
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultInitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultMaxBackoff
	}
	if p.BackoffMultiplier <= 0 {
		p.BackoffMultiplier = DefaultBackoffFactor
	}
	return p
}

// Execute runs one unit of work under the profile's timeout and retry
// rules and classifies the outcome. It is stateless and reentrant, and
// it never lets an error escape as anything but a failure value.
//
// Transient errors are retried with exponential backoff up to
// MaxAttempts; permanent errors fail immediately. Parent context
// cancellation stops retrying and surfaces as a transient failure.
func Execute[In, Out any](ctx context.Context, profile Profile, item WorkItem[In], fn Func[In, Out]) ItemResult[Out] {
	profile = profile.withDefaults()

	var lastErr error
	backoff := profile.InitialBackoff

	for attempt := 1; attempt <= profile.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Fail[Out](item.ID, FailureTransient, fmt.Sprintf("cancelled before attempt %d: %v", attempt, err))
		}

		out, err := runAttempt(ctx, profile.Timeout, item.Payload, fn)
		if err == nil {
			return Succeed(item.ID, out)
		}
		lastErr = err

		if !IsTransient(err) {
			return Fail[Out](item.ID, FailurePermanent, err.Error())
		}
		if attempt == profile.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return Fail[Out](item.ID, FailureTransient, fmt.Sprintf("cancelled during backoff: %v", ctx.Err()))
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * profile.BackoffMultiplier)
		if backoff > profile.MaxBackoff {
			backoff = profile.MaxBackoff
		}
	}

	return Fail[Out](item.ID, FailureTransient,
		fmt.Sprintf("retries exhausted after %d attempts: %v", profile.MaxAttempts, lastErr))
}

// runAttempt executes one attempt under its own deadline. A deadline
// expiry on the attempt context is reported as a transient error even
// if fn swallowed the context error.
func runAttempt[In, Out any](ctx context.Context, timeout time.Duration, in In, fn Func[In, Out]) (Out, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := fn(attemptCtx, in)
	if err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return out, Transient(fmt.Errorf("attempt timed out after %s: %w", timeout, err))
	}
	return out, err
}
