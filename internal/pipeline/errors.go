package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// DuplicateStageError indicates a stage name was recorded twice in one
// run. This is a programmer error in the orchestration wiring, not a
// runtime condition.
type DuplicateStageError struct {
	Stage string
}

func (e *DuplicateStageError) Error() string {
	return fmt.Sprintf("pipeline: stage %q already recorded", e.Stage)
}

// StageNotFoundError indicates a lookup for a stage that has not run.
type StageNotFoundError struct {
	Stage string
}

func (e *StageNotFoundError) Error() string {
	return fmt.Sprintf("pipeline: stage %q not recorded", e.Stage)
}

// transientError marks an error as retryable.
type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

// Transient wraps err so the executor treats it as retryable. Returns
// nil if err is nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err should be retried. Errors are
// transient when explicitly wrapped with Transient, when they are
// network timeouts, or when they stem from the context being cancelled
// or its deadline expiring. Cancellation counts as transient so items
// drained during an abort classify the same whether the cancel was
// observed before or during their attempt. Everything else is treated
// as permanent: retrying bad input does not make it good.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
