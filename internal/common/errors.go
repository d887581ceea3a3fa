// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Fetch and parse errors.
	ErrTransientFetch    = errors.New("transient fetch failure")
	ErrMalformedResponse = errors.New("malformed response")

	// Business-rule results, not faults.
	ErrInsufficientData = errors.New("insufficient data")

	// Cache errors.
	ErrCacheCorruption = errors.New("cache store corrupted")

	// Collaborator errors.
	ErrClassificationUnavailable = errors.New("classification unavailable")
	ErrNotificationFailed        = errors.New("notification delivery failed")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Transient marks err as retryable and tags it as a transient fetch
// failure so callers can recognize the class after unwrapping.
func Transient(err error) error {
	return &RetryableError{Err: fmt.Errorf("%w: %v", ErrTransientFetch, err), Retryable: true}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrTransientFetch) ||
		errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
