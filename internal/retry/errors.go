package retry

import (
	"fmt"

	"ogpimage/internal/failure"
)

type RetryErrorCause string

const (
	ErrZeroAttempt       RetryErrorCause = "zero attempt"
	ErrExhaustedAttempts RetryErrorCause = "exhausted attempts"
	ErrCanceled          RetryErrorCause = "canceled"
)

type RetryError struct {
	Message string
	Cause   RetryErrorCause
	Last    error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry error: %s, %s", e.Cause, e.Message)
}

func (e *RetryError) Severity() failure.Severity {
	return failure.SeverityFatal
}

func (e *RetryError) Unwrap() error {
	return e.Last
}
