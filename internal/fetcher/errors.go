package fetcher

import (
	"fmt"
	"strings"

	"ogpimage/internal/failure"
)

type FetchErrorCause string

const (
	ErrCauseInvalidRequest        FetchErrorCause = "invalid request"
	ErrCauseNetworkFailure        FetchErrorCause = "network issues"
	ErrCauseReadResponseBodyError FetchErrorCause = "failed to read response body"
	ErrCausePrivateDestination    FetchErrorCause = "private destination"
	ErrCauseRequestTooMany        FetchErrorCause = "too many requests"
	ErrCauseRequest4xx            FetchErrorCause = "4xx"
	ErrCauseRequest5xx            FetchErrorCause = "5xx"
	ErrCauseBodyTooLarge          FetchErrorCause = "body too large"
	ErrCauseMalformedResponse     FetchErrorCause = "malformed response"
)

// FetchError is an upstream failure: network, status, or body read.
type FetchError struct {
	URL        string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      FetchErrorCause
}

func (e *FetchError) Error() string {
	safe := Redact(e.URL)
	return fmt.Sprintf("fetcher error: %s: %s (%s)", e.Cause, safe, strings.ReplaceAll(e.Message, e.URL, safe))
}

// Malformed reports an upstream body that arrived intact but could not be
// interpreted. It is never retried.
func Malformed(url, message string) *FetchError {
	return &FetchError{URL: url, Message: message, Cause: ErrCauseMalformedResponse}
}

func (e *FetchError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *FetchError) IsRetryable() bool {
	return e.Retryable
}
