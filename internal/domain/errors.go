package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so the dispatcher and the HTTP layer can
// decide what to do with it without inspecting error strings.
type ErrorKind string

const (
	// KindNotFound means the target entity does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindInvalidInput means the request was syntactically or semantically invalid.
	KindInvalidInput ErrorKind = "invalid_input"
	// KindInvalidTransition means a state-machine rule was violated.
	KindInvalidTransition ErrorKind = "invalid_transition"
	// KindRateLimited means a sending budget was exhausted. Retryable in workers.
	KindRateLimited ErrorKind = "rate_limited"
	// KindUpstreamUnavailable means an external provider or analyzer failed. Retryable.
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	// KindPermanentFailure means retrying cannot help (e.g. malformed job body).
	KindPermanentFailure ErrorKind = "permanent_failure"
	// KindSuppressed means the recipient is on a suppression list.
	KindSuppressed ErrorKind = "suppressed"
)

// Error is a classified application error. Hint is optional operator guidance
// surfaced in API responses.
type Error struct {
	Kind ErrorKind
	Msg  string
	Hint string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error.
func E(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Ef builds a classified error with a formatted message.
func Ef(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a classified error around a cause.
func Wrap(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from err, or empty string for unclassified errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsRetryable reports whether a worker should re-enqueue the job after err.
// Unclassified errors are treated as retryable so transient infrastructure
// failures (DB hiccups, timeouts) go through the backoff path.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindPermanentFailure, KindInvalidInput, KindInvalidTransition, KindNotFound, KindSuppressed:
		return false
	}
	return true
}
