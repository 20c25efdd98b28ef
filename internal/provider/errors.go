package provider

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed generation attempt for the caller: only
// KindUnavailable failures are worth retrying, the other kinds need a human.
type ErrorKind string

const (
	// KindAuthorization covers rejected keys and exhausted quotas (401/403).
	KindAuthorization ErrorKind = "authorization"
	// KindResolution means the provider refused the requested size tier.
	KindResolution ErrorKind = "resolution"
	// KindUnavailable covers transport failures, 5xx, timeouts and
	// malformed responses.
	KindUnavailable ErrorKind = "unavailable"
)

type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether re-running the whole pipeline could help.
func (e *Error) Retryable() bool {
	return e.Kind == KindUnavailable
}

// KindOf extracts the classification from err, defaulting to KindUnavailable
// for errors that did not originate in the pipeline.
func KindOf(err error) ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindUnavailable
}

func unavailable(message string, err error) *Error {
	return &Error{Kind: KindUnavailable, Message: message, Err: err}
}
