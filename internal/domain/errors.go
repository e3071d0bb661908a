package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind is the machine-readable class of a pipeline failure.
type Kind string

const (
	KindInvalidInput  Kind = "invalid_input"
	KindConfiguration Kind = "configuration_error"
	KindExtraction    Kind = "extraction_error"
	KindSearch        Kind = "search_error"
	KindRateLimited   Kind = "rate_limited"
	KindInternal      Kind = "internal_error"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func InvalidInput(msg string) *Error { return &Error{Kind: KindInvalidInput, Message: msg} }

func ConfigurationError(msg string) *Error { return &Error{Kind: KindConfiguration, Message: msg} }

func ExtractionError(msg string, err error) *Error {
	return &Error{Kind: KindExtraction, Message: msg, Err: err}
}

func SearchError(msg string, err error) *Error {
	return &Error{Kind: KindSearch, Message: msg, Err: err}
}

func RateLimited(msg string) *Error { return &Error{Kind: KindRateLimited, Message: msg} }

// KindOf digs the Kind out of a wrapped error; unknown errors are internal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf returns the human-readable message of a domain error, or err.Error().
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// IsTimeout reports whether err comes from a deadline rather than a rejection.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
