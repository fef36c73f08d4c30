// Package errs defines the error taxonomy shared across the trust and
// installation core. Errors are classified by Kind rather than by Go type,
// so callers that only care about the category ("was this a trust failure?")
// don't need to know which package produced the error.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind groups errors into the categories enumerated in the error handling
// design: Configuration, Authentication, Trust, Transport, Integrity, State,
// Dispatch.
type Kind string

const (
	Configuration  Kind = "configuration"
	Authentication Kind = "authentication"
	Trust          Kind = "trust"
	Transport      Kind = "transport"
	Integrity      Kind = "integrity"
	State          Kind = "state"
	Dispatch       Kind = "dispatch"
)

// Error is a single typed value surfaced to the invoker of an operation. The
// Kind never changes as context is layered on with Wrap; only the message
// and cause chain grow.
type Error struct {
	Kind    Kind
	Code    string // short machine-stable identifier, e.g. "no-trusted-signature"
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Cause exposes the cause for github.com/pkg/errors-style callers and for
// formatting stack traces when the cause was created with errors.WithStack.
func (e *Error) Cause() error { return e.cause }

// Format implements fmt.Formatter so that %+v on a wrapped error prints the
// full cause chain's stack trace when available (verbose log mode).
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s: %s", e.Kind, e.Message)
			if e.cause != nil {
				fmt.Fprintf(s, "\n  caused by: %+v", e.cause)
			}
			return
		}
		fallthrough
	default:
		fmt.Fprint(s, e.Error())
	}
}

// New creates an Error with no cause.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Newf is New with formatting.
func Newf(kind Kind, code, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Wrap attaches a Kind and message to an existing error, preserving it as the
// cause. Wrapping never changes the Kind of an already-classified *Error:
// when cause's chain holds an *Error, its Kind is kept and kind applies only
// to unclassified causes; later wraps only add message context.
func Wrap(kind Kind, code, message string, cause error) *Error {
	var inner *Error
	if errors.As(cause, &inner) {
		kind = inner.Kind
	}
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err, or "" if err is not a classified *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
