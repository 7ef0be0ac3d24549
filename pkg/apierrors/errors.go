// Package apierrors defines the error taxonomy shared across every
// component and the HTTP-status mapping applied at the boundary. Some
// components return their own typed errors (C1's CanonicalizationError,
// C3's DigestError), others such as C4 return *Error values directly;
// this package is the single place those are classified into a Kind and
// a status code,
// rather than each handler downcasting to a string.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a domain error classification, not a target-language exception
// type. Names mirror the taxonomy in the error handling design.
type Kind string

const (
	KindNotFound           Kind = "NotFound"
	KindValidation         Kind = "Validation"
	KindUnauthorized       Kind = "Unauthorized"
	KindForbidden          Kind = "Forbidden"
	KindConflict           Kind = "Conflict"
	KindUpstream           Kind = "Upstream"
	KindServiceUnavailable Kind = "ServiceUnavailable"
	KindInternal           Kind = "Internal"
	KindNotImplemented     Kind = "NotImplemented"
)

// HTTPStatus maps a Kind to its boundary status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Code is the machine-readable error code carried in HTTP responses,
// e.g. "VALIDATION_ERROR".
func (k Kind) Code() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindConflict:
		return "CONFLICT"
	case KindUpstream:
		return "UPSTREAM_ERROR"
	case KindServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case KindNotImplemented:
		return "NOT_IMPLEMENTED"
	default:
		return "INTERNAL_ERROR"
	}
}

// Error is the typed error every component boundary returns. Internal
// errors carry a message that is logged but never echoed to the caller;
// the public Message field is what crosses the wire.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// PublicMessage is the message safe to put in an HTTP response body.
// Internal errors are scrubbed to a fixed string; everything else
// returns its own message, which must itself already be scrubbed of
// upstream internals by the caller (see Upstream).
func (e *Error) PublicMessage() string {
	if e.Kind == KindInternal {
		return "An internal error occurred"
	}
	return e.Message
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

func Upstream(cause error, format string, args ...any) *Error {
	return Wrap(KindUpstream, fmt.Sprintf(format, args...), cause)
}

func ServiceUnavailable(format string, args ...any) *Error {
	return New(KindServiceUnavailable, fmt.Sprintf(format, args...))
}

func Internal(cause error, context string) *Error {
	return Wrap(KindInternal, context, cause)
}

// KindOf classifies an arbitrary error for the boundary. Errors that are
// already *Error report their own Kind; anything else is Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus is a convenience wrapper around KindOf(err).HTTPStatus().
func HTTPStatus(err error) int {
	return KindOf(err).HTTPStatus()
}
