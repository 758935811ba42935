// Package apperr defines the error kinds surfaced at the HTTP boundary.
//
// Services return *Error values (or plain errors, treated as Internal). The
// transport layer maps the kind to a status code and a JSON envelope; the
// Cause is logged but never sent to clients.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindBadRequest
	KindAuthentication
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimit
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBadRequest:
		return "bad_request"
	case KindAuthentication:
		return "authentication"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindBadRequest:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is an application error with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	// Paths holds per-field messages for validation failures.
	Paths []string
	// Status overrides Kind.Status when non-zero.
	Status int
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code to respond with.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return e.Kind.Status()
}

const (
	msgUnauthorized       = "You are not authorized."
	msgForbidden          = "You do not have permission to access this resource."
	msgInvalidCredentials = "Invalid username or password."
	msgTooManyRequests    = "Too many login attempts, please try again later."
	msgInternal           = "Something went wrong."
)

func Validation(message string, paths ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Paths: paths}
}

func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// Unauthenticated is deliberately uninformative about the root cause.
func Unauthenticated(cause error) *Error {
	return &Error{Kind: KindAuthentication, Message: msgUnauthorized, Cause: cause}
}

func Forbidden() *Error {
	return &Error{Kind: KindForbidden, Message: msgForbidden}
}

// InvalidCredentials does not reveal whether the username or the password
// was wrong. It is reported as 403.
func InvalidCredentials() *Error {
	return &Error{Kind: KindForbidden, Message: msgInvalidCredentials}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Conflict(message string, cause error) *Error {
	return &Error{Kind: KindConflict, Message: message, Cause: cause}
}

func RateLimited() *Error {
	return &Error{Kind: KindRateLimit, Message: msgTooManyRequests}
}

func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: msgInternal, Cause: cause}
}

// From converts any error into an *Error, wrapping unknown errors as
// Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// StatusCode maps a status to the code name used in error envelopes.
func StatusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusUnsupportedMediaType:
		return "UNSUPPORTED_MEDIA_TYPE"
	case http.StatusUnprocessableEntity:
		return "BAD_USER_INPUT"
	case http.StatusTooManyRequests:
		return "TOO_MANY_REQUESTS"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}
