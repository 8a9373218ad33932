// Package errors is the typed error every layer returns upward. A Code
// decides the HTTP status, the public message and whether a client may retry.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

// Client faults.
const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"

	// CodeInvalidTransition is an order status change the state machine forbids.
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	// CodeAlreadyProcessed is a second confirmation or resolution of one resource.
	CodeAlreadyProcessed Code = "ALREADY_PROCESSED"
)

// Server faults.
const (
	CodeInternal   Code = "INTERNAL_ERROR"
	CodeDependency Code = "DEPENDENCY_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func (m Metadata) retry() Metadata   { m.Retryable = true; return m }
func (m Metadata) details() Metadata { m.DetailsAllowed = true; return m }

func status(code int, public string) Metadata {
	return Metadata{HTTPStatus: code, PublicMessage: public}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:        status(http.StatusBadRequest, "validation failed").details(),
	CodeUnauthorized:      status(http.StatusUnauthorized, "authentication required"),
	CodeForbidden:         status(http.StatusForbidden, "access denied"),
	CodeNotFound:          status(http.StatusNotFound, "resource not found"),
	CodeConflict:          status(http.StatusConflict, "conflict detected").retry(),
	CodeStateConflict:     status(http.StatusUnprocessableEntity, "state transition disallowed").details(),
	CodeInvalidTransition: status(http.StatusUnprocessableEntity, "invalid status transition").details(),
	CodeAlreadyProcessed:  status(http.StatusConflict, "already processed").details(),
	CodeIdempotency:       status(http.StatusConflict, "idempotency key reused").details(),
	CodeRateLimit:         status(http.StatusTooManyRequests, "rate limit exceeded").retry(),

	CodeInternal:   status(http.StatusInternalServerError, "internal server error").retry(),
	CodeDependency: status(http.StatusServiceUnavailable, "dependency unavailable").retry().details(),
}

// MetadataFor treats unknown codes as internal.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error carries a code, a caller-facing message, optional details and the
// underlying cause. A nil *Error reads as an empty internal error.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches cause; a nil cause behaves like New.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets details in place and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches a target of the same code whose message is empty, so
// errors.Is(err, New(CodeNotFound, "")) tests for the code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && t.message == "" && t.code == e.code
}

// As finds the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func IsCode(err error, code Code) bool {
	return As(err).codeIs(code)
}

func (e *Error) codeIs(code Code) bool { return e != nil && e.code == code }

// Status is the HTTP status err renders as. Untyped errors are 500.
func Status(err error) int {
	return MetadataFor(As(err).Code()).HTTPStatus
}

// Retryable says whether repeating the call could succeed. Untyped errors
// count as internal, which is retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return MetadataFor(As(err).Code()).Retryable
}
