// Package sealerrors defines the categorized error taxonomy of the
// key-server pipeline: each category carries an HTTP status and a
// retry advisory, and wraps the underlying cause with
// github.com/pkg/errors so stack context survives across pipeline
// stages without ever reaching the client response body.
package sealerrors

import (
	"net/http"

	"github.com/pkg/errors"
)

// Category is one of the ten error categories of the fetch_keys
// pipeline.
type Category string

const (
	MalformedRequest    Category = "MalformedRequest"
	InvalidSignature    Category = "InvalidSignature"
	ExpiredSession      Category = "ExpiredSession"
	UnknownPackage      Category = "UnknownPackage"
	NoAccess            Category = "NoAccess"
	GoneExported        Category = "GoneExported"
	UpstreamTimeout     Category = "UpstreamTimeout"
	UpstreamUnavailable Category = "UpstreamUnavailable"
	Overloaded          Category = "Overloaded"
	Internal            Category = "Internal"
)

// HTTPStatus returns the status code the category maps to.
func (c Category) HTTPStatus() int {
	switch c {
	case MalformedRequest:
		return http.StatusBadRequest
	case InvalidSignature, ExpiredSession:
		return http.StatusUnauthorized
	case NoAccess, GoneExported:
		return http.StatusForbidden
	case UnknownPackage:
		return http.StatusNotFound
	case UpstreamTimeout:
		return http.StatusRequestTimeout
	case UpstreamUnavailable, Overloaded:
		return http.StatusServiceUnavailable
	case Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a client may usefully retry the request.
func (c Category) Retryable() bool {
	switch c {
	case UpstreamTimeout, UpstreamUnavailable, Overloaded, Internal:
		return true
	default:
		return false
	}
}

// Error is a categorized, wrapped pipeline error. Message is safe to
// return to a client; Cause is never serialized over the wire.
type Error struct {
	Cat     Category
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a categorized error with no underlying cause.
func New(cat Category, message string) *Error {
	return &Error{Cat: cat, Message: message}
}

// Wrap attaches a category and short client-facing message to an
// underlying cause, preserving it via github.com/pkg/errors so the
// originating stack trace is retrievable with errors.Cause/errors.As
// for logging, without ever being serialized to the client.
func Wrap(cat Category, message string, cause error) *Error {
	return &Error{Cat: cat, Message: message, Cause: errors.WithStack(cause)}
}

// As extracts a *Error from err, returning nil and false when err does
// not carry one.
func As(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Response is the wire body returned to clients on pipeline failure.
type Response struct {
	Error   Category `json:"error"`
	Message string   `json:"message"`
	Retry   bool     `json:"retry"`
}

// ToResponse builds the client-safe response body for e, never
// including e.Cause's text.
func (e *Error) ToResponse() Response {
	return Response{Error: e.Cat, Message: e.Message, Retry: e.Cat.Retryable()}
}
