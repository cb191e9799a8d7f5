// Package apperr defines the stable error kinds surfaced by the catalog.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInternal             Kind = "internal"
	KindValidation           Kind = "validation"
	KindUnsupportedMediaType Kind = "unsupported_media_type"
	KindPayloadTooLarge      Kind = "payload_too_large"
	KindNotFound             Kind = "not_found"
	KindForbidden            Kind = "forbidden"
	KindRangeNotSatisfiable  Kind = "range_not_satisfiable"
	KindNotImplemented       Kind = "not_implemented"
	KindStorageIO            Kind = "storage_io"
)

// Sentinels to match any error of the kind with errors.Is.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrUnsupportedMediaType = &Error{Kind: KindUnsupportedMediaType}
	ErrPayloadTooLarge      = &Error{Kind: KindPayloadTooLarge}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrForbidden            = &Error{Kind: KindForbidden}
	ErrRangeNotSatisfiable  = &Error{Kind: KindRangeNotSatisfiable}
	ErrNotImplemented       = &Error{Kind: KindNotImplemented}
	ErrStorageIO            = &Error{Kind: KindStorageIO}
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap the cause into an error of the given kind.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Errors of the same kind are equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Get the kind of the outermost typed error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Get the message to show to clients.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal server error"
}
