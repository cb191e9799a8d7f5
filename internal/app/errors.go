package app

import (
	"fmt"
	"net/http"

	"github.com/molpadia/molpalearn/internal/domain/apperr"
)

// The JSON body of every failed request.
type AppError struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Code, e.Kind, e.Message)
}

var errUnauthenticated = &AppError{http.StatusUnauthorized, "unauthenticated", "authentication required"}

func badRequest(format string, args ...interface{}) error {
	return apperr.Newf(apperr.KindValidation, format, args...)
}

var statusOf = map[apperr.Kind]int{
	apperr.KindValidation:           http.StatusBadRequest,
	apperr.KindUnsupportedMediaType: http.StatusUnsupportedMediaType,
	apperr.KindPayloadTooLarge:      http.StatusRequestEntityTooLarge,
	apperr.KindNotFound:             http.StatusNotFound,
	apperr.KindForbidden:            http.StatusForbidden,
	apperr.KindRangeNotSatisfiable:  http.StatusRequestedRangeNotSatisfiable,
	apperr.KindNotImplemented:       http.StatusNotImplemented,
	apperr.KindStorageIO:            http.StatusBadGateway,
	apperr.KindInternal:             http.StatusInternalServerError,
}

// Convert any error into the reply sent to the client. Messages of internal
// errors are not exposed.
func toAppError(err error) *AppError {
	if e, ok := err.(*AppError); ok {
		return e
	}
	kind := apperr.KindOf(err)
	code, ok := statusOf[kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	msg := apperr.MessageOf(err)
	if code == http.StatusInternalServerError {
		msg = "internal server error"
	}
	return &AppError{Code: code, Kind: string(kind), Message: msg}
}
