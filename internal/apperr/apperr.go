// Package apperr is the error taxonomy shared by every workflow. Each error
// carries a Kind that maps to exactly one HTTP status at the boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind string

const (
	KindValidation      Kind = "VALIDATION"
	KindNotFound        Kind = "NOT_FOUND"
	KindNotAuthorized   Kind = "NOT_AUTHORIZED"
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindDuplicate       Kind = "DUPLICATE_ENTRY"
	KindInvalidID       Kind = "INVALID_ID_FORMAT"
	KindServer          Kind = "SERVER_ERROR"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status is the HTTP status code for the error's kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindDuplicate, KindInvalidID:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindNotAuthorized:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Validation joins every violation into one message so callers see all of
// them at once.
func Validation(violations ...string) *Error {
	return New(KindValidation, strings.Join(violations, "; "))
}

func NotFound(entity, id string) *Error {
	if id == "" {
		return New(KindNotFound, entity+" not found")
	}
	return New(KindNotFound, fmt.Sprintf("%s %s not found", entity, id))
}

func NotAuthorized(msg string) *Error {
	return New(KindNotAuthorized, msg)
}

func Unauthenticated(msg string) *Error {
	return New(KindUnauthenticated, msg)
}

func Duplicate(field string) *Error {
	return New(KindDuplicate, fmt.Sprintf("%s already exists", field))
}

func InvalidID(id string) *Error {
	return New(KindInvalidID, fmt.Sprintf("invalid id format: %q", id))
}

func Server(err error, msg string) *Error {
	return Wrap(KindServer, err, msg)
}

// KindOf classifies any error. Errors outside the taxonomy are server errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServer
}

func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status()
	}
	return http.StatusInternalServerError
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
