package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError carries an error kind that maps to one HTTP status. Detail is
// user-visible; Err is the wrapped cause and is never rendered.
type AppError struct {
	Kind   string
	Detail string
	Err    error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindValidation, KindStateConflict:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func NewValidationError(detail string) *AppError {
	return &AppError{Kind: KindValidation, Detail: detail}
}

func NewUnauthorizedError(detail string) *AppError {
	return &AppError{Kind: KindUnauthorized, Detail: detail}
}

func NewForbiddenError(detail string) *AppError {
	return &AppError{Kind: KindForbidden, Detail: detail}
}

func NewNotFoundError(detail string) *AppError {
	return &AppError{Kind: KindNotFound, Detail: detail}
}

func NewStateConflictError(detail string) *AppError {
	return &AppError{Kind: KindStateConflict, Detail: detail}
}

// NewDependencyError wraps a record store or identity provider failure.
func NewDependencyError(op string, err error) *AppError {
	return &AppError{Kind: KindDependency, Detail: op, Err: err}
}

func IsKind(err error, kind string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
