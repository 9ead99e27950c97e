// Package apperr defines the error taxonomy shared by the order engine and
// its transports.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an engine failure.
type Code string

const (
	CodeValidation        Code = "validation_failed"
	CodeInsufficientStock Code = "insufficient_stock"
	CodeInvalidTransition Code = "invalid_transition"
	CodeNotFound          Code = "not_found"
	CodeNotAuthorized     Code = "not_authorized"
	CodeConflict          Code = "conflict"
	CodeDuplicateRequest  Code = "duplicate_request"
)

// Error is a classified failure. Two *Error values match under errors.Is when
// their codes are equal, so the sentinels below can be used as targets.
type Error struct {
	Code    Code
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrValidation        = &Error{Code: CodeValidation}
	ErrInsufficientStock = &Error{Code: CodeInsufficientStock}
	ErrInvalidTransition = &Error{Code: CodeInvalidTransition}
	ErrNotFound          = &Error{Code: CodeNotFound}
	ErrNotAuthorized     = &Error{Code: CodeNotAuthorized}
	ErrConflict          = &Error{Code: CodeConflict}
	ErrDuplicateRequest  = &Error{Code: CodeDuplicateRequest}
)

// New builds a classified error.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap builds a classified error around a cause.
func Wrap(code Code, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// Validation is shorthand for a validation failure.
func Validation(op, format string, args ...any) *Error {
	return New(CodeValidation, op, fmt.Sprintf(format, args...))
}

// InsufficientStockError reports the line whose reservation failed.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	if e.Available >= 0 {
		return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock for product %s: requested %d", e.ProductID, e.Requested)
}

// Is lets errors.Is(err, ErrInsufficientStock) succeed.
func (e *InsufficientStockError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t != nil && t.Code == CodeInsufficientStock
}

// Kind returns a stable machine readable label for err.
func Kind(err error) string {
	var stock *InsufficientStockError
	var appErr *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &stock):
		return string(CodeInsufficientStock)
	case errors.As(err, &appErr):
		return string(appErr.Code)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrNotAuthorized):
		return http.StatusForbidden

	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrDuplicateRequest):
		return http.StatusConflict

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}
