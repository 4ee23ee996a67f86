package core

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the machine-readable error kind carried across the service
// boundary.
type ErrorCode string

const (
	CodeAccountNotFound     ErrorCode = "ACCOUNT_NOT_FOUND"
	CodeAccountExists       ErrorCode = "ACCOUNT_EXISTS"
	CodeAccountCreation     ErrorCode = "ACCOUNT_CREATION_ERROR"
	CodeNullPassword        ErrorCode = "NULL_PASSWORD"
	CodeInvalidPassword     ErrorCode = "INVALID_PASSWORD"
	CodeInvalidOrNullToken  ErrorCode = "INVALID_OR_NULL_TOKEN"
	CodeTokenExpired        ErrorCode = "TOKEN_EXPIRED"
	CodeRequestNotCompleted ErrorCode = "REQUEST_NOT_COMPLETED"
)

// Error is a tagged domain error: an HTTP-like status, a machine-readable
// code, and a human message. Errors compare by code under errors.Is.
type Error struct {
	Code    ErrorCode
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of e carrying err for diagnostics. The code,
// status, and message presented to callers do not change.
func (e *Error) WithCause(err error) *Error {
	clone := *e
	clone.cause = err
	return &clone
}

// WithMessage returns a copy of e with a different human message.
func (e *Error) WithMessage(message string) *Error {
	clone := *e
	clone.Message = message
	return &clone
}

func AccountNotFound() *Error {
	return &Error{Code: CodeAccountNotFound, Status: http.StatusNotFound, Message: "Account not found."}
}

func AccountExists() *Error {
	return &Error{Code: CodeAccountExists, Status: http.StatusConflict, Message: "Account already exists."}
}

func AccountCreationError() *Error {
	return &Error{Code: CodeAccountCreation, Status: http.StatusInternalServerError, Message: "Account creation failed."}
}

func NullPassword() *Error {
	return &Error{Code: CodeNullPassword, Status: http.StatusBadRequest, Message: "Please provide password."}
}

func InvalidPassword() *Error {
	return &Error{Code: CodeInvalidPassword, Status: http.StatusForbidden, Message: "Password do not match."}
}

func InvalidOrNullToken() *Error {
	return &Error{Code: CodeInvalidOrNullToken, Status: http.StatusBadRequest, Message: "Token is invalid or null."}
}

func TokenExpired() *Error {
	return &Error{Code: CodeTokenExpired, Status: http.StatusBadRequest, Message: "Token is expired."}
}

func RequestNotCompleted(message string) *Error {
	return &Error{Code: CodeRequestNotCompleted, Status: http.StatusInternalServerError, Message: message}
}

// CodeOf extracts the taxonomy code from err, or "" when err is not a
// domain error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// StatusOf extracts the HTTP status from err, defaulting to 500 for
// unclassified errors.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}
