package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// FieldError describes a single violated validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Status  int          `json:"-"`
	Details []FieldError `json:"details,omitempty"`
	Err     error        `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches by code so errors.Is works across Clone copies.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e != nil && e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors carrying the stable machine-readable codes of the API.
var (
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrTokenExpired       = New("TOKEN_EXPIRED", http.StatusUnauthorized, "token expired")
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrInvalidID          = New("INVALID_ID", http.StatusBadRequest, "invalid id")
	ErrCourseNotFound     = New("COURSE_NOT_FOUND", http.StatusNotFound, "course not found")
	ErrUserNotFound       = New("USER_NOT_FOUND", http.StatusNotFound, "user not found")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrEmailExists        = New("EMAIL_EXISTS", http.StatusConflict, "email already registered")
	ErrAlreadyEnrolled    = New("ALREADY_ENROLLED", http.StatusConflict, "already enrolled in this course")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// ErrCacheMiss is a sentinel shared between the cache repository and the
	// cache service. It never reaches a client.
	ErrCacheMiss = New("CACHE_MISS", http.StatusInternalServerError, "cache miss")
)

// Validation builds a VALIDATION_ERROR carrying every violated rule.
func Validation(details []FieldError) *Error {
	message := ErrValidation.Message
	if len(details) > 0 {
		message = fmt.Sprintf("%s: %s", details[0].Field, details[0].Message)
	}
	return &Error{Code: ErrValidation.Code, Status: ErrValidation.Status, Message: message, Details: details}
}

// FromError normalises any error into an *Error. Unknown errors become
// INTERNAL_ERROR with the generic message so no internal detail leaks.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
