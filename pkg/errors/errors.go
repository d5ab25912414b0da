package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
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

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound   = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict   = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal   = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss  = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	// ErrCrypto covers malformed ciphertext, bad padding and key mismatches.
	ErrCrypto = New("CRYPTO_ERROR", http.StatusInternalServerError, "decryption failed")
	// ErrDuplicate signals an existing document for the same teacher and category.
	ErrDuplicate = New("DUPLICATE_DOCUMENT", http.StatusConflict, "document already exists")
	// ErrArchive signals an unreadable snapshot or a missing database dump.
	ErrArchive = New("ARCHIVE_INVALID", http.StatusUnprocessableEntity, "archive is invalid")
	// ErrTeacherRequired is raised when no teacher could be resolved for a teacher category.
	ErrTeacherRequired = New("TEACHER_REQUIRED", http.StatusBadRequest, "no teacher detected; select a teacher before uploading")
)

// FromError normalises any error into an *Error.
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

// Is reports whether err matches the target sentinel by code.
func Is(err error, target *Error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return target != nil && e.Code == target.Code
}
