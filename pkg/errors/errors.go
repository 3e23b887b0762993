package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed console error with HTTP awareness.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
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

// Is matches errors by code so cloned errors still compare equal to their templates.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
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
	ErrNotFound          = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUnauthorized      = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation        = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrServerValidation  = New("SERVER_VALIDATION_ERROR", http.StatusUnprocessableEntity, "the server rejected the submitted data")
	ErrUpstream          = New("UPSTREAM_ERROR", http.StatusBadGateway, "something went wrong, please try again")
	ErrMalformedResponse = New("MALFORMED_RESPONSE", http.StatusBadGateway, "unexpected response from server")
	ErrNotFoundOnDecode  = New("NOT_FOUND_ON_DECODE", http.StatusNotFound, "record not found")
	ErrUnknownEntity     = New("UNKNOWN_ENTITY", http.StatusNotFound, "unknown listing")
	ErrNoPendingDeletion = New("NO_PENDING_DELETION", http.StatusConflict, "no deletion awaiting confirmation")
	ErrBusy              = New("BUSY", http.StatusConflict, "another action is still in progress")
	ErrStepLocked        = New("STEP_LOCKED", http.StatusConflict, "step has not been reached yet")
	ErrCacheMiss         = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrInternal          = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
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

// WithFields returns a copy of the error carrying a field-keyed message map.
func WithFields(err *Error, fields map[string]string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Fields = make(map[string]string, len(fields))
	for k, v := range fields {
		clone.Fields[k] = v
	}
	return &clone
}

// MergeFields combines inline validation maps; later maps win on key collisions.
func MergeFields(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
