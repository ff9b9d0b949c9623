package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error               // sentinel category
	Message string              // human-readable message
	Fields  map[string][]string // optional: per-field messages
}

func (e *AppError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return e.Message + " (" + strings.Join(parts, ", ") + ")"
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(message string) *AppError {
	return &AppError{Err: ErrNotFound, Message: message}
}

// ValidationFailed reports a single invalid field.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: "Invalid input.",
		Fields:  map[string][]string{field: {message}},
	}
}

// Validation reports several invalid fields at once. It returns nil when
// fields is empty so callers can return it unconditionally.
func Validation(fields map[string][]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &AppError{Err: ErrValidation, Message: "Invalid input.", Fields: fields}
}

// Conflict is the "already exists / does not exist" case of relation
// toggles. HTTP handlers map it to 400.
func Conflict(message string) *AppError {
	return &AppError{Err: ErrConflict, Message: message}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{Err: ErrForbidden, Message: message}
}

func Unauthorized(message string) *AppError {
	return &AppError{Err: ErrUnauthorized, Message: message}
}
