package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrBusy            = errors.New("another sign-in operation is in progress")
	ErrInvalidState    = errors.New("operation not allowed in the current state")
	ErrUnknownSession  = errors.New("unknown session")
	ErrAlreadyJoined   = errors.New("already joined this session")
	ErrJoinInProgress  = errors.New("join already in progress")
	ErrNoActiveSession = errors.New("no active session")
)

// ValidationError is raised before any request is sent.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "Validation error"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "Validation error: " + strings.Join(parts, "; ")
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
