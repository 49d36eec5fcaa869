package service

import (
	"errors"
	"sort"
	"strings"
)

// NotFoundError: the referenced entity does not exist.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }

// PermissionDeniedError: the acting user may not perform the operation.
type PermissionDeniedError struct {
	Op string
}

func (e *PermissionDeniedError) Error() string { return "permission denied: " + e.Op }

// ValidationError carries per-field messages. No mutation has occurred
// when one is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
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
	return "validation failed: " + strings.Join(parts, "; ")
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsPermissionDenied(err error) bool {
	var e *PermissionDeniedError
	return errors.As(err, &e)
}

func AsValidation(err error) (*ValidationError, bool) {
	var e *ValidationError
	ok := errors.As(err, &e)
	return e, ok
}
