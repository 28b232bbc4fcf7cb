package store

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classifying store failures. Callers branch with
// errors.Is; every exported method wraps its cause with one of these.
var (
	// ErrValidation marks caller input rejected before any mutation.
	ErrValidation = errors.New("validation error")
	// ErrConstraint marks a violated relational or structural constraint.
	ErrConstraint = errors.New("constraint violation")
	// ErrIO marks a filesystem copy, rename, or hash failure.
	ErrIO = errors.New("io failure")
	// ErrStore marks an infrastructure-level database failure.
	ErrStore = errors.New("store failure")
	// ErrNotFound marks a lookup that matched no row.
	ErrNotFound = errors.New("not found")
)

// UnknownEnumError reports a stored enum string that no parser
// recognizes. It is distinct from ErrValidation so corrupted rows are
// detectable rather than misread.
type UnknownEnumError struct {
	Enum  string
	Value string
}

func (e *UnknownEnumError) Error() string {
	return fmt.Sprintf("unknown %s value %q", e.Enum, e.Value)
}

func unknownEnum(enum, value string) error {
	return &UnknownEnumError{Enum: enum, Value: value}
}

// mapSQLError classifies a database error into the store taxonomy.
// SQLite reports constraint failures only through the error text.
func mapSQLError(err error, op string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "CHECK constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed") {
		return fmt.Errorf("%s: %w: %v", op, ErrConstraint, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStore, err)
}
