package utils

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so sweeps can decide whether to skip, warn or abort.
type ErrorKind string

const (
	// KindTransient marks a failed or timed-out call to an external provider.
	KindTransient ErrorKind = "transient"
	// KindPersistence marks a store write or read failure.
	KindPersistence ErrorKind = "persistence"
	// KindAuth marks a rejected trigger credential.
	KindAuth ErrorKind = "auth"
	// KindIntegrity marks inconsistent persisted data.
	KindIntegrity ErrorKind = "integrity"
)

// AppError wraps an operation, failure kind, human-facing message, and underlying error.
type AppError struct {
	Op   string
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op string, kind ErrorKind, msg string, err error) error {
	return &AppError{Op: op, Kind: kind, Msg: msg, Err: err}
}

// Transient wraps an external call failure.
func Transient(op string, err error) error {
	return NewAppError(op, KindTransient, "external call failed", err)
}

// Persistence wraps a store failure.
func Persistence(op string, err error) error {
	return NewAppError(op, KindPersistence, "store operation failed", err)
}

// Integrity reports a data anomaly.
func Integrity(op, msg string) error {
	return NewAppError(op, KindIntegrity, msg, nil)
}

// KindOf returns the kind of the first AppError in the chain, or "" when there is none.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
