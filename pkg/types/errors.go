package types

import (
	"errors"
	"fmt"
)

// Store and sync errors. Typed errors below wrap one of these so callers
// can match with errors.Is.
var (
	ErrNotFound        = errors.New("snippet not found")
	ErrStorageFailure  = errors.New("storage failure")
	ErrRemoteFailure   = errors.New("remote failure")
	ErrSchemaMismatch  = errors.New("schema mismatch")
	ErrIDConflict      = errors.New("snippet id already in use")
	ErrInvalidSnippet  = errors.New("invalid snippet")
	ErrInvalidMode     = errors.New("invalid sync mode")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// NotFoundError names the missing snippet id.
type NotFoundError struct {
	ID uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("snippet #%d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound returns a NotFoundError for id.
func NotFound(id uint64) error {
	return &NotFoundError{ID: id}
}

// RemoteError is a failure talking to the remote for a single snippet.
// ID is zero for snapshot-level operations.
type RemoteError struct {
	ID     uint64
	Op     string
	Reason string
	Err    error
}

func (e *RemoteError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("remote %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("remote %s snippet #%d: %s", e.Op, e.ID, e.Reason)
}

// Unwrap exposes both the sentinel and the transport error.
func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemoteFailure}
	}
	return []error{ErrRemoteFailure, e.Err}
}

// SchemaMismatchError reports an import record that does not parse.
type SchemaMismatchError struct {
	Line int
	Text string
	Err  error
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("line %d does not match the snippet schema: %v: %s", e.Line, e.Err, e.Text)
}

func (e *SchemaMismatchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSchemaMismatch}
	}
	return []error{ErrSchemaMismatch, e.Err}
}

// StorageError wraps an error from the underlying medium.
func StorageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}

func invalidSnippet(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidSnippet, msg)
}
