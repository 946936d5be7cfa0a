package storage

import (
	"errors"
	"fmt"
	"strings"
)

// The error taxonomy, in two tiers.
//
// Expected errors (validation, conflict, not-found) are part of normal
// operation: they are returned to the caller and never logged by the store.
// Unexpected errors (corrupt snapshot, persistence failure) indicate an
// environment problem: the store logs them with full context before
// returning them, and never reports success while the disk state is in
// doubt.
//
// Handlers pick the pieces apart with errors.As / errors.Is.

// ErrNotReady is returned when an operation runs against a store whose
// startup load never happened — a zero-value struct instead of one from
// New. That is a wiring bug in the caller, not a runtime condition.
var ErrNotReady = errors.New("record store is not initialized")

// ValidationError reports create/update input with required fields that
// are missing or empty. No state was changed.
type ValidationError struct {
	Missing []string // field names, sorted
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// ConflictError reports a natural-key uniqueness violation: another record
// in the collection already carries this key value. No state was changed.
type ConflictError struct {
	Key   string // natural-key field name, e.g. "studentID"
	Value string // offending value
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("a record with %s %q already exists", e.Key, e.Value)
}

// NotFoundError reports a get/update/delete whose target does not exist.
// No state was changed.
type NotFoundError struct {
	Kind    string // record kind, e.g. "student"
	IDOrKey string // the id or natural key that was looked up
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s found with id or key: %s", e.Kind, e.IDOrKey)
}

// CorruptSnapshotError reports a snapshot file that exists but cannot be
// parsed (or violates the collection invariants). Startup aborts on it:
// the operator gets the error and the corrupt file stays on disk for
// diagnosis instead of being silently overwritten with defaults.
type CorruptSnapshotError struct {
	Path string
	Err  error
}

func (e *CorruptSnapshotError) Error() string {
	return fmt.Sprintf("corrupt snapshot at %s: %v", e.Path, e.Err)
}

func (e *CorruptSnapshotError) Unwrap() error { return e.Err }

// PersistenceError reports a failed snapshot write during a mutation. The
// operation it interrupted has been rolled back in memory, so the store
// still matches the last durable snapshot.
type PersistenceError struct {
	Path string
	Op   string // which step failed: "write", "rename", ...
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist snapshot %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
