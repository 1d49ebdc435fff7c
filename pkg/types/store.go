package types

import "errors"

// Store defines backend-agnostic access to record tables.
// Callers attach to a backend, access tables by kind, and detach when done.
type Store interface {
	// GetTable returns the Table for the given kind.
	// Returns ErrTableNotFound if the kind is not registered.
	GetTable(kind Kind) (Table, error)

	// Attach connects the Store to the backend described by config.
	// Returns ErrAlreadyAttached if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	// After Detach, operations on tables return ErrStoreDetached.
	Detach() error
}

// Backend is a Store that also serves as the editor's Persistence and the
// propagation engine's Directory.
type Backend interface {
	Store
	Persistence
	Directory
}

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrTableNotFound   = errors.New("table not found")
)
