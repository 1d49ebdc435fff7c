// Package sqlite provides the public API for the SQLite record backend.
// This package exposes the factory function for creating SQLite backends
// while keeping implementation details internal.
package sqlite

import (
	"github.com/mesh-intelligence/magsav/internal/kinds"
	"github.com/mesh-intelligence/magsav/internal/sqlite"
	"github.com/mesh-intelligence/magsav/pkg/types"
)

// NewBackend creates a new SQLite backend instance for the kinds in
// registry, or for the standard kinds when registry is nil.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend, err := sqlite.NewBackend(nil)
//	if err != nil {
//	    return err
//	}
//	err = backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: "/var/lib/magsav",
//	})
//	defer backend.Detach()
func NewBackend(registry *types.Registry) (types.Backend, error) {
	if registry == nil {
		var err error
		if registry, err = kinds.Default(); err != nil {
			return nil, err
		}
	}
	return sqlite.NewBackend(registry), nil
}
