// Package types defines the typed record, entity-kind definitions, the
// collaborator interfaces consumed by the editor and propagation engine,
// the Store and Table interfaces implemented by storage backends, and the
// sentinel errors shared across magsav.
package types
