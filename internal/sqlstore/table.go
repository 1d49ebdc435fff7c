package sqlstore

import (
	"context"

	"github.com/mesh-intelligence/magsav/pkg/types"
)

// Table adapts a Store to types.Table for one kind.
type Table struct {
	store *Store
	kind  types.Kind
}

// Table returns the table for kind.
func (s *Store) Table(kind types.Kind) *Table {
	return &Table{store: s, kind: kind}
}

// Get implements types.Table.
func (t *Table) Get(id string) (types.Record, error) {
	return t.store.Get(context.Background(), t.kind, id)
}

// Set implements types.Table.
func (t *Table) Set(id string, rec types.Record) (string, error) {
	return t.store.Put(context.Background(), t.kind, id, rec)
}

// Delete implements types.Table.
func (t *Table) Delete(id string) error {
	return t.store.Delete(context.Background(), t.kind, id)
}

// Fetch implements types.Table.
func (t *Table) Fetch(filter map[string]any) ([]types.Record, error) {
	return t.store.Fetch(context.Background(), t.kind, filter)
}
