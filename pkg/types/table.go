package types

import "errors"

// Table provides uniform CRUD operations over the records of one kind.
type Table interface {
	// Get retrieves the record with the given ID.
	// Returns ErrNotFound if no record of this kind has that ID.
	Get(id string) (Record, error)

	// Set creates or replaces a record. When id is empty a new UUID v7 is
	// generated. Returns the ID used (generated or provided).
	Set(id string, rec Record) (string, error)

	// Delete removes the record with the given ID.
	// Returns ErrNotFound if no record of this kind has that ID.
	Delete(id string) error

	// Fetch returns every record whose fields equal the filter values.
	// An empty filter returns every record of the kind.
	Fetch(filter map[string]any) ([]Record, error)
}

// Table operation errors.
var (
	ErrNotFound    = errors.New("record not found")
	ErrInvalidID   = errors.New("invalid record ID")
	ErrInvalidData = errors.New("invalid record data")
)

// Editing and propagation errors.
var (
	ErrNotEditing       = errors.New("editor is not in edit mode")
	ErrUnknownField     = errors.New("unknown or read-only field")
	ErrMissingID        = errors.New("record has no identifier")
	ErrUnknownKind      = errors.New("unknown entity kind")
	ErrUnknownCriterion = errors.New("unknown match criterion")
	ErrInvalidKind      = errors.New("invalid entity kind definition")
	ErrEmptyCriterion   = errors.New("match criterion value is empty")
	ErrDeclined         = errors.New("propagation declined")
)
