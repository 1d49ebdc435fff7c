package types

import "context"

// Persistence writes field changes for one record.
type Persistence interface {
	// Update merges fields into the stored record with the given id. Fields
	// absent from the update are preserved, the stored id never changes and
	// the update timestamp is refreshed.
	Update(ctx context.Context, id string, fields Record) error
}

// RecordSummary is a lookup hit.
type RecordSummary struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Fields Record `json:"fields"`
}

// Directory finds records of a kind that satisfy a criterion.
type Directory interface {
	FindMatching(ctx context.Context, kind Kind, c MatchCriterion) ([]RecordSummary, error)
}

// CacheInvalidator drops cached copies of a shared artifact. Invalidating a
// key that has nothing cached succeeds.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, key string) error
}

// ConfirmRequest is the question put to the user before a bulk update.
type ConfirmRequest struct {
	Kind      Kind
	Criterion MatchCriterion
	Count     int
	Message   string
}

// Confirmer asks the user to approve a bulk update.
type Confirmer interface {
	Confirm(ctx context.Context, req ConfirmRequest) (bool, error)
}

// NoticeLevel is the severity of a user notice.
type NoticeLevel string

// Notice levels.
const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a message surfaced to the user.
type Notice struct {
	Level   NoticeLevel
	Title   string
	Message string
}

// Notifier surfaces notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notice) { f(n) }

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, req ConfirmRequest) (bool, error)

// Confirm calls f(ctx, req).
func (f ConfirmerFunc) Confirm(ctx context.Context, req ConfirmRequest) (bool, error) {
	return f(ctx, req)
}

// PersistenceFunc adapts a function to Persistence.
type PersistenceFunc func(ctx context.Context, id string, fields Record) error

// Update calls f(ctx, id, fields).
func (f PersistenceFunc) Update(ctx context.Context, id string, fields Record) error {
	return f(ctx, id, fields)
}
