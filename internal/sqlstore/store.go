// Package sqlstore keeps records of every kind in a single SQL table. Each
// row holds the record's fields as a JSON document next to its id, kind and
// timestamps. The package is shared by the sqlite and postgres backends and
// knows nothing about either driver.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/magsav/pkg/types"
)

// Timestamp fields stamped into every stored record.
const (
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// timeLayout is used for timestamp columns and fields.
const timeLayout = time.RFC3339

// WriteHook runs after a write to kind has been committed.
type WriteHook func(ctx context.Context, kind types.Kind) error

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the UUID v7 generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithRegistry supplies per-kind identifier field names.
func WithRegistry(r *types.Registry) Option {
	return func(s *Store) { s.registry = r }
}

// WithWriteHook registers a hook called after every committed write.
func WithWriteHook(h WriteHook) Option {
	return func(s *Store) { s.hook = h }
}

// Store is a record store over database/sql.
type Store struct {
	db       *sql.DB
	dialect  Dialect
	now      func() time.Time
	newID    func() string
	registry *types.Registry
	hook     WriteHook
	closed   atomic.Bool
}

// New wraps db. The schema is not created; call CreateSchema.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{
		db:      db,
		dialect: dialect,
		now:     time.Now,
		newID:   newUUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newUUID generates a UUID v7, falling back to v4.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// CreateSchema creates the records table if needed.
func (s *Store) CreateSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Close marks the store detached. Later calls return ErrStoreDetached. The
// database handle is left to its owner.
func (s *Store) Close() {
	s.closed.Store(true)
}

func (s *Store) check() error {
	if s.closed.Load() {
		return types.ErrStoreDetached
	}
	return nil
}

// IDField returns the identifier field name for kind.
func (s *Store) IDField(kind types.Kind) string {
	if s.registry != nil {
		if spec, err := s.registry.Lookup(kind); err == nil {
			return spec.ID()
		}
	}
	return types.DefaultIDField
}

func (s *Store) q(query string) string {
	return s.dialect.Rebind(query)
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

// Get returns one record.
func (s *Store) Get(ctx context.Context, kind types.Kind, id string) (types.Record, error) {
	if err := s.check(); err != nil {
		return types.Record{}, err
	}
	if id == "" {
		return types.Record{}, types.ErrInvalidID
	}
	var doc []byte
	err := s.db.QueryRowContext(ctx, s.q(queryGet), string(kind), id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Record{}, types.ErrNotFound
	}
	if err != nil {
		return types.Record{}, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	return decode(doc)
}

// List returns every record of kind, oldest first.
func (s *Store) List(ctx context.Context, kind types.Kind) ([]types.Record, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.q(queryList), string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		rec, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return out, nil
}

// Fetch returns the records of kind whose fields equal every filter value.
// Values compare by their string form with MatchCriterion semantics; a nil
// filter value matches records where the field is absent.
func (s *Store) Fetch(ctx context.Context, kind types.Kind, filter map[string]any) ([]types.Record, error) {
	all, err := s.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		return all, nil
	}
	out := all[:0]
	for _, rec := range all {
		if matchesFilter(rec, filter) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func matchesFilter(rec types.Record, filter map[string]any) bool {
	for field, want := range filter {
		s, ok := types.FormatValue(types.ValueOf(want))
		if !ok {
			if _, present := rec.Get(field); present {
				return false
			}
			continue
		}
		if !(types.MatchCriterion{Field: field, Value: s}).Matches(rec) {
			return false
		}
	}
	return true
}

// FindMatching implements types.Directory.
func (s *Store) FindMatching(ctx context.Context, kind types.Kind, c types.MatchCriterion) ([]types.RecordSummary, error) {
	if c.IsEmpty() {
		return nil, types.ErrEmptyCriterion
	}
	all, err := s.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	idField := s.IDField(kind)
	var out []types.RecordSummary
	for _, rec := range all {
		if !c.Matches(rec) {
			continue
		}
		id, _ := rec.GetString(idField)
		out = append(out, types.RecordSummary{ID: id, Kind: kind, Fields: rec})
	}
	return out, nil
}

// Put creates or replaces a record. An empty id generates one. Replacing
// keeps the original creation time.
func (s *Store) Put(ctx context.Context, kind types.Kind, id string, rec types.Record) (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	if id == "" {
		id = s.newID()
	}
	now := s.timestamp()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stored, err := lookup(ctx, tx, s.q(queryLookup), id)
	switch {
	case errors.Is(err, types.ErrNotFound):
		stored = nil
	case err != nil:
		return "", err
	case stored.kind != kind:
		return "", fmt.Errorf("%w: %s belongs to %s", types.ErrInvalidID, id, stored.kind)
	}

	out := rec.Clone()
	out.Set(s.IDField(kind), types.String(id))
	created := now
	if stored != nil {
		created = stored.createdAt
	}
	out.Set(FieldCreatedAt, types.String(created))
	out.Set(FieldUpdatedAt, types.String(now))
	doc, err := encode(out)
	if err != nil {
		return "", err
	}

	if stored == nil {
		_, err = tx.ExecContext(ctx, s.q(queryInsert), id, string(kind), doc, created, now)
	} else {
		_, err = tx.ExecContext(ctx, s.q(queryReplace), doc, now, id)
	}
	if err != nil {
		return "", fmt.Errorf("put %s %s: %w", kind, id, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, s.afterWrite(ctx, kind)
}

// Update implements types.Persistence: fields are merged into the stored
// record, the stored id and creation time never change and updated_at is
// refreshed.
func (s *Store) Update(ctx context.Context, id string, fields types.Record) error {
	if err := s.check(); err != nil {
		return err
	}
	if id == "" {
		return types.ErrInvalidID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stored, err := lookup(ctx, tx, s.q(queryLookup), id)
	if err != nil {
		return err
	}
	idField := s.IDField(stored.kind)
	now := s.timestamp()
	for _, k := range fields.Keys() {
		if k == idField || k == FieldCreatedAt {
			continue
		}
		v, _ := fields.Raw(k)
		stored.fields.Set(k, v)
	}
	stored.fields.Set(idField, types.String(id))
	stored.fields.Set(FieldUpdatedAt, types.String(now))
	doc, err := encode(stored.fields)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.q(queryReplace), doc, now, id); err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return s.afterWrite(ctx, stored.kind)
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, kind types.Kind, id string) error {
	if err := s.check(); err != nil {
		return err
	}
	if id == "" {
		return types.ErrInvalidID
	}
	res, err := s.db.ExecContext(ctx, s.q(queryDelete), string(kind), id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return s.afterWrite(ctx, kind)
}

// Import inserts records as they are, skipping ids already present and
// records without an id. It does not run the write hook. It returns the
// number of rows inserted.
func (s *Store) Import(ctx context.Context, kind types.Kind, recs []types.Record) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.q(queryImport))
	if err != nil {
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	idField := s.IDField(kind)
	now := s.timestamp()
	inserted := 0
	for _, rec := range recs {
		id, ok := rec.GetString(idField)
		if !ok || id == "" {
			continue
		}
		created := stringOr(rec, FieldCreatedAt, now)
		updated := stringOr(rec, FieldUpdatedAt, created)
		doc, err := encode(rec)
		if err != nil {
			continue
		}
		res, err := stmt.ExecContext(ctx, id, string(kind), doc, created, updated)
		if err != nil {
			return inserted, fmt.Errorf("import %s %s: %w", kind, id, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("commit import: %w", err)
	}
	return inserted, nil
}

func (s *Store) afterWrite(ctx context.Context, kind types.Kind) error {
	if s.hook == nil {
		return nil
	}
	if err := s.hook(ctx, kind); err != nil {
		return fmt.Errorf("after write %s: %w", kind, err)
	}
	return nil
}

type storedRow struct {
	kind      types.Kind
	fields    types.Record
	createdAt string
}

func lookup(ctx context.Context, tx *sql.Tx, query, id string) (*storedRow, error) {
	var (
		kind    string
		doc     []byte
		created string
	)
	err := tx.QueryRowContext(ctx, query, id).Scan(&kind, &doc, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", id, err)
	}
	rec, err := decode(doc)
	if err != nil {
		return nil, err
	}
	return &storedRow{kind: types.Kind(kind), fields: rec, createdAt: created}, nil
}

func stringOr(rec types.Record, key, fallback string) string {
	if s, ok := rec.GetString(key); ok && s != "" {
		return s
	}
	return fallback
}

func encode(rec types.Record) (string, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	return string(b), nil
}

func decode(doc []byte) (types.Record, error) {
	var rec types.Record
	if err := json.Unmarshal(doc, &rec); err != nil {
		return types.Record{}, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	return rec, nil
}
