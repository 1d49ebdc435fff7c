// Package postgres provides a Postgres-backed record store. Records live in a
// single table with a JSONB document per record; there are no JSONL files.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/mesh-intelligence/magsav/internal/sqlstore"
	"github.com/mesh-intelligence/magsav/pkg/types"
)

const driverName = "pgx"

// sqlOpen is replaced in tests.
var sqlOpen = sql.Open

var _ types.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// WithStoreOptions passes options through to the record store.
func WithStoreOptions(opts ...sqlstore.Option) Option {
	return func(b *Backend) { b.storeOpts = append(b.storeOpts, opts...) }
}

// Backend implements types.Backend on Postgres.
type Backend struct {
	mu        sync.RWMutex
	attached  bool
	db        *sql.DB
	store     *sqlstore.Store
	registry  *types.Registry
	tables    map[types.Kind]types.Table
	logger    *slog.Logger
	storeOpts []sqlstore.Option
}

// NewBackend creates a backend for the kinds in registry. Call Attach to
// connect.
func NewBackend(registry *types.Registry, opts ...Option) *Backend {
	b := &Backend{
		registry: registry,
		tables:   make(map[types.Kind]types.Table),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach connects to config.DSN and creates the schema if needed.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.Backend != types.BackendPostgres {
		return fmt.Errorf("%w: postgres backend cannot attach %q", types.ErrBackendUnknown, config.Backend)
	}

	db, err := sqlOpen(driverName, config.DSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}

	opts := append([]sqlstore.Option{sqlstore.WithRegistry(b.registry)}, b.storeOpts...)
	store := sqlstore.New(db, sqlstore.Postgres, opts...)
	if err := store.CreateSchema(ctx); err != nil {
		db.Close()
		return err
	}

	b.db = db
	b.store = store
	for _, kind := range b.registry.Kinds() {
		b.tables[kind] = store.Table(kind)
	}
	b.attached = true
	b.logger.Debug("postgres backend attached")
	return nil
}

// Detach closes the connection pool. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.store.Close()
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("close postgres: %w", err)
	}
	b.db = nil
	b.attached = false
	b.tables = make(map[types.Kind]types.Table)
	return nil
}

// GetTable returns the Table for kind.
func (b *Backend) GetTable(kind types.Kind) (types.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	t, ok := b.tables[kind]
	if !ok {
		return nil, types.ErrTableNotFound
	}
	return t, nil
}

// Update implements types.Persistence.
func (b *Backend) Update(ctx context.Context, id string, fields types.Record) error {
	store, err := b.current()
	if err != nil {
		return err
	}
	return store.Update(ctx, id, fields)
}

// FindMatching implements types.Directory.
func (b *Backend) FindMatching(ctx context.Context, kind types.Kind, c types.MatchCriterion) ([]types.RecordSummary, error) {
	store, err := b.current()
	if err != nil {
		return nil, err
	}
	if !b.registry.Has(kind) {
		return nil, types.ErrTableNotFound
	}
	return store.FindMatching(ctx, kind, c)
}

func (b *Backend) current() (*sqlstore.Store, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return b.store, nil
}
