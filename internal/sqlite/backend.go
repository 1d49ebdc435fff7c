// Package sqlite implements the SQLite storage backend. JSONL files, one per
// kind, are the source of truth; the SQLite database is rebuilt from them on
// every Attach and serves as the query engine. Writes go to SQLite first and
// are then written back to the kind's JSONL file according to the sync
// strategy.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/magsav/internal/sqlstore"
	"github.com/mesh-intelligence/magsav/pkg/types"
)

// dbFile is the database file created in DataDir.
const dbFile = "magsav.db"

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

// Backend implements types.Backend using SQLite as the query engine and
// JSONL files as the source of truth.
type Backend struct {
	mu        sync.RWMutex
	attached  bool
	config    types.Config
	db        *sql.DB
	store     *sqlstore.Store
	registry  *types.Registry
	tables    map[types.Kind]types.Table
	logger    *slog.Logger
	storeOpts []sqlstore.Option

	jsonlMu sync.Mutex // serialises JSONL rewrites

	// Sync strategy state.
	syncStrategy  string
	batchSize     int
	batchInterval time.Duration
	pendingWrites []pendingWrite
	batchTimer    *time.Timer
	batchMu       sync.Mutex // protects pendingWrites and batchTimer
}

// pendingWrite is a deferred JSONL rewrite, used by the on_close and batch
// strategies.
type pendingWrite struct {
	kind    types.Kind
	persist func() error
}

// NewBackend creates a backend for the kinds in registry. It is not
// attached; call Attach with a Config to initialise.
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

// GetTable returns the Table for kind.
// Returns ErrStoreDetached if the backend is not attached and
// ErrTableNotFound if the kind is not registered.
func (b *Backend) GetTable(kind types.Kind) (types.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	table, ok := b.tables[kind]
	if !ok {
		return nil, types.ErrTableNotFound
	}
	return table, nil
}

// Attach initialises the backend: creates DataDir, rebuilds the database
// from the JSONL files and creates table accessors.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.Backend != types.BackendSQLite {
		return fmt.Errorf("%w: sqlite backend cannot attach %q", types.ErrBackendUnknown, config.Backend)
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	config.DataDir = dataDir

	// The database is a cache of the JSONL files; start from scratch.
	dbPath := filepath.Join(dataDir, dbFile)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)

	opts := append([]sqlstore.Option{
		sqlstore.WithRegistry(b.registry),
		sqlstore.WithWriteHook(b.afterWrite),
	}, b.storeOpts...)
	store := sqlstore.New(db, sqlstore.SQLite, opts...)

	ctx := context.Background()
	if err := store.CreateSchema(ctx); err != nil {
		db.Close()
		return err
	}

	b.db = db
	b.store = store
	b.config = config

	b.syncStrategy = config.SQLite.GetSyncStrategy()
	b.batchSize = config.SQLite.GetBatchSize()
	b.batchInterval = time.Duration(config.SQLite.GetBatchInterval()) * time.Second
	b.pendingWrites = nil

	if err := b.initJSONLFiles(dataDir); err != nil {
		db.Close()
		return err
	}
	if err := b.loadAllJSONL(ctx, dataDir); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	if b.syncStrategy == types.SyncBatch && b.batchInterval > 0 {
		b.startBatchTimer()
	}

	for _, kind := range b.registry.Kinds() {
		b.tables[kind] = store.Table(kind)
	}
	b.attached = true
	b.logger.Debug("sqlite backend attached", "data_dir", dataDir, "sync", b.syncStrategy)
	return nil
}

// Detach flushes pending JSONL writes and closes the database. After Detach
// every operation returns ErrStoreDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	b.stopBatchTimer()
	if err := b.flushPendingWrites(); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}

	b.store.Close()
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}

	b.attached = false
	b.tables = make(map[types.Kind]types.Table)
	return nil
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

// afterWrite is the store's write hook: it rewrites the kind's JSONL file
// now or queues the rewrite, depending on the sync strategy.
func (b *Backend) afterWrite(ctx context.Context, kind types.Kind) error {
	if b.shouldPersistImmediately() {
		return b.persistKind(ctx, kind)
	}
	b.queueWrite(kind, func() error {
		return b.persistKind(context.Background(), kind)
	})
	return nil
}

// shouldPersistImmediately reports whether JSONL writes happen on every
// write.
func (b *Backend) shouldPersistImmediately() bool {
	return b.syncStrategy == types.SyncImmediate || b.syncStrategy == ""
}

// queueWrite adds a rewrite to the pending queue. For the batch strategy the
// queue is flushed once it reaches the batch size.
func (b *Backend) queueWrite(kind types.Kind, persist func() error) {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	b.pendingWrites = append(b.pendingWrites, pendingWrite{kind: kind, persist: persist})

	if b.syncStrategy == types.SyncBatch && b.batchSize > 0 && len(b.pendingWrites) >= b.batchSize {
		if err := b.flushPendingWritesLocked(); err != nil {
			b.logger.Warn("batch flush failed", "error", err)
		}
	}
}

// flushPendingWrites runs every queued rewrite.
func (b *Backend) flushPendingWrites() error {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()
	return b.flushPendingWritesLocked()
}

// flushPendingWritesLocked rewrites each queued kind once. The caller must
// hold b.batchMu. On error the queue is kept so the next flush retries.
func (b *Backend) flushPendingWritesLocked() error {
	if len(b.pendingWrites) == 0 {
		return nil
	}
	done := make(map[types.Kind]bool)
	for _, pw := range b.pendingWrites {
		if done[pw.kind] {
			continue
		}
		if err := pw.persist(); err != nil {
			return fmt.Errorf("flush %s: %w", pw.kind, err)
		}
		done[pw.kind] = true
	}
	b.pendingWrites = nil
	return nil
}

// pendingCount returns the number of queued writes.
func (b *Backend) pendingCount() int {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()
	return len(b.pendingWrites)
}

// startBatchTimer starts the periodic flush for the batch strategy.
func (b *Backend) startBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		return
	}
	b.batchTimer = time.AfterFunc(b.batchInterval, func() {
		b.mu.RLock()
		defer b.mu.RUnlock()
		if !b.attached {
			return
		}

		b.batchMu.Lock()
		defer b.batchMu.Unlock()
		if err := b.flushPendingWritesLocked(); err != nil {
			b.logger.Warn("interval flush failed", "error", err)
		}
		if b.batchTimer != nil {
			b.batchTimer.Reset(b.batchInterval)
		}
	})
}

// stopBatchTimer stops the periodic flush if running.
func (b *Backend) stopBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		b.batchTimer.Stop()
		b.batchTimer = nil
	}
}
