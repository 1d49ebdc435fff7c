package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mesh-intelligence/magsav/pkg/types"
)

// initJSONLFiles creates an empty JSONL file for every registered kind that
// has none yet.
func (b *Backend) initJSONLFiles(dataDir string) error {
	for _, kind := range b.registry.Kinds() {
		path := jsonlPath(dataDir, kind)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		f.Close()
	}
	return nil
}

// loadAllJSONL imports every kind's JSONL file into the database. Malformed
// lines and records without an id are skipped; unknown fields are kept.
func (b *Backend) loadAllJSONL(ctx context.Context, dataDir string) error {
	for _, kind := range b.registry.Kinds() {
		recs, err := readRecords(jsonlPath(dataDir, kind))
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			continue
		}
		n, err := b.store.Import(ctx, kind, recs)
		if err != nil {
			return fmt.Errorf("loading %s: %w", kind, err)
		}
		b.logger.Debug("loaded jsonl", "kind", kind, "records", n, "lines", len(recs))
	}
	return nil
}

// persistKind rewrites kind's JSONL file from the database.
func (b *Backend) persistKind(ctx context.Context, kind types.Kind) error {
	b.jsonlMu.Lock()
	defer b.jsonlMu.Unlock()

	recs, err := b.store.List(ctx, kind)
	if err != nil {
		return err
	}
	return writeRecords(jsonlPath(b.config.DataDir, kind), recs)
}
