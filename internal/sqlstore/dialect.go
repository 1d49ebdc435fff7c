package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Name string

	// Dollar selects $1, $2, ... placeholders instead of ?.
	Dollar bool

	// FieldsType is the column type of the fields document.
	FieldsType string
}

// Supported dialects.
var (
	SQLite   = Dialect{Name: "sqlite", FieldsType: "TEXT"}
	Postgres = Dialect{Name: "postgres", Dollar: true, FieldsType: "JSONB"}
)

// Rebind rewrites ? placeholders for the dialect. Queries in this package
// never carry a literal question mark.
func (d Dialect) Rebind(query string) string {
	if !d.Dollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Schema returns the DDL statements creating the records table.
func (d Dialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS records (
    record_id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    fields ` + d.FieldsType + ` NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_records_kind ON records (kind)`,
	}
}
