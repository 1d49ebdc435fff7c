// Package projection computes the part of an edited record that may be
// copied onto similar records. Instance-unique fields (identifiers, serial
// numbers, QR codes, timestamps) never leave the record they belong to.
package projection

import (
	"slices"

	"github.com/mesh-intelligence/magsav/pkg/types"
)

// Policy is a set of instance-unique field names. The zero Policy excludes
// nothing.
type Policy struct {
	exclude map[string]struct{}
}

// New returns a policy excluding the given fields.
func New(fields ...string) Policy {
	p := Policy{exclude: make(map[string]struct{}, len(fields))}
	for _, f := range fields {
		p.exclude[f] = struct{}{}
	}
	return p
}

// ForKind returns the policy for a kind: its instance-unique fields plus its
// identifier field.
func ForKind(spec types.KindSpec) Policy {
	return New(spec.UniqueFields()...)
}

// Excludes reports whether field is instance-unique.
func (p Policy) Excludes(field string) bool {
	_, ok := p.exclude[field]
	return ok
}

// Fields returns the excluded field names, sorted.
func (p Policy) Fields() []string {
	out := make([]string, 0, len(p.exclude))
	for f := range p.exclude {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Project returns a copy of rec without the instance-unique fields. The input
// is not modified and Project(Project(r)) equals Project(r).
func (p Policy) Project(rec types.Record) types.Record {
	out := rec.Clone()
	for f := range p.exclude {
		out.Delete(f)
	}
	return out
}
