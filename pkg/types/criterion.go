package types

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MatchCriterion selects "similar" records: those whose Field equals Value.
type MatchCriterion struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// IsEmpty reports whether the criterion value is blank. An empty criterion
// must never reach a directory lookup.
func (c MatchCriterion) IsEmpty() bool {
	return strings.TrimSpace(c.Value) == ""
}

// Normalized returns the comparison form of the value.
func (c MatchCriterion) Normalized() string {
	return normalizeMatch(c.Value)
}

// Matches reports whether rec carries the criterion value in Field. Values
// are compared after trimming and NFC normalisation; case matters.
func (c MatchCriterion) Matches(rec Record) bool {
	if c.IsEmpty() {
		return false
	}
	s, ok := rec.GetString(c.Field)
	if !ok {
		return false
	}
	return normalizeMatch(s) == c.Normalized()
}

// String renders the criterion as field=value.
func (c MatchCriterion) String() string {
	return c.Field + "=" + c.Value
}

func normalizeMatch(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
