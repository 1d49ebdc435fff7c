package types

// Outcome classifies how a propagation request ended.
type Outcome string

// Propagation outcomes.
const (
	OutcomeApplied               Outcome = "applied"
	OutcomeAppliedToSelf         Outcome = "applied_to_self"
	OutcomeRefusedEmptyCriterion Outcome = "refused_empty_criterion"
	OutcomeDeclined              Outcome = "declined"
	OutcomeLookupFailed          Outcome = "lookup_failed"
)

// Failure records one update that did not succeed.
type Failure struct {
	RecordID string `json:"record_id"`
	Message  string `json:"message"`
}

// BulkUpdateResult summarises a propagation batch. Succeeded plus the number
// of failures always equals Attempted.
type BulkUpdateResult struct {
	Kind        Kind           `json:"kind"`
	Criterion   MatchCriterion `json:"criterion"`
	Outcome     Outcome        `json:"outcome"`
	Attempted   int            `json:"attempted"`
	Succeeded   int            `json:"succeeded"`
	Failures    []Failure      `json:"failures,omitempty"`
	Invalidated bool           `json:"invalidated"`

	// Err is set for refused, declined and lookup_failed outcomes.
	Err error `json:"-"`
}

// Consistent reports whether the counts agree with each other and with the
// outcome.
func (r BulkUpdateResult) Consistent() bool {
	if r.Attempted < 0 || r.Succeeded < 0 || r.Succeeded+len(r.Failures) != r.Attempted {
		return false
	}
	switch r.Outcome {
	case OutcomeRefusedEmptyCriterion, OutcomeDeclined, OutcomeLookupFailed:
		return r.Attempted == 0
	case OutcomeAppliedToSelf:
		return r.Attempted == 1
	}
	return true
}

// Failed returns the number of failed updates.
func (r BulkUpdateResult) Failed() int { return len(r.Failures) }
