// Package propagation applies one record's edits to every similar record.
//
// Similar records are those a Directory returns for a MatchCriterion. The
// edit is narrowed to its shared projection before being fanned out, so
// instance-unique fields stay with the records they belong to. Each update
// is independent: a failure is recorded in the BulkUpdateResult and never
// aborts the rest of the batch.
package propagation
