package propagation

import (
	"context"
	"slices"

	"github.com/mesh-intelligence/magsav/pkg/editor"
	"github.com/mesh-intelligence/magsav/pkg/projection"
	"github.com/mesh-intelligence/magsav/pkg/types"
)

// PropagateFrom propagates the editor's record using the kind's named
// criterion. An editor in edit mode is committed and its save awaited
// before matches are looked up, so the origin is stored even when the edit
// moves it out of the match set. A failed save is reported by the editor and
// does not stop the batch. When the kind's shared artifact field was
// changed, its new value (or the previous one, if it was cleared) is
// invalidated after the batch.
func (e *Engine) PropagateFrom(ctx context.Context, ed *editor.Editor, criterionName string) types.BulkUpdateResult {
	spec := ed.Spec()
	if ed.Mode() == types.ModeEdit {
		save, err := ed.Commit(ctx)
		if err == nil {
			err = save.Wait()
		}
		if err != nil {
			e.logger.Warn("origin not saved before propagation", "kind", spec.Name, "error", err)
		}
	}
	edited := ed.Record()

	crit, err := spec.Criterion(criterionName, edited)
	if err != nil {
		e.logger.Warn("propagation refused", "kind", spec.Name, "error", err)
		e.notifier.Notify(types.Notice{
			Level:   types.NoticeWarning,
			Title:   "Unknown criterion",
			Message: err.Error(),
		})
		return types.BulkUpdateResult{
			Kind:    spec.Name,
			Outcome: types.OutcomeRefusedEmptyCriterion,
			Err:     err,
		}
	}

	id, _ := ed.ID()
	return e.Propagate(ctx, Request{
		Kind:        spec.Name,
		Edited:      edited,
		OriginID:    id,
		Criterion:   crit,
		Policy:      projection.ForKind(spec),
		ArtifactKey: artifactKey(spec, ed, edited),
	})
}

func artifactKey(spec types.KindSpec, ed *editor.Editor, edited types.Record) string {
	field := spec.SharedArtifact
	if field == "" || !slices.Contains(ed.ChangedFields(), field) {
		return ""
	}
	if key, ok := edited.GetString(field); ok && key != "" {
		return key
	}
	key, _ := ed.Original().GetString(field)
	return key
}
