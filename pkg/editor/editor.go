// Package editor implements the view/edit state machine for one record.
//
// An Editor opens in view mode on a private copy of a record. Toggling into
// edit mode fills one text input per editable field; toggling back commits:
// inputs are coerced to their field types, the local record is updated, the
// mode returns to view at once and the record is persisted in the background.
// A failed persist is reported to the user and the local values are kept.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/mesh-intelligence/magsav/pkg/types"
)

// Observer is told how each background persist ended.
type Observer interface {
	CommitPersisted(kind types.Kind, err error)
}

// Option configures an Editor.
type Option func(*Editor)

// WithNotifier sets where persist failures and warnings are reported.
func WithNotifier(n types.Notifier) Option {
	return func(e *Editor) { e.notifier = n }
}

// WithObserver registers an observer for persist outcomes.
func WithObserver(o Observer) Option {
	return func(e *Editor) { e.observer = o }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) { e.logger = l }
}

// Editor holds one record and its editing state. It is safe for concurrent
// use.
type Editor struct {
	spec     types.KindSpec
	persist  types.Persistence
	notifier types.Notifier
	observer Observer
	logger   *slog.Logger

	mu       sync.Mutex
	mode     types.Mode
	record   types.Record
	original types.Record
	inputs   map[string]string
	saves    []*Save
}

// New opens an editor in view mode on a copy of rec.
func New(spec types.KindSpec, rec types.Record, persist types.Persistence, opts ...Option) *Editor {
	e := &Editor{
		spec:     spec,
		persist:  persist,
		notifier: types.NotifierFunc(func(types.Notice) {}),
		logger:   slog.Default(),
		mode:     types.ModeView,
		record:   rec.Clone(),
		original: rec.Clone(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Kind returns the kind of the record being edited.
func (e *Editor) Kind() types.Kind { return e.spec.Name }

// Spec returns the kind definition the editor was opened with.
func (e *Editor) Spec() types.KindSpec { return e.spec }

// Mode returns the current mode.
func (e *Editor) Mode() types.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Record returns a copy of the current local record.
func (e *Editor) Record() types.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record.Clone()
}

// Original returns a copy of the record as it was when the editor opened.
func (e *Editor) Original() types.Record {
	return e.original.Clone()
}

// ID returns the record identifier, if any.
func (e *Editor) ID() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record.GetString(e.spec.ID())
}

// Input returns the pending text for field. It reports false outside edit
// mode or for fields without an input.
func (e *Editor) Input(field string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.inputs[field]
	return s, ok
}

// Inputs returns a copy of every pending input, or nil in view mode.
func (e *Editor) Inputs() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inputs == nil {
		return nil
	}
	return maps.Clone(e.inputs)
}

// SetInput replaces the pending text for field.
func (e *Editor) SetInput(field, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode != types.ModeEdit {
		return types.ErrNotEditing
	}
	if _, ok := e.inputs[field]; !ok {
		return fmt.Errorf("%w: %s.%s", types.ErrUnknownField, e.spec.Name, field)
	}
	e.inputs[field] = text
	return nil
}

// ToggleMode flips between view and edit. Entering edit mode fills the
// inputs from the record and returns a nil Save. Leaving edit mode commits
// and returns the background save.
func (e *Editor) ToggleMode(ctx context.Context) (*Save, error) {
	e.mu.Lock()
	if e.mode == types.ModeView {
		e.inputs = make(map[string]string)
		for _, f := range e.spec.Editable() {
			v, _ := e.record.Raw(f.Name)
			e.inputs[f.Name] = f.FormatInput(v)
		}
		e.mode = types.ModeEdit
		e.mu.Unlock()
		return nil, nil
	}
	e.mu.Unlock()
	return e.Commit(ctx)
}

// Commit applies the pending inputs, switches to view mode and starts
// persisting the full record. It returns ErrNotEditing in view mode.
func (e *Editor) Commit(ctx context.Context) (*Save, error) {
	e.mu.Lock()
	if e.mode != types.ModeEdit {
		e.mu.Unlock()
		return nil, types.ErrNotEditing
	}
	e.applyInputsLocked()
	snapshot := e.record.Clone()
	s := newSave()
	e.saves = append(e.saves, s)
	e.mu.Unlock()

	id, ok := snapshot.GetString(e.spec.ID())
	if !ok || id == "" {
		e.logger.Warn("commit without record id, not persisted", "kind", e.spec.Name)
		e.notifier.Notify(types.Notice{
			Level:   types.NoticeWarning,
			Title:   "Not saved",
			Message: fmt.Sprintf("This %s has no identifier; changes were kept locally only.", e.spec.Name),
		})
		s.finish(types.ErrMissingID)
		return s, nil
	}
	s.ID = id

	go e.persistSnapshot(ctx, s, id, snapshot)
	return s, nil
}

func (e *Editor) persistSnapshot(ctx context.Context, s *Save, id string, snapshot types.Record) {
	err := e.persist.Update(ctx, id, snapshot)
	if e.observer != nil {
		e.observer.CommitPersisted(e.spec.Name, err)
	}
	if err != nil {
		e.logger.Error("persist failed", "kind", e.spec.Name, "id", id, "error", err)
		e.notifier.Notify(types.Notice{
			Level:   types.NoticeError,
			Title:   "Save failed",
			Message: fmt.Sprintf("Could not save %s %s: %v", e.spec.Name, id, err),
		})
		s.finish(fmt.Errorf("persist %s %s: %w", e.spec.Name, id, err))
		return
	}
	e.logger.Info("record persisted", "kind", e.spec.Name, "id", id)
	s.finish(nil)
}

// Merge applies the pending inputs and returns to view mode without
// persisting. The caller is responsible for writing the record.
func (e *Editor) Merge() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode != types.ModeEdit {
		return types.ErrNotEditing
	}
	e.applyInputsLocked()
	return nil
}

// Discard drops the pending inputs and returns to view mode. The record is
// left as it was before entering edit mode.
func (e *Editor) Discard() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode != types.ModeEdit {
		return types.ErrNotEditing
	}
	e.inputs = nil
	e.mode = types.ModeView
	return nil
}

// ChangedFields lists the fields whose value differs from the record at
// open, in record order. Fields removed since open come last.
func (e *Editor) ChangedFields() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, k := range e.record.Keys() {
		cur, _ := e.record.Raw(k)
		was, _ := e.original.Raw(k)
		if !types.ValuesEqual(cur, was) {
			out = append(out, k)
		}
	}
	for _, k := range e.original.Keys() {
		if !e.record.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Wait blocks until every save started by this editor has finished and
// returns their joined errors.
func (e *Editor) Wait() error {
	e.mu.Lock()
	saves := append([]*Save(nil), e.saves...)
	e.mu.Unlock()
	var errs []error
	for _, s := range saves {
		if err := s.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// applyInputsLocked coerces each input into the record and leaves edit mode.
// Inputs that do not parse keep the prior value.
func (e *Editor) applyInputsLocked() {
	for _, f := range e.spec.Editable() {
		text, ok := e.inputs[f.Name]
		if !ok {
			continue
		}
		v, ok := f.Coerce(text)
		if !ok {
			if text != "" {
				e.logger.Debug("input ignored", "kind", e.spec.Name, "field", f.Name, "input", text)
			}
			continue
		}
		if prev, had := e.record.Raw(f.Name); had && types.ValuesEqual(prev, v) {
			continue
		}
		if f.Type == types.FieldText && v == types.String("") && !e.record.Has(f.Name) {
			continue
		}
		e.record.Set(f.Name, v)
	}
	e.inputs = nil
	e.mode = types.ModeView
}
