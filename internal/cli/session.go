package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/magsav/internal/cache"
	"github.com/mesh-intelligence/magsav/internal/kinds"
	"github.com/mesh-intelligence/magsav/internal/paths"
	"github.com/mesh-intelligence/magsav/internal/postgres"
	"github.com/mesh-intelligence/magsav/internal/sqlite"
	"github.com/mesh-intelligence/magsav/pkg/editor"
	"github.com/mesh-intelligence/magsav/pkg/types"
)

// session is an attached backend plus the collaborators commands need.
type session struct {
	registry    *types.Registry
	backend     types.Backend
	invalidator types.CacheInvalidator
	notifier    types.Notifier
	dataDir     string
}

// open loads the kinds, attaches the configured backend and opens the
// cache. The caller must close the session.
func (a *app) open(cmd *cobra.Command) (*session, error) {
	registry, err := kinds.Load(a.settings.KindsFile)
	if err != nil {
		return nil, WrapExitError(ExitUserError, "load kinds", err)
	}
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.settings.DataDir)
	if err != nil {
		return nil, WrapExitError(ExitSysError, "resolve data dir", err)
	}

	var backend types.Backend
	switch a.settings.Backend {
	case types.BackendPostgres:
		backend = postgres.NewBackend(registry, postgres.WithLogger(a.logger))
	default:
		backend = sqlite.NewBackend(registry, sqlite.WithLogger(a.logger))
	}
	sqliteCfg := a.settings.SQLite
	cfg := types.Config{
		Backend: a.settings.Backend,
		DataDir: dataDir,
		DSN:     a.settings.DSN,
		SQLite:  &sqliteCfg,
	}
	if err := backend.Attach(cfg); err != nil {
		return nil, classify("attach backend", err)
	}

	inv, err := cache.Open(cmd.Context(), a.settings.Cache)
	if err != nil {
		_ = backend.Detach()
		return nil, WrapExitError(ExitUserError, "open cache", err)
	}

	return &session{
		registry:    registry,
		backend:     backend,
		invalidator: inv,
		notifier:    newTerminalNotifier(cmd.ErrOrStderr()),
		dataDir:     dataDir,
	}, nil
}

func (s *session) close() error {
	var errs []error
	if err := s.backend.Detach(); err != nil {
		errs = append(errs, err)
	}
	if c, ok := s.invalidator.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// spec looks a kind up, listing the known kinds on failure.
func (s *session) spec(name string) (types.KindSpec, error) {
	spec, err := s.registry.Lookup(types.Kind(name))
	if err != nil {
		known := make([]string, 0, len(s.registry.Kinds()))
		for _, k := range s.registry.Kinds() {
			known = append(known, string(k))
		}
		return types.KindSpec{}, WrapExitError(ExitUserError,
			fmt.Sprintf("valid kinds: %s", strings.Join(known, ", ")), err)
	}
	return spec, nil
}

// get fetches one record.
func (s *session) get(spec types.KindSpec, id string) (types.Record, error) {
	table, err := s.backend.GetTable(spec.Name)
	if err != nil {
		return types.Record{}, classify("get table", err)
	}
	rec, err := table.Get(id)
	if err != nil {
		return types.Record{}, classify(fmt.Sprintf("%s %s", spec.Name, id), err)
	}
	return rec, nil
}

// newEditor opens an editor on rec wired to the session and the app's
// metrics and logger.
func (a *app) newEditor(s *session, spec types.KindSpec, rec types.Record) *editor.Editor {
	return editor.New(spec, rec, s.backend,
		editor.WithNotifier(s.notifier),
		editor.WithObserver(a.recorder),
		editor.WithLogger(a.logger),
	)
}

// assignment is one field=value argument.
type assignment struct {
	field string
	value string
}

func parseAssignments(args []string) ([]assignment, error) {
	out := make([]assignment, 0, len(args))
	for _, arg := range args {
		field, value, ok := strings.Cut(arg, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, NewExitError(ExitUserError, fmt.Sprintf("expected field=value, got %q", arg))
		}
		out = append(out, assignment{field: field, value: value})
	}
	return out, nil
}

// setInputs enters assignments into an editor in edit mode. Values that do
// not fit the field's type are kept as input and reported; committing keeps
// the previous value for them.
func setInputs(ed *editor.Editor, n types.Notifier, assigns []assignment) error {
	spec := ed.Spec()
	for _, as := range assigns {
		if err := ed.SetInput(as.field, as.value); err != nil {
			return WrapExitError(ExitUserError, as.field, err)
		}
		f, _ := spec.Field(as.field)
		if _, ok := f.Coerce(as.value); !ok && strings.TrimSpace(as.value) != "" {
			n.Notify(types.Notice{
				Level:   types.NoticeWarning,
				Title:   "Value ignored",
				Message: fmt.Sprintf("%q is not a valid %s for %s; the previous value is kept.", as.value, f.Type, as.field),
			})
		}
	}
	return nil
}

// withSession opens a session, runs fn and closes the session. A close
// failure is reported only when fn succeeded.
func (a *app) withSession(cmd *cobra.Command, fn func(s *session) error) error {
	s, err := a.open(cmd)
	if err != nil {
		return err
	}
	err = fn(s)
	if cerr := s.close(); cerr != nil {
		a.logger.Error("close storage", "error", cerr)
		if err == nil {
			err = WrapExitError(ExitSysError, "close storage", cerr)
		}
	}
	return err
}
