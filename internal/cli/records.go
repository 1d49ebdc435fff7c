package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/magsav/internal/view"
	"github.com/mesh-intelligence/magsav/pkg/types"
)

func newListCmd(a *app) *cobra.Command {
	var (
		where   []string
		columns []string
	)
	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List records of a kind",
		Long:  "List records of a kind, optionally filtered with --where field=value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := parseAssignments(where)
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(s *session) error {
				spec, err := s.spec(args[0])
				if err != nil {
					return err
				}
				filter := make(map[string]any, len(filters))
				for _, f := range filters {
					filter[f.field] = f.value
				}
				table, err := s.backend.GetTable(spec.Name)
				if err != nil {
					return classify("get table", err)
				}
				recs, err := table.Fetch(filter)
				if err != nil {
					return classify(fmt.Sprintf("list %s", spec.Name), err)
				}

				if a.flags.jsonMode {
					if recs == nil {
						recs = []types.Record{}
					}
					return writeJSON(cmd.OutOrStdout(), recs)
				}
				return view.List(cmd.OutOrStdout(), spec, recs, columns...)
			})
		},
	}
	cmd.Flags().StringArrayVar(&where, "where", nil, "filter as field=value (repeatable)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to show (default: id and the first fields)")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <kind> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(s *session) error {
				spec, err := s.spec(args[0])
				if err != nil {
					return err
				}
				rec, err := s.get(spec, args[1])
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), rec)
				}
				return view.Record(cmd.OutOrStdout(), spec, types.ModeView, rec, nil)
			})
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "create <kind> [field=value...]",
		Short: "Create a record",
		Long: "Create a record from field=value pairs. Values are read the same way\n" +
			"as edit input but must all be valid. An id is generated unless --id is given.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assigns, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(s *session) error {
				spec, err := s.spec(args[0])
				if err != nil {
					return err
				}
				rec, err := buildRecord(cmd.Context(), a, s, spec, assigns)
				if err != nil {
					return err
				}
				table, err := s.backend.GetTable(spec.Name)
				if err != nil {
					return classify("get table", err)
				}
				newID, err := table.Set(strings.TrimSpace(id), rec)
				if err != nil {
					return classify(fmt.Sprintf("create %s", spec.Name), err)
				}

				out := cmd.OutOrStdout()
				if a.flags.jsonMode {
					stored, err := table.Get(newID)
					if err != nil {
						return classify(fmt.Sprintf("%s %s", spec.Name, newID), err)
					}
					return writeJSON(out, stored)
				}
				fmt.Fprintln(out, newID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "record id (default: generated)")
	return cmd
}

// buildRecord fills a new record through an editor so created records are
// coerced exactly like edited ones. Unlike edit, invalid values are errors.
func buildRecord(ctx context.Context, a *app, s *session, spec types.KindSpec, assigns []assignment) (types.Record, error) {
	for _, as := range assigns {
		f, ok := spec.Field(as.field)
		if !ok || f.ReadOnly {
			return types.Record{}, WrapExitError(ExitUserError, as.field,
				fmt.Errorf("%w: %s.%s", types.ErrUnknownField, spec.Name, as.field))
		}
		if _, ok := f.Coerce(as.value); !ok {
			return types.Record{}, NewExitError(ExitUserError,
				fmt.Sprintf("%s: %q is not a valid %s", as.field, as.value, f.Type))
		}
	}
	ed := a.newEditor(s, spec, types.Record{})
	if _, err := ed.ToggleMode(ctx); err != nil {
		return types.Record{}, WrapExitError(ExitSysError, "open editor", err)
	}
	for _, as := range assigns {
		if err := ed.SetInput(as.field, as.value); err != nil {
			return types.Record{}, WrapExitError(ExitUserError, as.field, err)
		}
	}
	if err := ed.Merge(); err != nil {
		return types.Record{}, WrapExitError(ExitSysError, "apply input", err)
	}
	return ed.Record(), nil
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(s *session) error {
				spec, err := s.spec(args[0])
				if err != nil {
					return err
				}
				table, err := s.backend.GetTable(spec.Name)
				if err != nil {
					return classify("get table", err)
				}
				if err := table.Delete(args[1]); err != nil {
					return classify(fmt.Sprintf("delete %s %s", spec.Name, args[1]), err)
				}
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[1], "kind": string(spec.Name)})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s\n", spec.Name, args[1])
				return nil
			})
		},
	}
}
