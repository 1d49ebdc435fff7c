package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/magsav/internal/view"
)

func newEditCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "edit <kind> <id> field=value...",
		Short: "Edit one record",
		Long: "Edit one record. Each field=value is entered as edit input; values that\n" +
			"cannot be read as the field's type leave the stored value unchanged.\n" +
			"With --dry-run the pending edit is shown and discarded.",
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			assigns, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(s *session) error {
				spec, err := s.spec(args[0])
				if err != nil {
					return err
				}
				rec, err := s.get(spec, args[1])
				if err != nil {
					return err
				}

				ctx := cmd.Context()
				ed := a.newEditor(s, spec, rec)
				if _, err := ed.ToggleMode(ctx); err != nil {
					return WrapExitError(ExitSysError, "open editor", err)
				}
				if err := setInputs(ed, s.notifier, assigns); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if dryRun {
					if a.flags.jsonMode {
						err = writeJSON(out, ed.Inputs())
					} else {
						err = view.Editor(out, ed)
					}
					if derr := ed.Discard(); derr != nil {
						return WrapExitError(ExitSysError, "discard edit", derr)
					}
					return err
				}

				save, err := ed.ToggleMode(ctx)
				if err != nil {
					return WrapExitError(ExitSysError, "commit", err)
				}
				if err := save.Wait(); err != nil {
					return classify(fmt.Sprintf("save %s %s", spec.Name, args[1]), err)
				}
				a.logger.Info("record edited", "kind", spec.Name, "id", args[1], "changed", ed.ChangedFields())

				if a.flags.jsonMode {
					return writeJSON(out, ed.Record())
				}
				return view.Editor(out, ed)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the pending edit without saving")
	return cmd
}
