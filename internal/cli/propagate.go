package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/mesh-intelligence/magsav/internal/view"
	"github.com/mesh-intelligence/magsav/pkg/propagation"
	"github.com/mesh-intelligence/magsav/pkg/types"
)

func newPropagateCmd(a *app) *cobra.Command {
	var (
		by  string
		yes bool
	)
	cmd := &cobra.Command{
		Use:   "propagate <kind> <id> [field=value...]",
		Short: "Apply a record's shared fields to every similar record",
		Long: "Optionally edit a record, then copy its shared fields to every record of\n" +
			"the same kind that matches it on the --by criterion. Per-record fields\n" +
			"such as serial numbers are never copied. The number of affected records\n" +
			"is confirmed first unless --yes is given.",
		Args: cobra.MinimumNArgs(2),
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
				if len(assigns) > 0 {
					if _, err := ed.ToggleMode(ctx); err != nil {
						return WrapExitError(ExitSysError, "open editor", err)
					}
					if err := setInputs(ed, s.notifier, assigns); err != nil {
						return err
					}
					// The edited record is saved before the lookup so it still
					// matches when the criterion field itself was changed.
					save, err := ed.ToggleMode(ctx)
					if err != nil {
						return WrapExitError(ExitSysError, "commit", err)
					}
					if err := save.Wait(); err != nil {
						return classify(fmt.Sprintf("save %s %s", spec.Name, args[1]), err)
					}
				}

				engine := propagation.New(s.backend, s.backend,
					propagation.WithInvalidator(s.invalidator),
					propagation.WithConfirmer(newTerminalConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr(), yes)),
					propagation.WithNotifier(s.notifier),
					propagation.WithConcurrency(a.settings.Concurrency),
					propagation.WithRateLimit(rate.Limit(a.settings.Rate), a.settings.Burst),
					propagation.WithObserver(a.recorder),
					propagation.WithLogger(a.logger),
				)
				result := engine.PropagateFrom(ctx, ed, by)

				out := cmd.OutOrStdout()
				if a.flags.jsonMode {
					if err := writeJSON(out, result); err != nil {
						return err
					}
				} else if err := view.Result(out, result); err != nil {
					return err
				}
				return resultError(result)
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "match criterion (see 'magsav kinds <kind>')")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "apply without asking for confirmation")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

// resultError maps a propagation outcome to the command's exit status.
// Declining is not a failure.
func resultError(r types.BulkUpdateResult) error {
	switch r.Outcome {
	case types.OutcomeDeclined:
		return nil
	case types.OutcomeRefusedEmptyCriterion:
		return WrapExitError(ExitUserError, "propagation refused", r.Err)
	case types.OutcomeLookupFailed:
		return classify("lookup similar records", r.Err)
	}
	if n := r.Failed(); n > 0 {
		return WrapExitError(ExitSysError,
			fmt.Sprintf("%d of %d updates failed", n, r.Attempted),
			errors.New(r.Failures[0].Message))
	}
	return nil
}
