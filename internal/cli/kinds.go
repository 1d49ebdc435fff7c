package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/magsav/pkg/types"
)

func newKindsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds [kind]",
		Short: "List entity kinds, or the fields of one kind",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(s *session) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					spec, err := s.spec(args[0])
					if err != nil {
						return err
					}
					if a.flags.jsonMode {
						return writeJSON(out, spec)
					}
					printKind(cmd, spec)
					return nil
				}

				specs := make([]types.KindSpec, 0, len(s.registry.Kinds()))
				for _, k := range s.registry.Kinds() {
					spec, _ := s.registry.Lookup(k)
					specs = append(specs, spec)
				}
				if a.flags.jsonMode {
					return writeJSON(out, specs)
				}
				for _, spec := range specs {
					names := make([]string, len(spec.Criteria))
					for i, c := range spec.Criteria {
						names[i] = c.Name
					}
					fmt.Fprintf(out, "%-16s %3d fields  criteria: %s\n", spec.Name, len(spec.Fields), strings.Join(names, ", "))
				}
				return nil
			})
		},
	}
}

func printKind(cmd *cobra.Command, spec types.KindSpec) {
	out := cmd.OutOrStdout()
	unique := make(map[string]bool)
	for _, f := range spec.UniqueFields() {
		unique[f] = true
	}
	fmt.Fprintf(out, "%s (id: %s)\n", spec.Name, spec.ID())
	for _, f := range spec.Fields {
		var notes []string
		if f.ReadOnly {
			notes = append(notes, "read-only")
		}
		if unique[f.Name] {
			notes = append(notes, "per-record")
		}
		if f.Name == spec.SharedArtifact {
			notes = append(notes, "shared artifact")
		}
		if len(f.Choices) > 0 {
			notes = append(notes, strings.Join(f.Choices, "|"))
		}
		fmt.Fprintf(out, "  %-28s %-8s %s\n", f.Name, f.Type, strings.Join(notes, ", "))
	}
	for _, c := range spec.Criteria {
		fmt.Fprintf(out, "  criterion %s: %s\n", c.Name, strings.Join(c.Fields, " or "))
	}
}
