package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize magsav storage",
		Long:  "Create the configuration and data directories, then initialize the storage backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			if err := s.close(); err != nil {
				return WrapExitError(ExitSysError, "finalize storage", err)
			}
			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return writeJSON(out, map[string]string{
					"config_dir": a.configDir,
					"data_dir":   s.dataDir,
					"backend":    a.settings.Backend,
				})
			}
			fmt.Fprintln(out, "magsav initialized")
			fmt.Fprintf(out, "  config: %s\n  data:   %s\n", a.configDir, s.dataDir)
			return nil
		},
	}
}
