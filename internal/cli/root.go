// Package cli implements the magsav command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/magsav/internal/metrics"
	"github.com/mesh-intelligence/magsav/internal/paths"
)

// Exit codes.
const (
	ExitSuccess   = 0
	ExitUserError = 1
	ExitSysError  = 2
)

// rootFlags holds global flag values.
type rootFlags struct {
	configDir       string
	dataDir         string
	jsonMode        bool
	metricsTextfile string
}

// app is the state shared by the commands of one invocation.
type app struct {
	flags     rootFlags
	configDir string
	settings  settings
	logger    *slog.Logger
	recorder  *metrics.Recorder
}

// NewRootCmd creates the top-level "magsav" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	root, _ := newRoot()
	return root
}

func newRoot() (*cobra.Command, *app) {
	a := &app{
		logger:   slog.Default(),
		recorder: metrics.New(),
	}
	root := &cobra.Command{
		Use:   "magsav",
		Short: "View, edit and propagate business records",
		Long: "magsav keeps inventory-like records (equipment, vehicles, personnel, clients,\n" +
			"contracts, suppliers, service tickets). Records can be edited one at a time or\n" +
			"an edit can be propagated to every similar record.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	pf.StringVar(&a.flags.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newKindsCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newCreateCmd(a),
		newEditCmd(a),
		newPropagateCmd(a),
		newDeleteCmd(a),
	)
	return root, a
}

// Execute runs the command line and returns the process exit code.
func Execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root, a := newRoot()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := root.ExecuteContext(ctx)
	if a.flags.metricsTextfile != "" {
		if werr := a.recorder.WriteTextfile(a.flags.metricsTextfile); werr != nil {
			a.logger.Error("metrics not written", "path", a.flags.metricsTextfile, "error", werr)
		}
	}
	if err != nil {
		fmt.Fprintln(stderr, "magsav:", err)
		return ExitCode(err)
	}
	return ExitSuccess
}

// setup loads configuration and installs the logger. The version command
// needs neither.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	dir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return WrapExitError(ExitSysError, "resolve config dir", err)
	}
	s, err := loadSettings(dir)
	if err != nil {
		return WrapExitError(ExitUserError, "load config", err)
	}
	logger, err := newLogger(cmd.ErrOrStderr(), s.LogLevel, s.LogFormat)
	if err != nil {
		return WrapExitError(ExitUserError, "configure logging", err)
	}
	a.configDir = dir
	a.settings = s
	a.logger = logger
	return nil
}
