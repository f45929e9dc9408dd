// Package cli implements the snip command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/snip/internal/paths"
	"github.com/mesh-intelligence/snip/internal/sqlite"
	"github.com/mesh-intelligence/snip/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	plain     bool
	verbose   bool
}

// app is the state shared by the commands of one invocation. It is filled
// by the root PersistentPreRunE.
type app struct {
	flags     rootFlags
	configDir string
	dataDir   string
	cfg       *viper.Viper
	logger    *slog.Logger
	closeLog  io.Closer
}

// NewRootCmd creates the top-level "snip" command with global flags and all
// subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: slog.New(slog.DiscardHandler)}

	root := &cobra.Command{
		Use:   "snip",
		Short: "An indexed code snippet store with Gist sync",
		Long: "snip keeps code snippets in a local store indexed by language, tag and date,\n" +
			"and synchronizes them with a GitHub Gist.",
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	pf.BoolVar(&a.flags.plain, "plain", false, "disable colours and styling")
	pf.BoolVar(&a.flags.verbose, "verbose", false, "also write debug logs to stderr")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newAddCmd(a),
		newShellCmd(a),
		newEditCmd(a),
		newDeleteCmd(a),
		newViewCmd(a),
		newListCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newSyncCmd(a),
		newStatsCmd(a),
		newClearCmd(a),
		newConfigCmd(a),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
// An interrupt cancels the command context, which stops a sync between
// actions.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "snip:", err)
		os.Exit(ExitCode(err))
	}
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	var ce *codedError
	switch {
	case err == nil:
		return exitSuccess
	case errors.As(err, &ce):
		return ce.code
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrSchemaMismatch),
		errors.Is(err, types.ErrInvalidSnippet),
		errors.Is(err, types.ErrInvalidFilter),
		errors.Is(err, types.ErrInvalidMode),
		errors.Is(err, types.ErrIDConflict),
		errors.Is(err, types.ErrTokenMissing),
		errors.Is(err, types.ErrWorkersInvalid),
		errors.Is(err, errDeclined),
		errors.Is(err, errNeedsForce):
		return exitUserError
	case errors.Is(err, types.ErrStorageFailure),
		errors.Is(err, types.ErrRemoteFailure):
		return exitSysError
	}
	return exitSysError
}

// codedError pins an exit code on an error.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

// userError marks err as caused by the invocation rather than the system.
func userError(format string, args ...any) error {
	return &codedError{code: exitUserError, err: fmt.Errorf(format, args...)}
}

// setup resolves directories, loads config.yaml and opens the log file.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	a.configDir, a.dataDir, a.cfg = configDir, dataDir, cfg

	logger, closer, err := newLogger(logPath(cfg, dataDir), a.flags.verbose, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	a.logger, a.closeLog = logger, closer
	a.logger.Debug("command started", "command", cmd.CommandPath(), "config_dir", configDir, "data_dir", dataDir)
	return nil
}

func (a *app) teardown() error {
	if a.closeLog == nil {
		return nil
	}
	err := a.closeLog.Close()
	a.closeLog = nil
	return err
}

// openStore attaches the SQLite backend in the resolved data directory.
// The caller must Detach it.
func (a *app) openStore() (*sqlite.Backend, error) {
	cfg := types.Config{
		Backend: types.BackendSQLite,
		DataDir: a.dataDir,
	}
	backend := sqlite.NewBackend()
	if err := backend.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach store: %w", err)
	}
	return backend, nil
}

// printer returns an output writer for cmd honouring --json and --plain.
func (a *app) printer(cmd *cobra.Command) *printer {
	return newPrinter(cmd.OutOrStdout(), a.flags.jsonMode, a.flags.plain)
}
