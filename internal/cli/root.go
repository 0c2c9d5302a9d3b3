// Package cli wires the command tree. Commands resolve the node
// connection lazily so local-only commands work without one.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/pipesync/internal/logging"
	"github.com/roach88/pipesync/internal/node"
	"github.com/roach88/pipesync/internal/syncconfig"
)

// expectedDir holds the test specs and recorded baselines, relative to
// the project directory.
const expectedDir = "expected"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Node          string
	JWT           string
	Verbosity     int
	LogFormat     string
	SkipTLSVerify bool
}

// Env is the resolved execution environment handed to command actions.
type Env struct {
	Log      *slog.Logger
	Node     *node.Client
	Settings *syncconfig.Settings
}

// Connect resolves connection settings, moves to the project directory
// when the config file was found in a parent, and builds the node
// client.
func (o *RootOptions) Connect(cmd *cobra.Command) (*Env, error) {
	log := o.Logger(cmd)

	settings, err := syncconfig.Discover(o.Node, o.JWT)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot resolve node connection", err)
	}
	if settings.BaseDir != "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "cannot determine working directory", err)
		}
		if cwd != settings.BaseDir {
			log.Debug("changing to project directory", "dir", settings.BaseDir)
			if err := os.Chdir(settings.BaseDir); err != nil {
				return nil, WrapExitError(ExitCommandError, "cannot change to project directory", err)
			}
		}
	}

	log.Debug("using node", "url", settings.NodeURL)
	return &Env{
		Log:      log,
		Node:     node.New(settings.NodeURL, settings.Token, o.SkipTLSVerify, log),
		Settings: settings,
	}, nil
}

// Logger builds the logger for commands that do not need a node
// connection.
func (o *RootOptions) Logger(cmd *cobra.Command) *slog.Logger {
	return logging.New(cmd.ErrOrStderr(), o.Verbosity, o.LogFormat)
}

// NewRootCommand creates the root command for the pipesync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pipesync",
		Short: "Sync and verify pipe configuration against a platform node",
		Long: `pipesync keeps a local pipe configuration project and a remote
platform node in step: it uploads and downloads configuration, drives
full scheduler runs, and verifies every output pipe's current data
against recorded baselines in the expected/ directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.Node, "node", "", "node url (default from NODE or .syncconfig)")
	pf.StringVar(&opts.JWT, "jwt", "", "bearer token (default from JWT or .syncconfig)")
	pf.CountVarP(&opts.Verbosity, "verbose", "v", "increase verbosity (-v debug, -vv trace)")
	pf.StringVar(&opts.LogFormat, "logformat", logging.FormatShort, "log format (short|log)")
	pf.BoolVar(&opts.SkipTLSVerify, "skip-tls-verification", false, "do not verify the node's TLS certificate")

	cmd.AddCommand(NewUploadCommand(opts))
	cmd.AddCommand(NewDownloadCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewWipeCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
