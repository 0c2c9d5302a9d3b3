package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pipesync/internal/archive"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Compare local config with the node config",
		Long: `Compare the local pipes/ and systems/ config files with the node's
current configuration, file by file. Exit code 1 means the two are not
in sync; every divergent file is listed with a diff where the content
differs.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := rootOpts.Connect(cmd)
			if err != nil {
				return err
			}
			return reportStatus(cmd, env)
		},
	}

	return cmd
}

func reportStatus(cmd *cobra.Command, env *Env) error {
	local, err := archive.Build(".")
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot collect local config", err)
	}

	zipData, err := env.Node.GetConfigZip(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot download node config", err)
	}
	remote, err := archive.FromZip(zipData)
	if err != nil {
		return WrapExitError(ExitCommandError, "node config zip is malformed", err)
	}

	inSync, divergences := archive.Compare(local, remote)
	out := cmd.OutOrStdout()
	if inSync {
		fmt.Fprintln(out, "Node config is up-to-date with local config.")
		return nil
	}
	fmt.Fprint(out, archive.Report(divergences))
	return NewExitError(ExitFailure, "local and node config are not in sync")
}
