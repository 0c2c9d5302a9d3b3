package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/pipesync/internal/archive"
	"github.com/roach88/pipesync/internal/scheduler"
)

// DownloadOptions holds flags for the download command.
type DownloadOptions struct {
	*RootOptions
	SchedulerID     string
	CustomScheduler bool
}

// NewDownloadCommand creates the download command.
func NewDownloadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DownloadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Replace local config with the node config",
		Long: `Replace the local pipes/ and systems/ config files with the node's
current configuration. The transient scheduler system is removed from
the node first so it never leaks into local config.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.Connect(cmd)
			if err != nil {
				return err
			}
			return downloadConfig(cmd, env, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SchedulerID, "scheduler-id", scheduler.DefaultSystemID, "system id of the scheduler microservice")
	cmd.Flags().BoolVar(&opts.CustomScheduler, "custom-scheduler", false, "externally provisioned scheduler, do not remove it")

	return cmd
}

func downloadConfig(cmd *cobra.Command, env *Env, opts *DownloadOptions) error {
	ctx := cmd.Context()

	if !opts.CustomScheduler {
		if err := env.Node.RemoveSystem(ctx, opts.SchedulerID); err != nil {
			return WrapExitError(ExitCommandError, "cannot remove scheduler system", err)
		}
	}

	zipData, err := env.Node.GetConfigZip(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot download node config", err)
	}
	remote, err := archive.FromZip(zipData)
	if err != nil {
		return WrapExitError(ExitCommandError, "node config zip is malformed", err)
	}

	// Drop stale local config files so removals on the node propagate.
	local, err := archive.Build(".")
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot collect local config", err)
	}
	for _, name := range local.Names() {
		if _, ok := remote.Read(name); ok {
			continue
		}
		env.Log.Debug("removing local config file absent on node", "file", name)
		if err := os.Remove(filepath.FromSlash(name)); err != nil {
			return WrapExitError(ExitCommandError, "cannot remove stale config file "+name, err)
		}
	}

	if err := remote.ExtractTo("."); err != nil {
		return WrapExitError(ExitCommandError, "cannot write node config locally", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Local config replaced with %d config files from the node.\n", remote.Len())
	return nil
}
