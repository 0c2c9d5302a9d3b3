package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/pipesync/internal/archive"
)

// dumpFileName is where dump (and upload --dump) write the config zip.
const dumpFileName = "pipesync-config.zip"

// UploadOptions holds flags for the upload command.
type UploadOptions struct {
	*RootOptions
	Profile string
	Dump    bool
}

// NewUploadCommand creates the upload command.
func NewUploadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UploadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Replace node config with the local config",
		Long: `Replace the node's environment variables with the <profile>-env.json
profile and its configuration with the local pipes/ and systems/ config
files, forcing the replace even when the node reports conflicts.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.Connect(cmd)
			if err != nil {
				return err
			}
			return uploadConfig(cmd, env, opts.Profile, opts.Dump)
		},
	}

	cmd.Flags().StringVar(&opts.Profile, "profile", "test", "environment profile to upload (<profile>-env.json)")
	cmd.Flags().BoolVar(&opts.Dump, "dump", false, "also write the uploaded config zip to "+dumpFileName)

	return cmd
}

func uploadConfig(cmd *cobra.Command, env *Env, profile string, dump bool) error {
	envFile := profile + "-env.json"
	data, err := os.ReadFile(envFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot read environment profile "+envFile, err)
	}
	var vars map[string]any
	if err := json.Unmarshal(data, &vars); err != nil {
		return WrapExitError(ExitCommandError, "malformed environment profile "+envFile, err)
	}

	a, err := archive.Build(".")
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot collect local config", err)
	}
	if a.Len() == 0 {
		return NewExitError(ExitCommandError, "no config files found - is this a project directory?")
	}
	zipData, err := a.Zip()
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot pack local config", err)
	}
	if dump {
		if err := os.WriteFile(dumpFileName, zipData, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "cannot write "+dumpFileName, err)
		}
	}

	ctx := cmd.Context()
	env.Log.Info("uploading environment profile", "profile", profile)
	if err := env.Node.PutEnv(ctx, vars); err != nil {
		return WrapExitError(ExitCommandError, "cannot replace node environment", err)
	}
	env.Log.Info("uploading config", "files", a.Len())
	if err := env.Node.PutConfigZip(ctx, zipData, true); err != nil {
		return WrapExitError(ExitCommandError, "cannot replace node config", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Node config replaced with %d local config files.\n", a.Len())
	return nil
}
