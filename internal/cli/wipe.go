package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewWipeCommand creates the wipe command.
func NewWipeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Remove all config, environment variables and user datasets from the node",
		Long: `Reset the node to an empty state: replace its configuration with an
empty one, clear its environment variables and delete every dataset
except the platform's own system: datasets.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := rootOpts.Connect(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			env.Log.Info("wiping node config")
			if err := env.Node.PutConfigJSON(ctx, []any{}, true); err != nil {
				return WrapExitError(ExitCommandError, "cannot wipe node config", err)
			}
			env.Log.Info("wiping node environment variables")
			if err := env.Node.PutEnv(ctx, map[string]any{}); err != nil {
				return WrapExitError(ExitCommandError, "cannot wipe node environment", err)
			}
			env.Log.Info("removing user datasets")
			if err := env.Node.RemoveUserDatasets(ctx); err != nil {
				return WrapExitError(ExitCommandError, "cannot remove user datasets", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Node wiped.")
			return nil
		},
	}

	return cmd
}
