package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pipesync/internal/spec"
	"github.com/roach88/pipesync/internal/verify"
)

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	*RootOptions
	Single string
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Store current pipe output as the new baselines",
		Long: `Fetch the current output of every output pipe and store it as the new
expected baseline. Pipes without a test spec get an empty placeholder
spec, and baselines of ignored specs are removed, so the spec set and
the node's pipe set converge.

Inspect the resulting changes with a VCS diff before committing them.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.Connect(cmd)
			if err != nil {
				return err
			}
			return updateBaselines(cmd, env, opts.Single)
		},
	}

	cmd.Flags().StringVar(&opts.Single, "single", "", "update only this pipe")

	return cmd
}

func updateBaselines(cmd *cobra.Command, env *Env, single string) error {
	registry := spec.NewRegistry(expectedDir, env.Log)
	verifier := verify.New(env.Node, registry, env.Log)
	verifier.Single = single

	updated, err := verifier.Update(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "updating baselines failed", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d baselines updated.\n", updated)
	return nil
}
