package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pipesync/internal/spec"
	"github.com/roach88/pipesync/internal/verify"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Single string
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare current pipe output against recorded baselines",
		Long: `Compare the current output of every output pipe against the recorded
baseline in expected/, as configured by the *.test.json specs.

Exit code 1 means at least one spec failed; details are listed per
failing spec.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.Connect(cmd)
			if err != nil {
				return err
			}
			return verifyPipes(cmd, env, opts.Single)
		},
	}

	cmd.Flags().StringVar(&opts.Single, "single", "", "verify only this pipe")

	return cmd
}

func verifyPipes(cmd *cobra.Command, env *Env, single string) error {
	registry := spec.NewRegistry(expectedDir, env.Log)
	verifier := verify.New(env.Node, registry, env.Log)
	verifier.Single = single

	summary, err := verifier.Verify(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "verification could not run", err)
	}

	out := cmd.OutOrStdout()
	failed := summary.Failed()
	if len(failed) > 0 {
		for _, r := range failed {
			fmt.Fprintf(out, "FAIL %s (%s): %s\n", r.Pipe, r.SpecFile, r.Reason)
		}
		return NewExitError(ExitFailure,
			fmt.Sprintf("verification failed for %d of %d specs", len(failed), summary.Total()))
	}
	fmt.Fprintf(out, "All %d specs verified.\n", summary.Total())
	return nil
}
