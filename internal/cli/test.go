package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Scheduler SchedulerOptions
	Profile   string
	Runs      int
	Single    string
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Upload, run and verify in one go",
		Long: `The full integration cycle: upload the local config and environment
profile, then run the scheduler and verify all baselines. With --runs
greater than one the run/verify cycle repeats, which flushes out pipes
whose output is not stable across runs.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.Connect(cmd)
			if err != nil {
				return err
			}
			return runTestCycle(cmd, env, opts)
		},
	}

	opts.Scheduler.register(cmd)
	cmd.Flags().StringVar(&opts.Profile, "profile", "test", "environment profile to upload (<profile>-env.json)")
	cmd.Flags().IntVar(&opts.Runs, "runs", 1, "number of run/verify cycles")
	cmd.Flags().StringVar(&opts.Single, "single", "", "verify only this pipe")

	return cmd
}

func runTestCycle(cmd *cobra.Command, env *Env, opts *TestOptions) error {
	if opts.Runs < 1 {
		return NewExitError(ExitCommandError, "--runs must be at least 1")
	}

	if err := uploadConfig(cmd, env, opts.Profile, false); err != nil {
		return err
	}

	for i := 1; i <= opts.Runs; i++ {
		if opts.Runs > 1 {
			fmt.Fprintf(cmd.OutOrStdout(), "Run %d of %d.\n", i, opts.Runs)
		}
		if err := runScheduler(cmd, env, &opts.Scheduler); err != nil {
			return err
		}
		if err := verifyPipes(cmd, env, opts.Single); err != nil {
			return err
		}
	}
	return nil
}
