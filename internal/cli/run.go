package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pipesync/internal/scheduler"
)

// SchedulerOptions holds the scheduler flags shared by the run and
// test commands.
type SchedulerOptions struct {
	ID            string
	ImageTag      string
	NodeURL       string
	ZeroRuns      int
	PollFrequency int // milliseconds
	RunTimeout    int // seconds, 0 means unbounded
	PrintLog      bool
	Custom        bool
	Keep          bool
}

func (o *SchedulerOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.ID, "scheduler-id", scheduler.DefaultSystemID, "system id of the scheduler microservice")
	f.StringVar(&o.ImageTag, "scheduler-image-tag", scheduler.DefaultImageTag, "scheduler image tag to deploy")
	f.StringVar(&o.NodeURL, "scheduler-node", "", "node url the scheduler connects to (default: the target node)")
	f.IntVar(&o.ZeroRuns, "scheduler-zero-runs", scheduler.DefaultZeroRuns, "consecutive zero-entity runs required before the run settles")
	f.IntVar(&o.PollFrequency, "scheduler-poll-frequency", 5000, "milliseconds between scheduler status polls")
	f.IntVar(&o.RunTimeout, "scheduler-request-timeout", 0, "seconds to wait for the run to settle (0 waits forever)")
	f.BoolVar(&o.PrintLog, "print-scheduler-log", false, "stream the scheduler log while the run progresses")
	f.BoolVar(&o.Custom, "custom-scheduler", false, "use an externally provisioned scheduler")
	f.BoolVar(&o.Keep, "keep-scheduler", false, "leave the scheduler on the node after the run")
}

func (o *SchedulerOptions) config(env *Env) scheduler.Config {
	nodeURL := o.NodeURL
	if nodeURL == "" {
		nodeURL = env.Settings.NodeURL
	}
	return scheduler.Config{
		SystemID:        o.ID,
		NodeURL:         nodeURL,
		Token:           env.Settings.Token,
		ImageTag:        o.ImageTag,
		ZeroRuns:        o.ZeroRuns,
		PollInterval:    time.Duration(o.PollFrequency) * time.Millisecond,
		RunTimeout:      time.Duration(o.RunTimeout) * time.Second,
		CustomScheduler: o.Custom,
		KeepOnExit:      o.Keep,
		PrintLog:        o.PrintLog,
	}
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchedulerOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run all pipes to completion via the scheduler",
		Long: `Deploy the scheduler microservice on the node, reset pipe offsets and
user datasets, and run every pipe until the whole graph settles (a
configurable number of consecutive runs process zero entities). The
scheduler is removed again afterwards unless kept.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := rootOpts.Connect(cmd)
			if err != nil {
				return err
			}
			return runScheduler(cmd, env, opts)
		},
	}

	opts.register(cmd)

	return cmd
}

func runScheduler(cmd *cobra.Command, env *Env, opts *SchedulerOptions) error {
	s := scheduler.New(env.Node, opts.config(env), env.Log)
	s.Out = cmd.OutOrStdout()

	state, err := s.Run(cmd.Context())
	if err != nil {
		// Timeout exhaustion counts as a run failure, same as an
		// explicit failure signal from the agent.
		if state == scheduler.StateFailed || state == scheduler.StateTimedOut {
			return WrapExitError(ExitFailure, "scheduler run failed", err)
		}
		return WrapExitError(ExitCommandError, "scheduler run did not complete", err)
	}
	return nil
}
