// Package scheduler provisions a transient scheduling agent on the
// platform node, drives a full run of every pipe to completion through
// it, and tears the agent down afterwards.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State is the scheduler lifecycle position. Transitions are strictly
// forward; a run ends in exactly one of Succeeded, Failed or TimedOut.
type State int

const (
	StateAbsent State = iota
	StateProvisioned
	StateAwaitingInit
	StateRunning
	StateSucceeded
	StateFailed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateProvisioned:
		return "provisioned"
	case StateAwaitingInit:
		return "awaiting-init"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed-out"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Platform is the subset of the node API the scheduler needs.
// *node.Client implements it.
type Platform interface {
	RemoveSystem(ctx context.Context, systemID string) error
	AddSystem(ctx context.Context, config map[string]any, verify bool, timeout time.Duration) error
	WaitForMicroservice(ctx context.Context, systemID string, timeout time.Duration) (bool, error)
	SystemLog(ctx context.Context, systemID, since string) (string, error)
	ProxyGetJSON(ctx context.Context, systemID, path string, params map[string]string) (any, error)
	ProxyPost(ctx context.Context, systemID, path string, params map[string]string) (string, error)
}

// Config controls one scheduler run.
type Config struct {
	SystemID string // system identifier of the agent on the node
	NodeURL  string // API URL the agent uses to reach the node
	Token    string // bearer token handed to the agent
	ImageTag string // agent image tag

	// ZeroRuns is the number of consecutive runs with zero processed
	// entities required before the run counts as settled.
	ZeroRuns int

	PollInterval     time.Duration // sleep between status polls
	ProvisionTimeout time.Duration // bound on provisioning and init
	RunTimeout       time.Duration // bound on the running phase, 0 means unbounded

	// CustomScheduler means the agent was provisioned out of band; the
	// run neither creates nor removes it.
	CustomScheduler bool
	// KeepOnExit leaves the agent on the node after the run.
	KeepOnExit bool
	// PrintLog streams the agent's log while the run progresses.
	PrintLog bool
}

// Defaults used when the corresponding Config field is zero.
const (
	DefaultSystemID         = "scheduler"
	DefaultImageTag         = "latest"
	DefaultZeroRuns         = 5
	DefaultPollInterval     = 5 * time.Second
	DefaultProvisionTimeout = 300 * time.Second
)

// ProvisionError reports that the agent could not be brought up.
type ProvisionError struct {
	Err error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning scheduler: %v", e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that a lifecycle phase exceeded its bound.
type TimeoutError struct {
	Phase   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("scheduler did not reach %s within %s", e.Phase, e.Timeout)
}

// Scheduler drives one run. Not safe for concurrent use.
type Scheduler struct {
	platform Platform
	cfg      Config
	log      *slog.Logger

	// Out receives streamed agent log lines when PrintLog is set.
	Out io.Writer

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error

	logCursor string
}

// New creates a scheduler, filling in defaults for zero Config fields.
func New(platform Platform, cfg Config, log *slog.Logger) *Scheduler {
	if cfg.SystemID == "" {
		cfg.SystemID = DefaultSystemID
	}
	if cfg.ImageTag == "" {
		cfg.ImageTag = DefaultImageTag
	}
	if cfg.ZeroRuns == 0 {
		cfg.ZeroRuns = DefaultZeroRuns
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ProvisionTimeout == 0 {
		cfg.ProvisionTimeout = DefaultProvisionTimeout
	}
	return &Scheduler{
		platform: platform,
		cfg:      cfg,
		log:      log,
		Out:      io.Discard,
		sleep:    sleepCtx,
	}
}

// Run executes the full lifecycle: provision the agent, wait for it to
// accept work, start the run, poll until it settles, tear down. The
// returned state is terminal; err carries detail for non-success.
func (s *Scheduler) Run(ctx context.Context) (State, error) {
	if !s.cfg.CustomScheduler {
		if err := s.provision(ctx); err != nil {
			return StateAbsent, &ProvisionError{Err: err}
		}
	}

	tornDown := false
	teardown := func() {
		if tornDown || s.cfg.KeepOnExit || s.cfg.CustomScheduler {
			return
		}
		tornDown = true
		// Teardown survives run cancellation.
		if err := s.platform.RemoveSystem(context.WithoutCancel(ctx), s.cfg.SystemID); err != nil {
			s.log.Warn("failed to remove scheduler system", "system", s.cfg.SystemID, "error", err)
		}
	}
	defer teardown()

	if err := s.awaitInit(ctx); err != nil {
		if timeout, ok := err.(*TimeoutError); ok {
			return StateTimedOut, timeout
		}
		return StateAwaitingInit, err
	}

	if err := s.start(ctx); err != nil {
		return StateAwaitingInit, fmt.Errorf("starting scheduler run: %w", err)
	}

	return s.awaitCompletion(ctx)
}

// provision removes any stale agent and posts a fresh one, then waits
// for its microservice to report running.
func (s *Scheduler) provision(ctx context.Context) error {
	s.log.Debug("removing any existing scheduler system", "system", s.cfg.SystemID)
	if err := s.platform.RemoveSystem(ctx, s.cfg.SystemID); err != nil {
		return err
	}

	s.log.Info("deploying scheduler microservice", "system", s.cfg.SystemID, "tag", s.cfg.ImageTag)
	if err := s.platform.AddSystem(ctx, s.agentConfig(), true, s.cfg.ProvisionTimeout); err != nil {
		return err
	}

	running, err := s.platform.WaitForMicroservice(ctx, s.cfg.SystemID, s.cfg.ProvisionTimeout)
	if err != nil {
		return err
	}
	if !running {
		return &TimeoutError{Phase: "running microservice", Timeout: s.cfg.ProvisionTimeout}
	}
	return nil
}

// agentConfig builds the microservice system config for the agent. The
// DUMMY environment entry changes on every run so the node restarts the
// container even when nothing else differs.
func (s *Scheduler) agentConfig() map[string]any {
	return map[string]any{
		"_id":  s.cfg.SystemID,
		"type": "system:microservice",
		"docker": map[string]any{
			"environment": map[string]any{
				"JWT":   s.cfg.Token,
				"URL":   s.cfg.NodeURL,
				"DUMMY": uuid.NewString(),
			},
			"image":     "pipesync/scheduler:" + s.cfg.ImageTag,
			"port":      5555,
			"memory":    512,
			"skip_pull": true,
		},
	}
}

// awaitInit polls the agent until it reports the init state, meaning it
// has loaded the node's pipe graph and is ready to accept a start.
func (s *Scheduler) awaitInit(ctx context.Context) error {
	s.log.Debug("waiting for scheduler to initialize", "system", s.cfg.SystemID)
	for remaining := s.cfg.ProvisionTimeout; remaining > 0; remaining -= s.cfg.PollInterval {
		state, _, err := s.agentState(ctx)
		if err != nil {
			s.log.Debug("scheduler not answering yet", "error", err)
		} else if state == "init" {
			return nil
		}
		if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
			return err
		}
	}
	return &TimeoutError{Phase: "init state", Timeout: s.cfg.ProvisionTimeout}
}

// start kicks off the run with a full reset of pipe offsets and user
// datasets.
func (s *Scheduler) start(ctx context.Context) error {
	params := map[string]string{
		"reset_pipes":                "true",
		"delete_datasets":            "true",
		"compact_execution_datasets": "true",
		"zero_runs":                  strconv.Itoa(s.cfg.ZeroRuns),
	}
	s.log.Info("starting scheduler run", "system", s.cfg.SystemID, "zero_runs", s.cfg.ZeroRuns)
	_, err := s.platform.ProxyPost(ctx, s.cfg.SystemID, "start", params)
	return err
}

// awaitCompletion polls the running agent until it settles. A status
// poll that errors here is fatal: the agent was answering when the run
// started, so a failing poll means the agent or the node is gone, and
// retrying forever would hang an unbounded run.
func (s *Scheduler) awaitCompletion(ctx context.Context) (State, error) {
	remaining := s.cfg.RunTimeout
	for {
		state, status, err := s.agentState(ctx)
		if err != nil {
			return StateFailed, fmt.Errorf("polling scheduler status: %w", err)
		}
		switch state {
		case "success":
			s.streamLog(ctx)
			s.log.Info("scheduler run finished successfully")
			return StateSucceeded, nil
		case "failed":
			s.streamLog(ctx)
			return StateFailed, fmt.Errorf("scheduler run failed: %v", status)
		}
		s.streamLog(ctx)

		if s.cfg.RunTimeout > 0 {
			remaining -= s.cfg.PollInterval
			if remaining <= 0 {
				return StateTimedOut, &TimeoutError{Phase: "completion", Timeout: s.cfg.RunTimeout}
			}
		}
		if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
			return StateRunning, err
		}
	}
}

// agentState fetches the agent's status object and extracts its state
// field.
func (s *Scheduler) agentState(ctx context.Context) (string, map[string]any, error) {
	reply, err := s.platform.ProxyGetJSON(ctx, s.cfg.SystemID, "", nil)
	if err != nil {
		return "", nil, err
	}
	status, ok := reply.(map[string]any)
	if !ok {
		return "", nil, fmt.Errorf("unexpected scheduler status reply %T", reply)
	}
	state, _ := status["state"].(string)
	return state, status, nil
}

// streamLog fetches new agent log lines since the last cursor and
// writes them to Out. The cursor is the timestamp token leading the
// last line seen.
func (s *Scheduler) streamLog(ctx context.Context) {
	if !s.cfg.PrintLog {
		return
	}
	text, err := s.platform.SystemLog(ctx, s.cfg.SystemID, s.logCursor)
	if err != nil {
		s.log.Debug("failed to fetch scheduler log", "error", err)
		return
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		fmt.Fprintln(s.Out, line)
		if token, _, found := strings.Cut(line, " "); found {
			s.logCursor = token
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
