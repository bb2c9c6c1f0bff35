package servicectl

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/remote"
)

// Controller drives services through a remote executor.
type Controller struct {
	Exec remote.Executor

	// PollInterval is the pause between probes in WaitFor.
	PollInterval time.Duration
}

// New returns a controller with a two second poll interval.
func New(exec remote.Executor) *Controller {
	return &Controller{Exec: exec, PollInterval: 2 * time.Second}
}

// Status probes svc on addr. Transport failures are returned as errors;
// anything the probe printed maps to a Status.
func (c *Controller) Status(ctx context.Context, addr string, svc domain.Service) (Status, error) {
	cmd, parse := ProbeCommand(svc)
	res, err := c.Exec.Run(ctx, addr, cmd)
	if err != nil {
		return Unknown, err
	}
	return parse(res), nil
}

// Do runs action on svc and reports the status observed afterwards. The
// control command's own exit code is not trusted; the probe decides.
func (c *Controller) Do(ctx context.Context, addr string, svc domain.Service, action Action) (Status, error) {
	if action == Probe {
		return c.Status(ctx, addr, svc)
	}

	cmd := ControlCommand(svc, action)
	res, err := c.Exec.Run(ctx, addr, cmd)
	if err != nil {
		return Unknown, err
	}
	if res.ExitCode != 0 {
		log.Debug().Str("host", addr).Str("command", cmd).Int("exit", res.ExitCode).Msg("control command exited non-zero")
	}
	return c.Status(ctx, addr, svc)
}

// WaitFor probes until svc reaches want or wait elapses. It returns the
// last observed status.
func (c *Controller) WaitFor(ctx context.Context, addr string, svc domain.Service, want Status, wait time.Duration) (Status, error) {
	deadline := time.Now().Add(wait)
	interval := c.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	for {
		st, err := c.Status(ctx, addr, svc)
		if err != nil {
			return st, err
		}
		if st == want {
			return st, nil
		}
		if !time.Now().Add(interval).Before(deadline) {
			return st, &domain.TimeoutError{Op: fmt.Sprintf("%s on %s reaching %s", svc.ServiceName, addr, want), Wait: wait}
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return st, ctx.Err()
		case <-timer.C:
		}
	}
}
