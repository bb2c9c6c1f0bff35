// Package configmgmt enrolls hosts with the puppet authority and runs the
// puppet client across the fleet.
package configmgmt

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/fanout"
	"nathanbeddoewebdev/fleet/internal/remote"
)

const (
	clientCommand = "puppet agent --test"
	signCommand   = "puppet cert --sign --all"

	// DefaultConcurrency bounds fleet-wide client runs.
	DefaultConcurrency = 10
)

// Manager talks to hosts and the authority through a remote executor.
type Manager struct {
	Exec remote.Executor
	// Authority is the address of the signing host.
	Authority string
}

// New returns a Manager for the authority at addr.
func New(exec remote.Executor, authority string) *Manager {
	return &Manager{Exec: exec, Authority: authority}
}

// RunClient runs the puppet client once on addr. `--test` implies
// detailed exit codes, where 2 means changes were applied.
func (m *Manager) RunClient(ctx context.Context, addr string) error {
	res, err := m.Exec.Run(ctx, addr, clientCommand)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 && res.ExitCode != 2 {
		return &domain.ExecError{Host: addr, Command: clientCommand, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return nil
}

// Enroll runs the client on the new host, signs every pending request on
// the authority and runs the client again. The first run is expected to
// fail while the certificate is unsigned. All three steps always run; only
// the final client run decides success, with the earlier failures attached
// for context.
func (m *Manager) Enroll(ctx context.Context, name, addr string) error {
	if m.Authority == "" {
		return &domain.ConfigMgmtError{Host: name, Err: errors.New("no config-management authority configured")}
	}

	first := m.RunClient(ctx, addr)
	if first != nil {
		log.Debug().Str("server", name).Err(first).Msg("initial puppet run failed, expected before signing")
	}
	_, sign := remote.Check(ctx, m.Exec, m.Authority, signCommand)
	final := m.RunClient(ctx, addr)

	if final == nil {
		return nil
	}
	return &domain.ConfigMgmtError{Host: name, Err: errors.Join(
		stepErr("initial run", first),
		stepErr("sign", sign),
		stepErr("confirm run", final),
	)}
}

func stepErr(step string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", step, err)
}

// Revoke removes the certificate for certName from the authority.
func (m *Manager) Revoke(ctx context.Context, certName string) error {
	if m.Authority == "" {
		return &domain.ConfigMgmtError{Host: certName, Err: errors.New("no config-management authority configured")}
	}
	_, err := remote.Check(ctx, m.Exec, m.Authority, "puppet cert --clean "+remote.Quote(certName))
	if err != nil {
		return &domain.ConfigMgmtError{Host: certName, Err: err}
	}
	return nil
}

// Update runs the client on the authority first and then on every host
// with bounded concurrency.
func (m *Manager) Update(ctx context.Context, hosts []domain.Host, limit int) error {
	if m.Authority != "" {
		if err := m.RunClient(ctx, m.Authority); err != nil {
			return fmt.Errorf("configmgmt: authority run failed: %w", err)
		}
	}
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	tasks := make([]fanout.Task, 0, len(hosts))
	for _, h := range hosts {
		tasks = append(tasks, fanout.Task{
			Name: h.Server.Name,
			Func: func(ctx context.Context) error {
				return m.RunClient(ctx, h.ConnectAddress())
			},
		})
	}
	return fanout.Run(ctx, "configmgmt update", limit, tasks)
}
